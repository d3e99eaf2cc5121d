package dependencies

import (
	"fmt"
	"sort"

	"github.com/platinummonkey/hookrt/pkg/plugins"
)

// Graph is the dependency graph of a plugin list, keyed by plugin id.
// Plugins reached only through a dependency edge are part of the graph even
// when they were not in the input list.
type Graph struct {
	nodes map[string]*plugins.Plugin
	edges map[string][]string // id -> dependency ids, declared order
	roots []string            // input order
	seen  []string            // insertion order
}

// NewGraph builds the graph for the given plugins. Two distinct plugin
// objects with the same id are one node when their dependency sets match and
// a *DuplicatePluginIDError otherwise.
func NewGraph(list []*plugins.Plugin) (*Graph, error) {
	g := &Graph{
		nodes: make(map[string]*plugins.Plugin),
		edges: make(map[string][]string),
	}

	var add func(p *plugins.Plugin) error
	add = func(p *plugins.Plugin) error {
		if existing, ok := g.nodes[p.ID]; ok {
			if existing != p && !sameDependencies(existing, p) {
				return &DuplicatePluginIDError{
					ID:     p.ID,
					First:  existing.DependencyIDs(),
					Second: p.DependencyIDs(),
				}
			}
			return nil
		}

		g.nodes[p.ID] = p
		g.edges[p.ID] = p.DependencyIDs()
		g.seen = append(g.seen, p.ID)

		for _, dep := range p.Dependencies {
			if dep == nil {
				continue
			}
			if err := add(dep); err != nil {
				return err
			}
		}
		return nil
	}

	for i, p := range list {
		if p == nil {
			return nil, fmt.Errorf("plugin at index %d is nil", i)
		}
		if err := add(p); err != nil {
			return nil, err
		}
		g.roots = append(g.roots, p.ID)
	}

	return g, nil
}

// Len returns the number of distinct plugins in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Plugin returns the node registered under id.
func (g *Graph) Plugin(id string) (*plugins.Plugin, bool) {
	p, ok := g.nodes[id]
	return p, ok
}

// TopologicalSort returns every plugin after all of its dependencies.
// Plugins without a forced relationship keep their input order.
func (g *Graph) TopologicalSort() ([]*plugins.Plugin, error) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make([]string, 0)
	result := make([]*plugins.Plugin, 0, len(g.nodes))

	var visit func(string) error
	visit = func(id string) error {
		if recStack[id] {
			return &CyclicDependencyError{Cycle: cycleFrom(path, id)}
		}
		if visited[id] {
			return nil
		}

		visited[id] = true
		recStack[id] = true
		path = append(path, id)

		// Visit dependencies first
		for _, dep := range g.edges[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}

		recStack[id] = false
		path = path[:len(path)-1]

		result = append(result, g.nodes[id])
		return nil
	}

	for _, id := range g.roots {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// TransitiveDependencies returns every plugin id id depends on, directly or
// not, in first-reached order.
func (g *Graph) TransitiveDependencies(id string) []string {
	visited := map[string]bool{id: true}
	result := make([]string, 0)

	var traverse func(string)
	traverse = func(key string) {
		for _, dep := range g.edges[key] {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			result = append(result, dep)
			traverse(dep)
		}
	}

	traverse(id)
	return result
}

// Dependents returns the ids of plugins that directly depend on id, in the
// order they entered the graph.
func (g *Graph) Dependents(id string) []string {
	dependents := make([]string, 0)

	for _, nodeID := range g.seen {
		for _, edge := range g.edges[nodeID] {
			if edge == id {
				dependents = append(dependents, nodeID)
				break
			}
		}
	}

	return dependents
}

// Order sorts plugins so that each one comes after all of its transitive
// dependencies. It fails with *CyclicDependencyError or
// *DuplicatePluginIDError and never returns a partial order.
func Order(list []*plugins.Plugin) ([]*plugins.Plugin, error) {
	g, err := NewGraph(list)
	if err != nil {
		return nil, err
	}
	return g.TopologicalSort()
}

func cycleFrom(path []string, id string) []string {
	for i := range path {
		if path[i] == id {
			cycle := append([]string{}, path[i:]...)
			return append(cycle, id)
		}
	}
	return []string{id, id}
}

func sameDependencies(a, b *plugins.Plugin) bool {
	x, y := a.DependencyIDs(), b.DependencyIDs()
	if len(x) != len(y) {
		return false
	}
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
