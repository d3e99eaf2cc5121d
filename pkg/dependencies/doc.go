// Package dependencies orders plugins by the dependencies they declare.
//
// # Overview
//
// Hook handlers run in plugin order, so the order has to be deterministic and
// has to respect dependency edges: a plugin always comes after everything it
// depends on. Among plugins without a forced relationship the input order is
// kept, which lets authors reason about override order by list position.
//
// # Usage Example
//
//	ordered, err := dependencies.Order([]*plugins.Plugin{builtin, a, b})
//	var cycle *dependencies.CyclicDependencyError
//	if errors.As(err, &cycle) {
//		fmt.Printf("cycle: %s\n", strings.Join(cycle.Cycle, " -> "))
//	}
//
// Graph exposes the same structure for inspection:
//
//	g, _ := dependencies.NewGraph(list)
//	fmt.Println(g.TransitiveDependencies("my-plugin"))
//	fmt.Println(g.Dependents("builtin"))
//
// # Related Packages
//
//   - pkg/plugins: Plugin declarations
//   - pkg/hre: Prepends the built-in plugin and orders the host's list
package dependencies
