package hooks

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/platinummonkey/hookrt/pkg/plugins"
)

// Factory builds a handler set. A category backed by a factory calls it at
// most once per Manager.
type Factory func(ctx context.Context) (*plugins.HandlerSet, error)

// Loader turns a reference target into either a *plugins.HandlerSet or a
// Factory.
type Loader interface {
	Load(ctx context.Context, target string) (any, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, target string) (any, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, target string) (any, error) {
	return f(ctx, target)
}

// LoaderRegistry dispatches references to loaders by scheme or extension.
type LoaderRegistry struct {
	mu         sync.RWMutex
	schemes    map[string]Loader
	extensions map[string]Loader
}

// NewLoaderRegistry creates an empty registry.
func NewLoaderRegistry() *LoaderRegistry {
	return &LoaderRegistry{
		schemes:    make(map[string]Loader),
		extensions: make(map[string]Loader),
	}
}

// RegisterScheme routes "scheme:target" references to l.
func (r *LoaderRegistry) RegisterScheme(scheme string, l Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemes[strings.TrimSuffix(scheme, ":")] = l
}

// RegisterExtension routes file references ending in ext to l.
func (r *LoaderRegistry) RegisterExtension(ext string, l Loader) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extensions[strings.ToLower(ext)] = l
}

// Schemes returns the registered schemes and extensions, sorted.
func (r *LoaderRegistry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemes)+len(r.extensions))
	for s := range r.schemes {
		names = append(names, s+":")
	}
	for ext := range r.extensions {
		names = append(names, ext)
	}
	sort.Strings(names)
	return names
}

// Resolve picks the loader for ref. File references that are relative are
// joined to dir.
func (r *LoaderRegistry) Resolve(ref, dir string) (Loader, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if scheme, target, ok := strings.Cut(ref, ":"); ok && len(scheme) > 1 {
		if l, found := r.schemes[scheme]; found {
			return l, target, nil
		}
	}

	ext := strings.ToLower(filepath.Ext(ref))
	l, ok := r.extensions[ext]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrNoLoader, ref)
	}

	path := ref
	if !filepath.IsAbs(path) && dir != "" {
		path = filepath.Join(dir, path)
	}
	return l, path, nil
}

// GoLoader serves "go:name" references from factories registered in process.
type GoLoader struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewGoLoader creates an empty Go loader.
func NewGoLoader() *GoLoader {
	return &GoLoader{factories: make(map[string]Factory)}
}

// Register makes a factory available under name. It panics if the factory
// is nil or the name is taken.
func (g *GoLoader) Register(name string, factory Factory) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if factory == nil {
		panic("hooks: Register factory is nil")
	}
	if _, dup := g.factories[name]; dup {
		panic("hooks: Register called twice for factory " + name)
	}
	g.factories[name] = factory
}

// RegisterSet registers a factory returning set.
func (g *GoLoader) RegisterSet(name string, set *plugins.HandlerSet) {
	g.Register(name, func(context.Context) (*plugins.HandlerSet, error) {
		return set, nil
	})
}

// Names returns the registered factory names, sorted.
func (g *GoLoader) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, 0, len(g.factories))
	for name := range g.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load returns the factory registered under name.
func (g *GoLoader) Load(_ context.Context, name string) (any, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	factory, ok := g.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFactoryNotFound, name)
	}
	return factory, nil
}
