// Package hre assembles the hook runtime environment: it orders the plugin
// list behind the builtin plugin, builds the hook manager and layers the
// interaction coordinator, variable resolver and config manager on top.
package hre

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/hookrt/pkg/builtin"
	"github.com/platinummonkey/hookrt/pkg/configvars"
	"github.com/platinummonkey/hookrt/pkg/dependencies"
	"github.com/platinummonkey/hookrt/pkg/hooks"
	"github.com/platinummonkey/hookrt/pkg/hooks/jsref"
	"github.com/platinummonkey/hookrt/pkg/hooks/luaref"
	"github.com/platinummonkey/hookrt/pkg/interaction"
	"github.com/platinummonkey/hookrt/pkg/observability"
	"github.com/platinummonkey/hookrt/pkg/plugins"
	"github.com/platinummonkey/hookrt/pkg/userconfig"
	"github.com/sirupsen/logrus"
)

// Options configures New.
type Options struct {
	// Plugins are the host's plugins in any order. The builtin plugin is
	// added by New and must not be included.
	Plugins []*plugins.Plugin

	// GoFactories serves go: references. Nil means no go: references.
	GoFactories *hooks.GoLoader

	// Loaders overrides the default loader registry.
	Loaders *hooks.LoaderRegistry

	Terminal interaction.Terminal
	Logger   *logrus.Logger
	Metrics  *observability.Metrics

	// VariableCacheSize of zero disables caching of resolved variables.
	VariableCacheSize int
	VariableCacheTTL  time.Duration

	// MaxParallel bounds RunInParallel; zero means unbounded.
	MaxParallel int
}

// Runtime is a fully assembled hook runtime environment.
type Runtime struct {
	Hooks       *hooks.Manager
	Interaction *interaction.Coordinator
	Variables   *configvars.Resolver
	Config      *userconfig.Manager
}

// DefaultLoaders returns a registry serving go: references from factories,
// and .lua and .js files.
func DefaultLoaders(factories *hooks.GoLoader, logger *logrus.Logger) *hooks.LoaderRegistry {
	registry := hooks.NewLoaderRegistry()
	if factories != nil {
		registry.RegisterScheme("go", factories)
	}
	registry.RegisterExtension(".lua", luaref.New(luaref.WithLogger(logger)))
	registry.RegisterExtension(".js", jsref.New(jsref.WithLogger(logger)))
	return registry
}

// New orders the plugins and builds the runtime.
func New(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	for _, p := range opts.Plugins {
		if p != nil && p.ID == plugins.BuiltinPluginID {
			return nil, fmt.Errorf("plugin id %q is reserved", plugins.BuiltinPluginID)
		}
	}

	list := make([]*plugins.Plugin, 0, len(opts.Plugins)+1)
	list = append(list, builtin.Plugin())
	list = append(list, opts.Plugins...)

	ordered, err := dependencies.Order(list)
	if err != nil {
		return nil, fmt.Errorf("failed to order plugins: %w", err)
	}

	loaders := opts.Loaders
	if loaders == nil {
		loaders = DefaultLoaders(opts.GoFactories, logger)
	}

	manager := hooks.NewManager(ordered,
		hooks.WithLogger(logger),
		hooks.WithMetrics(opts.Metrics),
		hooks.WithLoaders(loaders),
		hooks.WithMaxParallel(opts.MaxParallel),
	)

	coordinatorOpts := []interaction.Option{
		interaction.WithLogger(logger),
		interaction.WithMetrics(opts.Metrics),
	}
	if opts.Terminal != nil {
		coordinatorOpts = append(coordinatorOpts, interaction.WithTerminal(opts.Terminal))
	}
	coordinator := interaction.NewCoordinator(manager, coordinatorOpts...)

	resolver := configvars.NewResolver(manager,
		configvars.WithCoordinator(coordinator),
		configvars.WithCache(opts.VariableCacheSize, opts.VariableCacheTTL),
		configvars.WithLogger(logger),
		configvars.WithMetrics(opts.Metrics),
	)

	ids := make([]string, 0, len(ordered))
	for _, p := range ordered {
		ids = append(ids, p.ID)
	}
	logger.WithField("plugins", ids).Debug("Hook runtime ready")

	return &Runtime{
		Hooks:       manager,
		Interaction: coordinator,
		Variables:   resolver,
		Config:      userconfig.NewManager(manager, resolver, logger),
	}, nil
}

// Plugins returns the plugins in handler order, builtin first.
func (r *Runtime) Plugins() []*plugins.Plugin {
	return r.Hooks.Plugins()
}

// CategoryResult is the outcome of loading one declared category.
type CategoryResult struct {
	PluginID string
	Category string
	Hooks    []string
	Err      error
}

// LoadAll resolves every category every plugin declares, so broken plugins
// surface before any hook runs.
func (r *Runtime) LoadAll(ctx context.Context) []CategoryResult {
	var results []CategoryResult
	for _, p := range r.Hooks.Plugins() {
		for _, category := range p.Categories() {
			set, err := r.Hooks.LoadCategory(ctx, p.ID, category)
			results = append(results, CategoryResult{
				PluginID: p.ID,
				Category: category,
				Hooks:    set.HookNames(),
				Err:      err,
			})
		}
	}
	return results
}
