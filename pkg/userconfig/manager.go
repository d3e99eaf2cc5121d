package userconfig

import (
	"context"
	"fmt"
	"sort"

	"github.com/platinummonkey/hookrt/pkg/configvars"
	"github.com/platinummonkey/hookrt/pkg/hooks"
	"github.com/platinummonkey/hookrt/pkg/plugins"
	"github.com/sirupsen/logrus"
)

// Category is the hook category configuration handlers register under.
const Category = "config"

// Hook names of the config category.
const (
	// HookExtend receives (config *UserConfig) and returns *UserConfig.
	HookExtend = "extendUserConfig"
	// HookValidate receives (config *UserConfig) and returns
	// []plugins.ValidationError.
	HookValidate = "validateUserConfig"
	// HookResolve receives (config *UserConfig, resolver *configvars.Resolver)
	// and returns *ResolvedConfig.
	HookResolve = "resolveUserConfig"
)

// Runner is the part of the hook runtime the config category needs.
// *hooks.Manager implements it.
type Runner interface {
	RunChain(ctx context.Context, category, hook string, def plugins.Next, args ...any) (any, error)
	RunInParallel(ctx context.Context, category, hook string, args ...any) ([]any, error)
}

// Manager runs the config category.
type Manager struct {
	hooks    Runner
	resolver *configvars.Resolver
	logger   *logrus.Logger
}

// NewManager creates a config manager. A nil logger defaults to logrus.New().
func NewManager(runner Runner, resolver *configvars.Resolver, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{hooks: runner, resolver: resolver, logger: logger}
}

// Extend runs the extend chain over a copy of cfg.
func (m *Manager) Extend(ctx context.Context, cfg *UserConfig) (*UserConfig, error) {
	def := func(_ context.Context, args ...any) (any, error) {
		return configArg(args)
	}

	extended, err := hooks.As[*UserConfig](m.hooks.RunChain(ctx, Category, HookExtend, def, cfg.Clone()))
	if err != nil {
		return nil, err
	}
	if extended == nil {
		return nil, fmt.Errorf("%s returned no config", HookExtend)
	}
	return extended, nil
}

// Validate runs every validation handler and returns the reported errors.
func (m *Manager) Validate(ctx context.Context, cfg *UserConfig) ([]plugins.ValidationError, error) {
	results, err := hooks.Collect[[]plugins.ValidationError](m.hooks.RunInParallel(ctx, Category, HookValidate, cfg))
	if err != nil {
		return nil, err
	}

	var all []plugins.ValidationError
	for _, errs := range results {
		all = append(all, errs...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Field < all[j].Field })
	return all, nil
}

// Resolve runs the resolve chain. The default resolves every variable.
func (m *Manager) Resolve(ctx context.Context, cfg *UserConfig) (*ResolvedConfig, error) {
	resolved, err := hooks.As[*ResolvedConfig](m.hooks.RunChain(ctx, Category, HookResolve, m.resolveDefault, cfg, m.resolver))
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return nil, fmt.Errorf("%s returned no config", HookResolve)
	}
	return resolved, nil
}

// Load extends, validates and resolves the config file at path.
func (m *Manager) Load(ctx context.Context, path string) (*ResolvedConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return m.Process(ctx, cfg)
}

// Process extends, validates and resolves cfg. Validation warnings are
// logged; validation errors fail with *InvalidConfigError.
func (m *Manager) Process(ctx context.Context, cfg *UserConfig) (*ResolvedConfig, error) {
	extended, err := m.Extend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	issues, err := m.Validate(ctx, extended)
	if err != nil {
		return nil, err
	}

	var errs []plugins.ValidationError
	for _, issue := range issues {
		if issue.Severity == "warning" {
			m.logger.WithField("field", issue.Field).Warn(issue.Message)
			continue
		}
		errs = append(errs, issue)
	}
	if len(errs) > 0 {
		return nil, &InvalidConfigError{Errors: errs}
	}

	return m.Resolve(ctx, extended)
}

func (m *Manager) resolveDefault(ctx context.Context, args ...any) (any, error) {
	cfg, err := configArg(args)
	if err != nil {
		return nil, err
	}

	out := &ResolvedConfig{
		Paths:      cfg.Paths,
		Variables:  make(map[string]string, len(cfg.Variables)),
		Extensions: cfg.Clone().Extensions,
	}

	for key, v := range cfg.Variables {
		if v == nil {
			continue
		}
		value, err := m.resolver.Resolve(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("variables.%s: %w", key, err)
		}
		out.Variables[key] = value
	}
	return out, nil
}

func configArg(args []any) (*UserConfig, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("config hook called without a config")
	}
	cfg, ok := args[0].(*UserConfig)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("config hook expects *userconfig.UserConfig, got %T", args[0])
	}
	return cfg, nil
}
