// Package builtin provides the plugin the host places before every other
// plugin. Its handlers are the innermost layer of every chain, so they run
// right around each category's default behavior.
package builtin

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/platinummonkey/hookrt/pkg/hooks"
	"github.com/platinummonkey/hookrt/pkg/interaction"
	"github.com/platinummonkey/hookrt/pkg/plugins"
	"github.com/platinummonkey/hookrt/pkg/userconfig"
)

// DefaultInterruptor names interactions whose caller did not name itself.
const DefaultInterruptor = "hookrt"

// Default path values applied by extendUserConfig.
const (
	DefaultRoot      = "."
	DefaultCache     = "cache"
	DefaultArtifacts = "artifacts"
)

// Plugin returns the builtin plugin.
func Plugin() *plugins.Plugin {
	return &plugins.Plugin{
		ID: plugins.BuiltinPluginID,
		Hooks: map[string]plugins.HookDeclaration{
			userconfig.Category:  plugins.Inline(configHandlers()),
			interaction.Category: plugins.Inline(interactionHandlers()),
		},
	}
}

func configHandlers() *plugins.HandlerSet {
	return plugins.NewHandlerSet("builtin/config", map[string]plugins.Handler{
		userconfig.HookExtend:   extendUserConfig,
		userconfig.HookValidate: validateUserConfig,
		userconfig.HookResolve:  resolveUserConfig,
	})
}

func extendUserConfig(ctx context.Context, next plugins.Next, args ...any) (any, error) {
	cfg, err := hooks.As[*userconfig.UserConfig](next(ctx, args...))
	if err != nil {
		return nil, err
	}

	if cfg.Paths.Root == "" {
		cfg.Paths.Root = DefaultRoot
	}
	if cfg.Paths.Cache == "" {
		cfg.Paths.Cache = DefaultCache
	}
	if cfg.Paths.Artifacts == "" {
		cfg.Paths.Artifacts = DefaultArtifacts
	}
	return cfg, nil
}

func validateUserConfig(_ context.Context, _ plugins.Next, args ...any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("validateUserConfig called without a config")
	}
	cfg, ok := args[0].(*userconfig.UserConfig)
	if !ok {
		return nil, fmt.Errorf("validateUserConfig expects *userconfig.UserConfig, got %T", args[0])
	}

	var errs []plugins.ValidationError
	if cfg.Paths.Cache != "" && filepath.Clean(cfg.Paths.Cache) == filepath.Clean(cfg.Paths.Artifacts) {
		errs = append(errs, plugins.ValidationError{
			Field:    "paths.artifacts",
			Message:  "artifacts and cache must be different directories",
			Severity: "error",
		})
	}

	names := make([]string, 0, len(cfg.Variables))
	for name := range cfg.Variables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := cfg.Variables[name]
		if v == nil {
			errs = append(errs, plugins.ValidationError{
				Field:    "variables." + name,
				Message:  "must be a literal value or a named variable",
				Severity: "error",
			})
			continue
		}
		if err := v.Validate(); err != nil {
			errs = append(errs, plugins.ValidationError{
				Field:    "variables." + name,
				Message:  err.Error(),
				Severity: "error",
			})
		}
	}
	return errs, nil
}

func resolveUserConfig(ctx context.Context, next plugins.Next, args ...any) (any, error) {
	resolved, err := hooks.As[*userconfig.ResolvedConfig](next(ctx, args...))
	if err != nil {
		return nil, err
	}

	root, err := filepath.Abs(resolved.Paths.Root)
	if err != nil {
		return nil, fmt.Errorf("paths.root: %w", err)
	}
	resolved.Paths.Root = root
	resolved.Paths.Cache = underRoot(root, resolved.Paths.Cache)
	resolved.Paths.Artifacts = underRoot(root, resolved.Paths.Artifacts)
	return resolved, nil
}

func underRoot(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func interactionHandlers() *plugins.HandlerSet {
	normalize := func(trimResult bool) plugins.Handler {
		return func(ctx context.Context, next plugins.Next, args ...any) (any, error) {
			if len(args) == 2 {
				if who, ok := args[0].(string); ok && who == "" {
					args = []any{DefaultInterruptor, args[1]}
				}
			}

			res, err := next(ctx, args...)
			if err != nil || !trimResult {
				return res, err
			}
			if s, ok := res.(string); ok {
				return strings.TrimSpace(s), nil
			}
			return res, nil
		}
	}

	return plugins.NewHandlerSet("builtin/userInterruption", map[string]plugins.Handler{
		interaction.HookDisplayMessage:     normalize(false),
		interaction.HookRequestInput:       normalize(true),
		interaction.HookRequestSecretInput: normalize(false),
	})
}
