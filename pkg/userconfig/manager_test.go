package userconfig

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/platinummonkey/hookrt/pkg/configvars"
	"github.com/platinummonkey/hookrt/pkg/hooks"
	"github.com/platinummonkey/hookrt/pkg/observability"
	"github.com/platinummonkey/hookrt/pkg/plugins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configPlugin(id string, handlers map[string]plugins.Handler) *plugins.Plugin {
	return &plugins.Plugin{
		ID: id,
		Hooks: map[string]plugins.HookDeclaration{
			Category: plugins.Inline(plugins.NewHandlerSet(id, handlers)),
		},
	}
}

func newManager(t *testing.T, ps ...*plugins.Plugin) *Manager {
	t.Helper()
	logger := observability.NewDiscardLogger()
	hm := hooks.NewManager(ps, hooks.WithLogger(logger))
	resolver := configvars.NewResolver(hm, configvars.WithEnvLookup(func(name string) (string, bool) {
		if name == "TOKEN" {
			return "t0k", true
		}
		return "", false
	}))
	return NewManager(hm, resolver, logger)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
paths:
  root: /srv/app
variables:
  plain: value
  secret:
    name: TOKEN
extensions:
  deployer:
    retries: 3
`))
	require.NoError(t, err)

	assert.Equal(t, "/srv/app", cfg.Paths.Root)
	assert.Equal(t, configvars.Literal("value"), cfg.Variables["plain"])
	assert.Equal(t, configvars.Named("TOKEN"), cfg.Variables["secret"])
	assert.Equal(t, 3, cfg.Extensions["deployer"]["retries"])

	_, err = Parse([]byte("paths: [not, a, map]"))
	assert.ErrorContains(t, err, "failed to parse user config")
}

func TestClone_IsDeep(t *testing.T) {
	cfg := &UserConfig{
		Variables:  map[string]*configvars.Variable{"a": configvars.Literal("1"), "nil": nil},
		Extensions: map[string]map[string]any{"p": {"k": "v"}},
	}

	clone := cfg.Clone()
	clone.Variables["a"].Value = "2"
	clone.Extensions["p"]["k"] = "changed"

	assert.Equal(t, "1", cfg.Variables["a"].Value)
	assert.Equal(t, "v", cfg.Extensions["p"]["k"])
	assert.Contains(t, clone.Variables, "nil")
}

func TestProcess_WithoutHandlers(t *testing.T) {
	m := newManager(t)

	resolved, err := m.Process(context.Background(), &UserConfig{
		Paths:     Paths{Root: "/srv"},
		Variables: map[string]*configvars.Variable{"plain": configvars.Literal("x"), "secret": configvars.Named("TOKEN")},
	})
	require.NoError(t, err)
	assert.Equal(t, "/srv", resolved.Paths.Root)
	assert.Equal(t, map[string]string{"plain": "x", "secret": "t0k"}, resolved.Variables)
}

func TestExtend_DoesNotMutateInput(t *testing.T) {
	m := newManager(t, configPlugin("defaults", map[string]plugins.Handler{
		HookExtend: func(ctx context.Context, next plugins.Next, args ...any) (any, error) {
			cfg := args[0].(*UserConfig)
			cfg.Paths.Cache = "cache"
			return next(ctx, cfg)
		},
	}))

	input := &UserConfig{}
	extended, err := m.Extend(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "cache", extended.Paths.Cache)
	assert.Empty(t, input.Paths.Cache)
}

func TestExtend_NilResult(t *testing.T) {
	m := newManager(t, configPlugin("broken", map[string]plugins.Handler{
		HookExtend: func(context.Context, plugins.Next, ...any) (any, error) {
			return nil, nil
		},
	}))

	_, err := m.Extend(context.Background(), &UserConfig{})
	assert.ErrorContains(t, err, "extendUserConfig returned no config")
}

func TestProcess_Validation(t *testing.T) {
	validator := func(issues ...plugins.ValidationError) plugins.Handler {
		return func(context.Context, plugins.Next, ...any) (any, error) {
			return issues, nil
		}
	}

	t.Run("warnings only", func(t *testing.T) {
		m := newManager(t, configPlugin("w", map[string]plugins.Handler{
			HookValidate: validator(plugins.ValidationError{Field: "paths.root", Message: "relative", Severity: "warning"}),
		}))
		_, err := m.Process(context.Background(), &UserConfig{})
		assert.NoError(t, err)
	})

	t.Run("errors are collected and sorted", func(t *testing.T) {
		m := newManager(t,
			configPlugin("a", map[string]plugins.Handler{
				HookValidate: validator(plugins.ValidationError{Field: "z", Message: "bad z", Severity: "error"}),
			}),
			configPlugin("b", map[string]plugins.Handler{
				HookValidate: validator(plugins.ValidationError{Field: "a", Message: "bad a", Severity: "error"}),
			}),
		)

		_, err := m.Process(context.Background(), &UserConfig{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfig)

		var invalid *InvalidConfigError
		require.True(t, errors.As(err, &invalid))
		require.Len(t, invalid.Errors, 2)
		assert.Equal(t, "a", invalid.Errors[0].Field)
		assert.Equal(t, "z", invalid.Errors[1].Field)
		assert.Equal(t, "invalid user config: a: bad a; z: bad z", err.Error())
	})
}

func TestResolve_HandlerWrapsDefault(t *testing.T) {
	m := newManager(t, configPlugin("rooted", map[string]plugins.Handler{
		HookResolve: func(ctx context.Context, next plugins.Next, args ...any) (any, error) {
			out, err := hooks.As[*ResolvedConfig](next(ctx, args...))
			if err != nil {
				return nil, err
			}
			out.Paths.Cache = filepath.Join(out.Paths.Root, "cache")
			return out, nil
		},
	}))

	resolved, err := m.Resolve(context.Background(), &UserConfig{Paths: Paths{Root: "/srv"}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv", "cache"), resolved.Paths.Cache)
}

func TestResolve_VariableError(t *testing.T) {
	m := newManager(t)

	_, err := m.Resolve(context.Background(), &UserConfig{
		Variables: map[string]*configvars.Variable{"missing": configvars.Named("NOPE")},
	})
	assert.ErrorIs(t, err, configvars.ErrVariableNotFound)
	assert.ErrorContains(t, err, "variables.missing")
}

func TestLoad(t *testing.T) {
	m := newManager(t)
	path := filepath.Join(t.TempDir(), "hookrt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("variables:\n  token:\n    name: TOKEN\n"), 0o644))

	resolved, err := m.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "t0k", resolved.Variables["token"])

	_, err = m.Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read user config")
}
