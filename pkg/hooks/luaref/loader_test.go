package luaref

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platinummonkey/hookrt/pkg/hooks"
	"github.com/platinummonkey/hookrt/pkg/observability"
	"github.com/platinummonkey/hookrt/pkg/plugins"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type variable struct {
	name string
}

func (v *variable) Export() map[string]any {
	return map[string]any{"kind": "named", "name": v.name}
}

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hooks.lua")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func load(t *testing.T, src string) *plugins.HandlerSet {
	t.Helper()
	loaded, err := New(WithLogger(observability.NewDiscardLogger())).Load(context.Background(), writeScript(t, src))
	require.NoError(t, err)
	set, ok := loaded.(*plugins.HandlerSet)
	require.True(t, ok)
	return set
}

func call(t *testing.T, set *plugins.HandlerSet, hook string, next plugins.Next, args ...any) (any, error) {
	t.Helper()
	h, ok := set.Handler(hook)
	require.True(t, ok, "hook %q not found", hook)
	return h(context.Background(), next, args...)
}

const resolveScript = `
return {
  resolve = function(next, variable)
    if variable.name == "GREETING" then
      return "hello"
    end
    return next(variable)
  end,
  ignored = 42,
}
`

func TestLoad_TableModule(t *testing.T) {
	set := load(t, resolveScript)
	assert.Equal(t, []string{"resolve"}, set.HookNames())

	var forwarded []any
	next := func(_ context.Context, args ...any) (any, error) {
		forwarded = args
		return "from-next", nil
	}

	res, err := call(t, set, "resolve", next, &variable{name: "GREETING"})
	require.NoError(t, err)
	assert.Equal(t, "hello", res)
	assert.Nil(t, forwarded)

	v := &variable{name: "OTHER"}
	res, err = call(t, set, "resolve", next, v)
	require.NoError(t, err)
	assert.Equal(t, "from-next", res)
	require.Len(t, forwarded, 1)
	assert.Same(t, v, forwarded[0], "exported arguments reach next as the original value")
}

func TestLoad_FactoryModule(t *testing.T) {
	set := load(t, `
return function()
  local prefix = "built:"
  return {
    h = function(next, a, b) return prefix .. tostring(a + b) end,
  }
end
`)

	res, err := call(t, set, "h", nil, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, "built:5", res)
}

func TestHandler_ValueConversion(t *testing.T) {
	set := load(t, `
return {
  list = function(next, xs) return { xs[1], xs[2], #xs } end,
  map = function(next, m) return { sum = m.a + m.b } end,
  float = function(next) return 1.5 end,
  none = function(next) end,
}
`)

	res, err := call(t, set, "list", nil, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", int64(2)}, res)

	res, err = call(t, set, "map", nil, map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sum": int64(3)}, res)

	res, err = call(t, set, "float", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.5, res)

	res, err = call(t, set, "none", nil)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestHandler_NextWithoutArgsForwardsOriginal(t *testing.T) {
	set := load(t, `return { h = function(next) return next() end }`)

	var got []any
	_, err := call(t, set, "h", func(_ context.Context, args ...any) (any, error) {
		got = args
		return nil, nil
	}, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", 1}, got)
}

func TestHandler_Errors(t *testing.T) {
	t.Run("script error", func(t *testing.T) {
		set := load(t, `return { h = function(next) error("boom") end }`)
		_, err := call(t, set, "h", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("next error is preserved", func(t *testing.T) {
		sentinel := errors.New("not found")
		set := load(t, `return { h = function(next, v) return next(v) end }`)
		_, err := call(t, set, "h", func(context.Context, ...any) (any, error) {
			return nil, sentinel
		}, "v")
		assert.ErrorIs(t, err, sentinel)
	})

	t.Run("context cancellation", func(t *testing.T) {
		set := load(t, `return { h = function(next) while true do end end }`)
		h, _ := set.Handler("h")

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := h(ctx, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestHandler_Sandbox(t *testing.T) {
	set := load(t, `
return {
  h = function(next)
    return os == nil and io == nil and dofile == nil and load == nil
  end,
}
`)
	res, err := call(t, set, "h", nil)
	require.NoError(t, err)
	assert.Equal(t, true, res)
}

func TestHandler_FreshStatePerInvocation(t *testing.T) {
	set := load(t, `
local count = 0
return { h = function(next) count = count + 1; return count end }
`)
	for i := 0; i < 3; i++ {
		res, err := call(t, set, "h", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res)
	}
}

func TestHandler_FactoryRunsPerInvocation(t *testing.T) {
	logger, logs := logtest.NewNullLogger()
	path := writeScript(t, `
return function()
  print("factory")
  return { h = function(next) return "ok" end }
end
`)
	loaded, err := New(WithLogger(logger)).Load(context.Background(), path)
	require.NoError(t, err)
	set := loaded.(*plugins.HandlerSet)
	require.Len(t, logs.AllEntries(), 1, "load runs the factory to list hook names")

	for i := 0; i < 3; i++ {
		res, err := call(t, set, "h", nil)
		require.NoError(t, err)
		assert.Equal(t, "ok", res)
	}

	entries := logs.AllEntries()
	require.Len(t, entries, 4)
	for _, e := range entries {
		assert.Equal(t, "factory", e.Message)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "syntax error", src: `return {`, want: "failed to parse lua module"},
		{name: "not a table", src: `return 42`, want: "must return a table"},
		{name: "runtime error", src: `error("init failed")`, want: "init failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Load(context.Background(), writeScript(t, tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := New().Load(context.Background(), filepath.Join(t.TempDir(), "missing.lua"))
	assert.Error(t, err)
}

func TestLoader_WithManager(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vars.lua"), []byte(resolveScript), 0o644))

	registry := hooks.NewLoaderRegistry()
	registry.RegisterExtension(".lua", New())

	p := &plugins.Plugin{
		ID:    "lua-vars",
		Dir:   dir,
		Hooks: map[string]plugins.HookDeclaration{"configurationVariables": plugins.Reference("vars.lua")},
	}
	m := hooks.NewManager([]*plugins.Plugin{p}, hooks.WithLoaders(registry), hooks.WithLogger(observability.NewDiscardLogger()))

	def := func(_ context.Context, args ...any) (any, error) {
		return "env:" + args[0].(*variable).name, nil
	}

	res, err := m.RunChain(context.Background(), "configurationVariables", "resolve", def, &variable{name: "GREETING"})
	require.NoError(t, err)
	assert.Equal(t, "hello", res)

	res, err = m.RunChain(context.Background(), "configurationVariables", "resolve", def, &variable{name: "HOME"})
	require.NoError(t, err)
	assert.Equal(t, "env:HOME", res)
}
