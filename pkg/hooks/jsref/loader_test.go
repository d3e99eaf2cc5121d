package jsref

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
	path := filepath.Join(t.TempDir(), "hooks.js")
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
module.exports = {
  resolve(next, variable) {
    if (variable.name === "GREETING") {
      return "hello";
    }
    return next(variable);
  },
  version: 1,
};
`

func TestLoad_ModuleExports(t *testing.T) {
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

	v := &variable{name: "OTHER"}
	res, err = call(t, set, "resolve", next, v)
	require.NoError(t, err)
	assert.Equal(t, "from-next", res)
	require.Len(t, forwarded, 1)
	assert.Same(t, v, forwarded[0])
}

func TestLoad_ModuleShapes(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "exports property", src: `exports.h = function(next, a) { return a * 2; };`},
		{name: "completion value", src: `({ h: (next, a) => a * 2 })`},
		{name: "factory", src: `module.exports = function() { const k = 2; return { h: (next, a) => a * k }; };`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := load(t, tt.src)
			res, err := call(t, set, "h", nil, 21)
			require.NoError(t, err)
			assert.Equal(t, int64(42), res)
		})
	}
}

func TestHandler_NextWithoutArgsForwardsOriginal(t *testing.T) {
	set := load(t, `module.exports = { h: (next) => next() };`)

	var got []any
	_, err := call(t, set, "h", func(_ context.Context, args ...any) (any, error) {
		got = args
		return nil, nil
	}, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", 1}, got)
}

func TestHandler_Errors(t *testing.T) {
	t.Run("thrown error", func(t *testing.T) {
		set := load(t, `module.exports = { h() { throw new Error("boom"); } };`)
		_, err := call(t, set, "h", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("next error is preserved", func(t *testing.T) {
		sentinel := errors.New("not found")
		set := load(t, `module.exports = { h: (next, v) => next(v) };`)
		_, err := call(t, set, "h", func(context.Context, ...any) (any, error) {
			return nil, sentinel
		}, "v")
		assert.ErrorIs(t, err, sentinel)
	})

	t.Run("context cancellation", func(t *testing.T) {
		set := load(t, `module.exports = { h() { for (;;) {} } };`)
		h, _ := set.Handler("h")

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := h(ctx, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestHandler_FreshRuntimePerInvocation(t *testing.T) {
	set := load(t, `
let count = 0;
module.exports = { h() { count += 1; return count; } };
`)
	for i := 0; i < 3; i++ {
		res, err := call(t, set, "h", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "syntax error", src: `module.exports = {`, want: "failed to compile js module"},
		{name: "no export", src: `const x = 1;`, want: "must export an object"},
		{name: "primitive export", src: `module.exports = 42;`, want: "must export an object"},
		{name: "runtime error", src: `throw new Error("init failed");`, want: "init failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Load(context.Background(), writeScript(t, tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoader_WithManager(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vars.js"), []byte(resolveScript), 0o644))

	registry := hooks.NewLoaderRegistry()
	registry.RegisterExtension(".js", New())

	p := &plugins.Plugin{
		ID:    "js-vars",
		Dir:   dir,
		Hooks: map[string]plugins.HookDeclaration{"configurationVariables": plugins.Reference("./vars.js")},
	}
	m := hooks.NewManager([]*plugins.Plugin{p}, hooks.WithLoaders(registry), hooks.WithLogger(observability.NewDiscardLogger()))

	def := func(_ context.Context, args ...any) (any, error) {
		return "env:" + args[0].(*variable).name, nil
	}

	res, err := m.RunChain(context.Background(), "configurationVariables", "resolve", def, &variable{name: "GREETING"})
	require.NoError(t, err)
	assert.Equal(t, "hello", res)

	res, err = m.RunChain(context.Background(), "configurationVariables", "resolve", def, &variable{name: "PATH"})
	require.NoError(t, err)
	assert.Equal(t, "env:PATH", res)
}
