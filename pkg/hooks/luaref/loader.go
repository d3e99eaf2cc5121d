package luaref

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/platinummonkey/hookrt/pkg/plugins"
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// Loader loads handler sets from Lua scripts. A script returns a table
// mapping hook names to functions, or a function that builds such a table.
//
// Every hook function receives next followed by the hook arguments:
//
//	return {
//	  resolve = function(next, variable, coordinator)
//	    if variable.name == "GREETING" then return "hello" end
//	    return next(variable, coordinator)
//	  end,
//	}
//
// Calling next with no arguments forwards the original arguments.
//
// Scripts are compiled once. Each invocation runs in a fresh sandboxed
// state, so module level state does not survive between invocations and
// concurrent or reentrant invocations never share a state.
//
// The script body and its factory function run again on every hook
// invocation, and once more at load time to list the hook names. Side
// effects in either, such as print output, repeat on every call.
type Loader struct {
	logger *logrus.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger that receives script print output.
func WithLogger(logger *logrus.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// New creates a Lua loader.
func New(opts ...Option) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logrus.New()
	}
	return l
}

// Load compiles the script at path and returns its handler set.
func (l *Loader) Load(ctx context.Context, path string) (any, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lua module: %w", err)
	}

	chunk, err := parse.Parse(bytes.NewReader(src), path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lua module: %w", err)
	}
	proto, err := lua.Compile(chunk, path)
	if err != nil {
		return nil, fmt.Errorf("failed to compile lua module: %w", err)
	}

	m := &module{
		path:   path,
		proto:  proto,
		logger: l.logger.WithField("script", path),
	}

	names, err := m.hookNames(ctx)
	if err != nil {
		return nil, err
	}

	hooks := make(map[string]plugins.Handler, len(names))
	for _, name := range names {
		hooks[name] = m.handler(name)
	}
	return plugins.NewHandlerSet(filepath.Base(path), hooks), nil
}

type module struct {
	path   string
	proto  *lua.FunctionProto
	logger *logrus.Entry
}

// instantiate runs the compiled script in a new state and returns the state
// with the hook table. The caller closes the state.
func (m *module) instantiate(ctx context.Context) (*lua.LState, *lua.LTable, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	m.sandbox(L)
	L.SetContext(ctx)

	L.Push(L.NewFunctionFromProto(m.proto))
	if err := L.PCall(0, 1, nil); err != nil {
		L.Close()
		return nil, nil, fmt.Errorf("failed to run lua module: %w", err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	if fn, ok := ret.(*lua.LFunction); ok {
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
			L.Close()
			return nil, nil, fmt.Errorf("lua module factory failed: %w", err)
		}
		ret = L.Get(-1)
		L.Pop(1)
	}

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		L.Close()
		return nil, nil, fmt.Errorf("lua module must return a table of hook functions, got %s", ret.Type())
	}
	return L, tbl, nil
}

// sandbox opens the safe standard libraries only and routes print to the
// logger.
func (m *module) sandbox(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		m.logger.Info(strings.Join(parts, "\t"))
		return 0
	}))
}

func (m *module) hookNames(ctx context.Context) ([]string, error) {
	L, tbl, err := m.instantiate(ctx)
	if err != nil {
		return nil, err
	}
	defer L.Close()

	var names []string
	tbl.ForEach(func(k, v lua.LValue) {
		name, ok := k.(lua.LString)
		if !ok {
			return
		}
		if _, isFn := v.(*lua.LFunction); isFn {
			names = append(names, string(name))
		}
	})
	return names, nil
}

func (m *module) handler(hook string) plugins.Handler {
	return func(ctx context.Context, next plugins.Next, args ...any) (any, error) {
		L, tbl, err := m.instantiate(ctx)
		if err != nil {
			return nil, err
		}
		defer L.Close()

		fn, ok := L.GetField(tbl, hook).(*lua.LFunction)
		if !ok {
			return nil, fmt.Errorf("lua module %s no longer defines hook %q", m.path, hook)
		}

		b := newBridge(L)
		var nextErr error
		nextFn := L.NewFunction(func(L *lua.LState) int {
			forward := args
			if top := L.GetTop(); top > 0 {
				forward = make([]any, 0, top)
				for i := 1; i <= top; i++ {
					forward = append(forward, b.toGo(L.Get(i)))
				}
			}

			res, err := next(ctx, forward...)
			if err != nil {
				nextErr = err
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(b.toLua(res))
			return 1
		})

		callArgs := make([]lua.LValue, 0, len(args)+1)
		callArgs = append(callArgs, nextFn)
		for _, a := range args {
			callArgs = append(callArgs, b.toLua(a))
		}

		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, callArgs...); err != nil {
			if nextErr != nil {
				return nil, nextErr
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("lua hook %q in %s: %w", hook, m.path, err)
		}

		ret := L.Get(-1)
		L.Pop(1)
		return b.toGo(ret), nil
	}
}
