package jsref

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dop251/goja"
	"github.com/platinummonkey/hookrt/pkg/plugins"
	"github.com/sirupsen/logrus"
)

// Loader loads handler sets from JavaScript files. A script exports an
// object mapping hook names to functions, either through module.exports or
// as its completion value, or a function returning such an object.
//
// Every hook function receives next followed by the hook arguments:
//
//	module.exports = {
//	  resolve(next, variable, coordinator) {
//	    if (variable.name === "GREETING") return "hello";
//	    return next(variable, coordinator);
//	  },
//	};
//
// Calling next with no arguments forwards the original arguments. Hooks run
// synchronously; a returned promise is not awaited.
//
// Scripts are compiled once and every invocation runs in a fresh runtime.
// The script body and any exported factory run again on every hook
// invocation, and once at load time to list the hook names, so their side
// effects such as console output repeat on every call.
type Loader struct {
	logger *logrus.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger that receives console output.
func WithLogger(logger *logrus.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// New creates a JavaScript loader.
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
		return nil, fmt.Errorf("failed to read js module: %w", err)
	}

	prog, err := goja.Compile(path, string(src), false)
	if err != nil {
		return nil, fmt.Errorf("failed to compile js module: %w", err)
	}

	m := &module{
		path:   path,
		prog:   prog,
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
	prog   *goja.Program
	logger *logrus.Entry
}

// instantiate runs the program in a new runtime and returns the exported
// hook object. The returned stop function detaches ctx from the runtime.
func (m *module) instantiate(ctx context.Context) (*goja.Runtime, *goja.Object, func(), error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})

	fail := func(err error) (*goja.Runtime, *goja.Object, func(), error) {
		stop()
		return nil, nil, nil, err
	}

	moduleObj := vm.NewObject()
	exportsObj := vm.NewObject()
	if err := moduleObj.Set("exports", exportsObj); err != nil {
		return fail(err)
	}
	if err := vm.Set("module", moduleObj); err != nil {
		return fail(err)
	}
	if err := vm.Set("exports", exportsObj); err != nil {
		return fail(err)
	}
	if err := m.setupConsole(vm); err != nil {
		return fail(err)
	}

	completion, err := vm.RunProgram(m.prog)
	if err != nil {
		return fail(m.scriptError(ctx, "failed to run js module", err))
	}

	exported := moduleObj.Get("exports")
	if obj, ok := exported.(*goja.Object); !ok || (obj == exportsObj && len(obj.Keys()) == 0) {
		exported = completion
	}

	if factory, ok := goja.AssertFunction(exported); ok {
		exported, err = factory(goja.Undefined())
		if err != nil {
			return fail(m.scriptError(ctx, "js module factory failed", err))
		}
	}

	if exported == nil || goja.IsUndefined(exported) || goja.IsNull(exported) {
		return fail(errors.New("js module must export an object of hook functions"))
	}
	obj, ok := exported.(*goja.Object)
	if !ok {
		return fail(fmt.Errorf("js module must export an object of hook functions, got %s", exported.ExportType()))
	}
	return vm, obj, func() { stop() }, nil
}

// setupConsole routes console output to the logger.
func (m *module) setupConsole(vm *goja.Runtime) error {
	console := vm.NewObject()
	logFn := func(level logrus.Level) func(call goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			m.logger.Log(level, strings.Join(parts, " "))
			return goja.Undefined()
		}
	}

	for name, level := range map[string]logrus.Level{
		"log":   logrus.InfoLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"debug": logrus.DebugLevel,
	} {
		if err := console.Set(name, logFn(level)); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

func (m *module) hookNames(ctx context.Context) ([]string, error) {
	_, obj, stop, err := m.instantiate(ctx)
	if err != nil {
		return nil, err
	}
	defer stop()

	var names []string
	for _, key := range obj.Keys() {
		if _, ok := goja.AssertFunction(obj.Get(key)); ok {
			names = append(names, key)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *module) handler(hook string) plugins.Handler {
	return func(ctx context.Context, next plugins.Next, args ...any) (any, error) {
		vm, obj, stop, err := m.instantiate(ctx)
		if err != nil {
			return nil, err
		}
		defer stop()

		fn, ok := goja.AssertFunction(obj.Get(hook))
		if !ok {
			return nil, fmt.Errorf("js module %s no longer defines hook %q", m.path, hook)
		}

		b := newBridge(vm)
		var nextErr error
		nextFn := func(call goja.FunctionCall) goja.Value {
			forward := args
			if len(call.Arguments) > 0 {
				forward = make([]any, len(call.Arguments))
				for i, arg := range call.Arguments {
					forward[i] = b.toGo(arg)
				}
			}

			res, err := next(ctx, forward...)
			if err != nil {
				nextErr = err
				panic(vm.NewGoError(err))
			}
			return b.toJS(res)
		}

		callArgs := make([]goja.Value, 0, len(args)+1)
		callArgs = append(callArgs, vm.ToValue(nextFn))
		for _, a := range args {
			callArgs = append(callArgs, b.toJS(a))
		}

		ret, err := fn(goja.Undefined(), callArgs...)
		if err != nil {
			if nextErr != nil {
				return nil, nextErr
			}
			return nil, m.scriptError(ctx, fmt.Sprintf("js hook %q in %s", hook, m.path), err)
		}
		return b.toGo(ret), nil
	}
}

func (m *module) scriptError(ctx context.Context, msg string, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
