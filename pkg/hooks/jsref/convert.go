package jsref

import (
	"github.com/dop251/goja"
	"github.com/platinummonkey/hookrt/pkg/plugins"
)

// bridge converts values between Go and one runtime. Objects built from
// plugins.Exporter arguments remember the Go value they came from.
type bridge struct {
	vm     *goja.Runtime
	origin map[*goja.Object]any
}

func newBridge(vm *goja.Runtime) *bridge {
	return &bridge{vm: vm, origin: make(map[*goja.Object]any)}
}

func (b *bridge) toJS(v any) goja.Value {
	switch val := v.(type) {
	case nil:
		return goja.Null()
	case goja.Value:
		return val
	case plugins.Exporter:
		exported := b.vm.ToValue(val.Export())
		if obj, ok := exported.(*goja.Object); ok {
			b.origin[obj] = v
		}
		return exported
	case error:
		return b.vm.ToValue(val.Error())
	default:
		return b.vm.ToValue(v)
	}
}

func (b *bridge) toGo(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if obj, ok := v.(*goja.Object); ok {
		if orig, found := b.origin[obj]; found {
			return orig
		}
	}
	return v.Export()
}
