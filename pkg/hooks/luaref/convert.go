package luaref

import (
	"fmt"
	"reflect"

	"github.com/platinummonkey/hookrt/pkg/plugins"
	lua "github.com/yuin/gopher-lua"
)

// bridge converts values between Go and one Lua state. Tables built from
// plugins.Exporter arguments remember the Go value they came from, so a
// script that hands such a table to next passes the original value on.
type bridge struct {
	L      *lua.LState
	origin map[*lua.LTable]any
}

func newBridge(L *lua.LState) *bridge {
	return &bridge{L: L, origin: make(map[*lua.LTable]any)}
}

func (b *bridge) toLua(v any) lua.LValue {
	if v == nil {
		return lua.LNil
	}

	switch val := v.(type) {
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case []string:
		t := b.L.NewTable()
		for i, s := range val {
			t.RawSetInt(i+1, lua.LString(s))
		}
		return t
	case []any:
		t := b.L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, b.toLua(item))
		}
		return t
	case map[string]string:
		t := b.L.NewTable()
		for k, s := range val {
			t.RawSetString(k, lua.LString(s))
		}
		return t
	case map[string]any:
		return b.mapToTable(val)
	case plugins.Exporter:
		t := b.mapToTable(val.Export())
		b.origin[t] = v
		return t
	case error:
		return lua.LString(val.Error())
	case fmt.Stringer:
		ud := b.L.NewUserData()
		ud.Value = v
		return ud
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		t := b.L.NewTable()
		for i := 0; i < rv.Len(); i++ {
			t.RawSetInt(i+1, b.toLua(rv.Index(i).Interface()))
		}
		return t
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			t := b.L.NewTable()
			iter := rv.MapRange()
			for iter.Next() {
				t.RawSetString(iter.Key().String(), b.toLua(iter.Value().Interface()))
			}
			return t
		}
	}

	ud := b.L.NewUserData()
	ud.Value = v
	return ud
}

func (b *bridge) mapToTable(m map[string]any) *lua.LTable {
	t := b.L.NewTable()
	for k, item := range m {
		t.RawSetString(k, b.toLua(item))
	}
	return t
}

func (b *bridge) toGo(lv lua.LValue) any {
	return b.toGoVisited(lv, make(map[*lua.LTable]bool))
}

func (b *bridge) toGoVisited(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case nil, *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LUserData:
		return v.Value
	case *lua.LTable:
		if orig, ok := b.origin[v]; ok {
			return orig
		}
		if visited[v] {
			return nil
		}
		visited[v] = true
		return b.tableToGo(v, visited)
	default:
		return nil
	}
}

// tableToGo converts a sequence to []any and anything else to map[string]any.
func (b *bridge) tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && n == count {
		arr := make([]any, n)
		for i := 1; i <= n; i++ {
			arr[i-1] = b.toGoVisited(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		default:
			key = k.String()
		}
		m[key] = b.toGoVisited(v, visited)
	})
	return m
}
