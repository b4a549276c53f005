package script

import (
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/randalmurphal/loopbus/pkg/loopbus/value"
)

// ToValue converts a Lua value into a bus value. Functions, userdata and
// threads have no bus representation and become null, as do tables that
// contain themselves.
func ToValue(lv lua.LValue) value.Value {
	return toValue(lv, make(map[*lua.LTable]bool))
}

func toValue(lv lua.LValue, visited map[*lua.LTable]bool) value.Value {
	switch v := lv.(type) {
	case nil, *lua.LNilType:
		return value.Null()
	case lua.LBool:
		return value.Bool(bool(v))
	case lua.LNumber:
		return value.Number(float64(v))
	case lua.LString:
		return value.String(string(v))
	case *lua.LTable:
		if visited[v] {
			return value.Null()
		}
		visited[v] = true
		defer delete(visited, v)
		return tableToValue(v, visited)
	default:
		return value.Null()
	}
}

func tableToValue(t *lua.LTable, visited map[*lua.LTable]bool) value.Value {
	if n, ok := sequenceLen(t); ok {
		elems := make([]value.Value, n)
		for i := 1; i <= n; i++ {
			elems[i-1] = toValue(t.RawGetInt(i), visited)
		}
		return value.Array(elems...)
	}

	type entry struct {
		key string
		val lua.LValue
	}
	var entries []entry
	t.ForEach(func(k, v lua.LValue) {
		entries = append(entries, entry{key: k.String(), val: v})
	})
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	members := make([]value.Member, len(entries))
	for i, e := range entries {
		members[i] = value.Member{Key: e.key, Value: toValue(e.val, visited)}
	}
	return value.Object(members...)
}

// sequenceLen reports whether every key of t is an integer in 1..n with no
// gaps. An empty table is not a sequence.
func sequenceLen(t *lua.LTable) (int, bool) {
	count, maxN := 0, 0
	isSeq := true
	t.ForEach(func(k, _ lua.LValue) {
		count++
		kn, ok := k.(lua.LNumber)
		if !ok {
			isSeq = false
			return
		}
		n := int(kn)
		if float64(n) != float64(kn) || n < 1 {
			isSeq = false
			return
		}
		if n > maxN {
			maxN = n
		}
	})
	if !isSeq || count == 0 || count != maxN {
		return 0, false
	}
	return maxN, true
}

// FromValue converts a bus value into a Lua value owned by L.
func FromValue(L *lua.LState, v value.Value) lua.LValue {
	switch v.Kind() {
	case value.KindNull:
		return lua.LNil
	case value.KindBool:
		b, _ := v.AsBool()
		return lua.LBool(b)
	case value.KindString:
		s, _ := v.AsString()
		return lua.LString(s)
	case value.KindArray:
		t := L.CreateTable(v.Len(), 0)
		for i, e := range v.Elems() {
			t.RawSetInt(i+1, FromValue(L, e))
		}
		return t
	case value.KindObject:
		t := L.CreateTable(0, v.Len())
		// First duplicate wins, as in value.Value.Get.
		seen := make(map[string]struct{}, v.Len())
		for _, m := range v.Members() {
			if _, dup := seen[m.Key]; dup {
				continue
			}
			seen[m.Key] = struct{}{}
			t.RawSetString(m.Key, FromValue(L, m.Value))
		}
		return t
	default:
		if f, ok := v.AsFloat64(); ok {
			return lua.LNumber(f)
		}
		return lua.LNil
	}
}

// argsFromStack converts stack slots from..top into an argument list.
func argsFromStack(L *lua.LState, from int) value.Args {
	top := L.GetTop()
	if top < from {
		return value.NewArgs()
	}
	vals := make([]value.Value, 0, top-from+1)
	for i := from; i <= top; i++ {
		vals = append(vals, ToValue(L.Get(i)))
	}
	return value.NewArgs(vals...)
}
