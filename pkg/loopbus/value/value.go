package value

import (
	"fmt"
	"math"
)

// Kind identifies the variant held by a Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindDouble
	KindString
	KindObject
	KindArray
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindUint32:
		return "uint32"
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Member is one key/value pair of an object.
type Member struct {
	Key   string
	Value Value
}

// Value is an immutable dynamic value. The zero Value is null.
type Value struct {
	kind    Kind
	b       bool
	i       int64
	u       uint64
	f       float64
	s       string
	members []Member
	elems   []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int32 returns a signed 32-bit integer value.
func Int32(n int32) Value { return Value{kind: KindInt32, i: int64(n)} }

// Uint32 returns an unsigned 32-bit integer value.
func Uint32(n uint32) Value { return Value{kind: KindUint32, u: uint64(n)} }

// Int64 returns a signed 64-bit integer value.
func Int64(n int64) Value { return Value{kind: KindInt64, i: n} }

// Uint64 returns an unsigned 64-bit integer value.
func Uint64(n uint64) Value { return Value{kind: KindUint64, u: n} }

// Double returns a float64 value.
func Double(f float64) Value { return Value{kind: KindDouble, f: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Object returns an object value holding a copy of members.
func Object(members ...Member) Value {
	return Value{kind: KindObject, members: append([]Member(nil), members...)}
}

// Array returns an array value holding a copy of elems.
func Array(elems ...Value) Value {
	return Value{kind: KindArray, elems: append([]Value(nil), elems...)}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNumber reports whether v holds any numeric kind.
func (v Value) IsNumber() bool {
	switch v.kind {
	case KindInt32, KindUint32, KindInt64, KindUint64, KindDouble:
		return true
	}
	return false
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsInt64 returns v as an int64 if v is an integer kind that fits.
func (v Value) AsInt64() (int64, bool) {
	switch v.kind {
	case KindInt32, KindInt64:
		return v.i, true
	case KindUint32, KindUint64:
		if v.u > math.MaxInt64 {
			return 0, false
		}
		return int64(v.u), true
	}
	return 0, false
}

// AsUint64 returns v as a uint64 if v is a non-negative integer kind.
func (v Value) AsUint64() (uint64, bool) {
	switch v.kind {
	case KindUint32, KindUint64:
		return v.u, true
	case KindInt32, KindInt64:
		if v.i < 0 {
			return 0, false
		}
		return uint64(v.i), true
	}
	return 0, false
}

// AsFloat64 returns any numeric kind as a float64.
func (v Value) AsFloat64() (float64, bool) {
	switch v.kind {
	case KindDouble:
		return v.f, true
	case KindInt32, KindInt64:
		return float64(v.i), true
	case KindUint32, KindUint64:
		return float64(v.u), true
	}
	return 0, false
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// Len returns the number of members of an object or elements of an array.
func (v Value) Len() int {
	switch v.kind {
	case KindObject:
		return len(v.members)
	case KindArray:
		return len(v.elems)
	}
	return 0
}

// Index returns element i of an array, or null when out of range.
func (v Value) Index(i int) Value {
	if v.kind != KindArray || i < 0 || i >= len(v.elems) {
		return Value{}
	}
	return v.elems[i]
}

// Get returns the first member named key of an object.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Members returns a copy of the members of an object.
func (v Value) Members() []Member {
	if v.kind != KindObject {
		return nil
	}
	return append([]Member(nil), v.members...)
}

// Elems returns a copy of the elements of an array.
func (v Value) Elems() []Value {
	if v.kind != KindArray {
		return nil
	}
	return append([]Value(nil), v.elems...)
}

// Clone returns a deep copy of v with fresh backing storage.
func (v Value) Clone() Value {
	switch v.kind {
	case KindObject:
		members := make([]Member, len(v.members))
		for i, m := range v.members {
			members[i] = Member{Key: m.Key, Value: m.Value.Clone()}
		}
		return Value{kind: KindObject, members: members}
	case KindArray:
		elems := make([]Value, len(v.elems))
		for i, e := range v.elems {
			elems[i] = e.Clone()
		}
		return Value{kind: KindArray, elems: elems}
	}
	return v
}

// Equal reports deep equality. Kinds must match exactly, so Int32(1) and
// Int64(1) are different values.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt32, KindInt64:
		return v.i == o.i
	case KindUint32, KindUint64:
		return v.u == o.u
	case KindDouble:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindObject:
		if len(v.members) != len(o.members) {
			return false
		}
		for i := range v.members {
			if v.members[i].Key != o.members[i].Key || !v.members[i].Value.Equal(o.members[i].Value) {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.elems) != len(o.elems) {
			return false
		}
		for i := range v.elems {
			if !v.elems[i].Equal(o.elems[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface converts v to plain Go values. Objects become map[string]any
// (member order is lost, the first duplicate key wins) and arrays []any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt32:
		return int32(v.i)
	case KindInt64:
		return v.i
	case KindUint32:
		return uint32(v.u)
	case KindUint64:
		return v.u
	case KindDouble:
		return v.f
	case KindString:
		return v.s
	case KindObject:
		m := make(map[string]any, len(v.members))
		for _, member := range v.members {
			if _, exists := m[member.Key]; !exists {
				m[member.Key] = member.Value.Interface()
			}
		}
		return m
	case KindArray:
		out := make([]any, len(v.elems))
		for i, e := range v.elems {
			out[i] = e.Interface()
		}
		return out
	}
	return nil
}

// String renders v as JSON, falling back to a Go representation for values
// JSON cannot express (NaN, infinities).
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%v", v.Interface())
	}
	return string(data)
}
