package value

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// UnsupportedTypeError is returned by FromGo for Go values with no dynamic
// value equivalent.
type UnsupportedTypeError struct {
	Type reflect.Type
}

// Error implements the error interface.
func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("value: unsupported Go type %s", e.Type)
}

// FromGo converts a Go value into a Value, deep-copying maps and slices.
//
// Mapping:
//   - nil, nil pointers: null
//   - int8, int16, int32: KindInt32; int, int64: KindInt64
//   - uint8, uint16, uint32: KindUint32; uint, uint64, uintptr: KindUint64
//   - float32, float64: KindDouble
//   - string, []byte: KindString
//   - json.Number: KindInt64 when integral, KindDouble otherwise
//   - slices and arrays: KindArray
//   - maps with string keys: KindObject with keys in sorted order
//   - Value and Args (as an array) pass through
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return val, nil
	case Args:
		return val.Array(), nil
	case bool:
		return Bool(val), nil
	case int8:
		return Int32(int32(val)), nil
	case int16:
		return Int32(int32(val)), nil
	case int32:
		return Int32(val), nil
	case int:
		return Int64(int64(val)), nil
	case int64:
		return Int64(val), nil
	case uint8:
		return Uint32(uint32(val)), nil
	case uint16:
		return Uint32(uint32(val)), nil
	case uint32:
		return Uint32(val), nil
	case uint:
		return Uint64(uint64(val)), nil
	case uint64:
		return Uint64(val), nil
	case uintptr:
		return Uint64(uint64(val)), nil
	case float32:
		return Double(float64(val)), nil
	case float64:
		return Double(val), nil
	case string:
		return String(val), nil
	case []byte:
		return String(string(val)), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int64(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid json.Number %q: %w", val.String(), err)
		}
		return Double(f), nil
	case []any:
		elems := make([]Value, len(val))
		for i, e := range val {
			ev, err := FromGo(e)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			elems[i] = ev
		}
		return Value{kind: KindArray, elems: elems}, nil
	case map[string]any:
		return objectFromMap(val)
	}
	return fromReflect(reflect.ValueOf(v))
}

// MustFromGo is like FromGo but panics on unsupported types.
// Intended for literals in tests and examples.
func MustFromGo(v any) Value {
	out, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return out
}

// ArgsFromGo converts each Go value with FromGo.
func ArgsFromGo(vs ...any) (Args, error) {
	values := make([]Value, len(vs))
	for i, v := range vs {
		cv, err := FromGo(v)
		if err != nil {
			return Args{}, fmt.Errorf("argument %d: %w", i, err)
		}
		values[i] = cv
	}
	return Args{values: values}, nil
}

func objectFromMap(m map[string]any) (Value, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	members := make([]Member, len(keys))
	for i, k := range keys {
		mv, err := FromGo(m[k])
		if err != nil {
			return Value{}, fmt.Errorf("key %q: %w", k, err)
		}
		members[i] = Member{Key: k, Value: mv}
	}
	return Value{kind: KindObject, members: members}, nil
}

func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Value{}, nil
		}
		return FromGo(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return Value{kind: KindArray}, nil
		}
		fallthrough
	case reflect.Array:
		elems := make([]Value, rv.Len())
		for i := range elems {
			ev, err := FromGo(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			elems[i] = ev
		}
		return Value{kind: KindArray, elems: elems}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, &UnsupportedTypeError{Type: rv.Type()}
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return objectFromMap(m)
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return Int32(int32(rv.Int())), nil
	case reflect.Int, reflect.Int64:
		return Int64(rv.Int()), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return Uint32(uint32(rv.Uint())), nil
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return Uint64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return Double(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	}
	if !rv.IsValid() {
		return Value{}, nil
	}
	return Value{}, &UnsupportedTypeError{Type: rv.Type()}
}

// Number returns the narrowest integer kind for an integral float, or a
// double. Script bridges use it since their runtimes only have float64.
func Number(f float64) Value {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		if f >= math.MinInt32 && f <= math.MaxInt32 {
			return Int32(int32(f))
		}
		if f >= math.MinInt64 && f < math.MaxInt64 {
			return Int64(int64(f))
		}
	}
	return Double(f)
}
