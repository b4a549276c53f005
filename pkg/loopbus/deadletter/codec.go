package deadletter

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/randalmurphal/loopbus/pkg/loopbus/value"
)

// wireValue is the stored form of one value. Kind names come from
// value.Kind.String, so Int32(1) and Int64(1) stay distinct and doubles
// keep NaN and the infinities.
type wireValue struct {
	Kind    string       `json:"k"`
	Bool    bool         `json:"b,omitempty"`
	Int     int64        `json:"i,omitempty"`
	Uint    uint64       `json:"u,omitempty"`
	Float   string       `json:"f,omitempty"`
	Str     string       `json:"s,omitempty"`
	Members []wireMember `json:"m,omitempty"`
	Elems   []wireValue  `json:"a,omitempty"`
}

type wireMember struct {
	Key   string    `json:"key"`
	Value wireValue `json:"value"`
}

// encodeArgs serializes args with their exact kinds.
func encodeArgs(args value.Args) ([]byte, error) {
	out := make([]wireValue, args.Len())
	for i, v := range args.Values() {
		out[i] = toWire(v)
	}
	return json.Marshal(out)
}

// decodeArgs reverses encodeArgs.
func decodeArgs(data []byte) (value.Args, error) {
	var in []wireValue
	if err := json.Unmarshal(data, &in); err != nil {
		return value.Args{}, fmt.Errorf("decode args: %w", err)
	}
	vals := make([]value.Value, len(in))
	for i, w := range in {
		v, err := fromWire(w)
		if err != nil {
			return value.Args{}, fmt.Errorf("decode args: argument %d: %w", i, err)
		}
		vals[i] = v
	}
	return value.NewArgs(vals...), nil
}

func toWire(v value.Value) wireValue {
	w := wireValue{Kind: v.Kind().String()}
	switch v.Kind() {
	case value.KindBool:
		w.Bool, _ = v.AsBool()
	case value.KindInt32, value.KindInt64:
		w.Int, _ = v.AsInt64()
	case value.KindUint32, value.KindUint64:
		w.Uint, _ = v.AsUint64()
	case value.KindDouble:
		f, _ := v.AsFloat64()
		w.Float = strconv.FormatFloat(f, 'g', -1, 64)
	case value.KindString:
		w.Str, _ = v.AsString()
	case value.KindObject:
		for _, m := range v.Members() {
			w.Members = append(w.Members, wireMember{Key: m.Key, Value: toWire(m.Value)})
		}
	case value.KindArray:
		for _, e := range v.Elems() {
			w.Elems = append(w.Elems, toWire(e))
		}
	}
	return w
}

func fromWire(w wireValue) (value.Value, error) {
	switch w.Kind {
	case "null":
		return value.Null(), nil
	case "bool":
		return value.Bool(w.Bool), nil
	case "int32":
		return value.Int32(int32(w.Int)), nil
	case "int64":
		return value.Int64(w.Int), nil
	case "uint32":
		return value.Uint32(uint32(w.Uint)), nil
	case "uint64":
		return value.Uint64(w.Uint), nil
	case "double":
		f, err := strconv.ParseFloat(w.Float, 64)
		if err != nil {
			return value.Value{}, err
		}
		return value.Double(f), nil
	case "string":
		return value.String(w.Str), nil
	case "object":
		members := make([]value.Member, len(w.Members))
		for i, m := range w.Members {
			v, err := fromWire(m.Value)
			if err != nil {
				return value.Value{}, fmt.Errorf("member %q: %w", m.Key, err)
			}
			members[i] = value.Member{Key: m.Key, Value: v}
		}
		return value.Object(members...), nil
	case "array":
		elems := make([]value.Value, len(w.Elems))
		for i, e := range w.Elems {
			v, err := fromWire(e)
			if err != nil {
				return value.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = v
		}
		return value.Array(elems...), nil
	default:
		return value.Value{}, fmt.Errorf("unknown kind %q", w.Kind)
	}
}
