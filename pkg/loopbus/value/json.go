package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned by ParseJSON for malformed input.
var ErrInvalidJSON = errors.New("value: invalid json")

// ParseJSON decodes a JSON document into a Value. Object member order is
// preserved. Integers become KindInt32 when they fit, then KindInt64, then
// KindUint64; numbers with a fraction or exponent become KindDouble.
func ParseJSON(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return Value{}, ErrInvalidJSON
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Value{}
	case gjson.False:
		return Bool(false)
	case gjson.True:
		return Bool(true)
	case gjson.String:
		return String(r.Str)
	case gjson.Number:
		return numberFromRaw(r.Raw, r.Num)
	case gjson.JSON:
		if r.IsArray() {
			var elems []Value
			r.ForEach(func(_, v gjson.Result) bool {
				elems = append(elems, fromResult(v))
				return true
			})
			return Value{kind: KindArray, elems: elems}
		}
		var members []Member
		r.ForEach(func(k, v gjson.Result) bool {
			members = append(members, Member{Key: k.Str, Value: fromResult(v)})
			return true
		})
		return Value{kind: KindObject, members: members}
	}
	return Value{}
}

func numberFromRaw(raw string, num float64) Value {
	if strings.ContainsAny(raw, ".eE") {
		return Double(num)
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return Int32(int32(i))
		}
		return Int64(i)
	}
	if u, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return Uint64(u)
	}
	return Double(num)
}

// MarshalJSON encodes v, keeping object member order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes data with ParseJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindInt32, KindInt64:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindUint32, KindUint64:
		buf.WriteString(strconv.FormatUint(v.u, 10))
	case KindDouble:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return fmt.Errorf("value: cannot encode %v as json", v.f)
		}
		buf.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case KindString:
		writeJSONString(buf, v.s)
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, m.Key)
			buf.WriteByte(':')
			if err := m.Value.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.elems {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("value: unknown kind %d", v.kind)
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	// json.Marshal on a string cannot fail.
	data, _ := json.Marshal(s)
	buf.Write(data)
}
