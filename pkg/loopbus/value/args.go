package value

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Args is an immutable ordered argument list.
// The zero Args is an empty list.
type Args struct {
	values []Value
}

// NewArgs returns an Args holding a copy of values.
func NewArgs(values ...Value) Args {
	if len(values) == 0 {
		return Args{}
	}
	return Args{values: append([]Value(nil), values...)}
}

// Single returns a one-element Args holding v.
func Single(v Value) Args {
	return Args{values: []Value{v}}
}

// FromArray spreads the elements of an array into an Args. Any other kind
// becomes a one-element Args.
func FromArray(v Value) Args {
	if v.kind != KindArray {
		return Single(v)
	}
	return NewArgs(v.elems...)
}

// Len returns the number of arguments.
func (a Args) Len() int { return len(a.values) }

// At returns argument i, or null when out of range.
func (a Args) At(i int) Value {
	if i < 0 || i >= len(a.values) {
		return Value{}
	}
	return a.values[i]
}

// Values returns a copy of the arguments.
func (a Args) Values() []Value {
	return append([]Value(nil), a.values...)
}

// Array returns the arguments as an array value.
func (a Args) Array() Value {
	return Array(a.values...)
}

// Interface converts every argument with Value.Interface.
func (a Args) Interface() []any {
	out := make([]any, len(a.values))
	for i, v := range a.values {
		out[i] = v.Interface()
	}
	return out
}

// Equal reports whether a and b hold deep-equal arguments in the same order.
func (a Args) Equal(b Args) bool {
	if len(a.values) != len(b.values) {
		return false
	}
	for i := range a.values {
		if !a.values[i].Equal(b.values[i]) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the arguments as a JSON array.
func (a Args) MarshalJSON() ([]byte, error) {
	return a.Array().MarshalJSON()
}

// UnmarshalJSON decodes a JSON array into the argument list. A non-array
// document becomes a single argument.
func (a *Args) UnmarshalJSON(data []byte) error {
	v, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*a = FromArray(v)
	return nil
}

// String renders the arguments as a JSON array.
func (a Args) String() string {
	parts := make([]string, len(a.values))
	for i, v := range a.values {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// LogValue implements slog.LogValuer.
func (a Args) LogValue() slog.Value {
	return slog.StringValue(a.String())
}

var _ json.Marshaler = Args{}
