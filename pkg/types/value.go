package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ValueKind discriminates the closed set of property value types.
type ValueKind string

const (
	ValueKindString ValueKind = "string"
	ValueKindInt    ValueKind = "int"
	ValueKindFloat  ValueKind = "float"
	ValueKindBool   ValueKind = "bool"
	ValueKindMap    ValueKind = "map"
)

// ErrUnknownValueKind is returned when decoding a property value whose
// JSON shape maps to none of the closed kinds.
var ErrUnknownValueKind = errors.New("unknown property value kind")

// Value is a closed tagged union over the property types Objects and Links
// may carry: string, int, float, bool, or a nested map of Values. It is
// deliberately not an interface{} bag; the kind is explicit and checked.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
	m    map[string]Value
}

// String constructs a string Value.
func String(s string) Value { return Value{kind: ValueKindString, s: s} }

// Int constructs an int Value.
func Int(i int64) Value { return Value{kind: ValueKindInt, i: i} }

// Float constructs a float Value.
func Float(f float64) Value { return Value{kind: ValueKindFloat, f: f} }

// Bool constructs a bool Value.
func Bool(b bool) Value { return Value{kind: ValueKindBool, b: b} }

// Map constructs a nested map Value. The map is used as given; callers
// must not mutate it afterwards.
func Map(m map[string]Value) Value { return Value{kind: ValueKindMap, m: m} }

// Kind reports the kind of the value.
func (v Value) Kind() ValueKind { return v.kind }

// AsString returns the string payload and whether the value holds one.
func (v Value) AsString() (string, bool) { return v.s, v.kind == ValueKindString }

// AsInt returns the int payload and whether the value holds one.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == ValueKindInt }

// AsFloat returns the numeric payload as float64. Int values convert.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case ValueKindFloat:
		return v.f, true
	case ValueKindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// AsBool returns the bool payload and whether the value holds one.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == ValueKindBool }

// AsMap returns the nested map payload and whether the value holds one.
func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == ValueKindMap }

// Equal reports structural equality between two values.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case ValueKindString:
		return v.s == o.s
	case ValueKindInt:
		return v.i == o.i
	case ValueKindFloat:
		return v.f == o.f
	case ValueKindBool:
		return v.b == o.b
	case ValueKindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, vv := range v.m {
			ov, ok := o.m[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON encodes the value as its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueKindString:
		return json.Marshal(v.s)
	case ValueKindInt:
		return json.Marshal(v.i)
	case ValueKindFloat:
		return json.Marshal(v.f)
	case ValueKindBool:
		return json.Marshal(v.b)
	case ValueKindMap:
		return json.Marshal(v.m)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownValueKind, v.kind)
}

// UnmarshalJSON decodes a JSON scalar or object into the union. JSON
// numbers without a fractional part decode as int.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	decoded, err := fromJSONValue(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func fromJSONValue(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, rv := range t {
			nested, err := fromJSONValue(rv)
			if err != nil {
				return Value{}, err
			}
			m[k] = nested
		}
		return Map(m), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnknownValueKind, raw)
	}
}

// Properties is the open, schema-free key -> Value bag carried by Objects
// and Links.
type Properties map[string]Value

// Equal reports structural equality between two property bags.
func (p Properties) Equal(o Properties) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy of the bag. Values are immutable except for
// nested maps, which callers are expected not to mutate.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Float looks up a numeric property, converting ints.
func (p Properties) Float(key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	return v.AsFloat()
}

// PropertySchema declares expected value kinds per property key for one
// object type. Validation is lazy and optional: keys absent from the
// schema are accepted, declared keys must match their kind.
type PropertySchema map[string]ValueKind

// Validate checks the given bag against the schema.
func (s PropertySchema) Validate(props Properties) error {
	for key, kind := range s {
		v, ok := props[key]
		if !ok {
			continue
		}
		if v.Kind() != kind {
			return fmt.Errorf("property %q: expected %s, got %s", key, kind, v.Kind())
		}
	}
	return nil
}
