package types

import (
	"encoding/json"
	"testing"
)

func TestValueKindsAndAccessors(t *testing.T) {
	t.Parallel()

	s := String("acme")
	if v, ok := s.AsString(); !ok || v != "acme" {
		t.Errorf("expected string 'acme', got %v (ok=%v)", v, ok)
	}
	if _, ok := s.AsInt(); ok {
		t.Error("string value must not read as int")
	}

	i := Int(42)
	if v, ok := i.AsInt(); !ok || v != 42 {
		t.Errorf("expected int 42, got %v (ok=%v)", v, ok)
	}
	// Ints convert to float on demand.
	if v, ok := i.AsFloat(); !ok || v != 42.0 {
		t.Errorf("expected float 42.0 from int, got %v (ok=%v)", v, ok)
	}

	f := Float(0.35)
	if v, ok := f.AsFloat(); !ok || v != 0.35 {
		t.Errorf("expected float 0.35, got %v (ok=%v)", v, ok)
	}
	if _, ok := f.AsInt(); ok {
		t.Error("float value must not read as int")
	}

	b := Bool(true)
	if v, ok := b.AsBool(); !ok || !v {
		t.Errorf("expected bool true, got %v (ok=%v)", v, ok)
	}

	m := Map(map[string]Value{"ticker": String("ACME")})
	inner, ok := m.AsMap()
	if !ok {
		t.Fatal("expected map value")
	}
	if v, _ := inner["ticker"].AsString(); v != "ACME" {
		t.Errorf("expected nested string 'ACME', got %q", v)
	}
}

func TestValueEqual(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same string", String("x"), String("x"), true},
		{"different string", String("x"), String("y"), false},
		{"int vs float", Int(1), Float(1), false},
		{"same map", Map(map[string]Value{"k": Int(1)}), Map(map[string]Value{"k": Int(1)}), true},
		{"map extra key", Map(map[string]Value{"k": Int(1)}), Map(map[string]Value{"k": Int(1), "j": Int(2)}), false},
	}
	for _, tc := range cases {
		if got := tc.a.Equal(tc.b); got != tc.want {
			t.Errorf("%s: Equal = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	t.Parallel()

	props := Properties{
		"name":       String("Acme Holdings"),
		"employees":  Int(120),
		"confidence": Float(0.85),
		"listed":     Bool(true),
		"address":    Map(map[string]Value{"city": String("Seoul")}),
	}

	data, err := json.Marshal(props)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Properties
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !props.Equal(decoded) {
		t.Errorf("round trip changed properties: %v != %v", props, decoded)
	}
	// Integral JSON numbers decode as ints, not floats.
	if _, ok := decoded["employees"].AsInt(); !ok {
		t.Error("expected employees to decode as int")
	}
	if _, ok := decoded["confidence"].AsFloat(); !ok {
		t.Error("expected confidence to decode as float")
	}
}

func TestPropertiesClone(t *testing.T) {
	t.Parallel()

	original := Properties{"name": String("v")}
	clone := original.Clone()
	clone["name"] = String("mutated")
	clone["extra"] = Int(1)

	if v, _ := original["name"].AsString(); v != "v" {
		t.Error("mutating a clone must not affect the original")
	}
	if len(original) != 1 {
		t.Errorf("original grew to %d entries", len(original))
	}
	if Properties(nil).Clone() != nil {
		t.Error("cloning nil must stay nil")
	}
}

func TestPropertySchemaValidate(t *testing.T) {
	t.Parallel()

	schema := PropertySchema{"name": ValueKindString, "score": ValueKindFloat}

	if err := schema.Validate(Properties{"name": String("a"), "score": Float(0.5)}); err != nil {
		t.Errorf("valid properties rejected: %v", err)
	}
	if err := schema.Validate(Properties{"name": Int(1)}); err == nil {
		t.Error("wrong kind must be rejected")
	}
}
