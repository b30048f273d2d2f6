package types

import (
	"testing"
	"time"
)

func TestObjectIsValidAt(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	open := &Object{ValidFrom: from}
	closed := &Object{ValidFrom: from, ValidUntil: &until}

	cases := []struct {
		name string
		obj  *Object
		at   time.Time
		want bool
	}{
		{"before valid_from", open, from.Add(-time.Second), false},
		{"exactly valid_from", open, from, true},
		{"open interval far future", open, from.AddDate(10, 0, 0), true},
		{"inside closed interval", closed, from.AddDate(0, 2, 0), true},
		{"exactly valid_until is excluded", closed, until, false},
		{"after valid_until", closed, until.Add(time.Second), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.obj.IsValidAt(tc.at); got != tc.want {
				t.Errorf("IsValidAt(%v) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestObjectValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Object {
		return &Object{
			ID:          "obj-1",
			Type:        ObjectTypeCompany,
			IdentityKey: "company:acme",
			Version:     1,
			ValidFrom:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Confidence:  0.9,
		}
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid object rejected: %v", err)
	}

	t.Run("empty id", func(t *testing.T) {
		o := valid()
		o.ID = ""
		if err := o.Validate(); err != ErrEmptyID {
			t.Errorf("got %v, want ErrEmptyID", err)
		}
	})
	t.Run("empty type", func(t *testing.T) {
		o := valid()
		o.Type = ""
		if err := o.Validate(); err != ErrEmptyObjectType {
			t.Errorf("got %v, want ErrEmptyObjectType", err)
		}
	})
	t.Run("empty identity key", func(t *testing.T) {
		o := valid()
		o.IdentityKey = ""
		if err := o.Validate(); err != ErrEmptyIdentityKey {
			t.Errorf("got %v, want ErrEmptyIdentityKey", err)
		}
	})
	t.Run("confidence out of range", func(t *testing.T) {
		o := valid()
		o.Confidence = 1.2
		if err := o.Validate(); err != ErrOutOfRange {
			t.Errorf("got %v, want ErrOutOfRange", err)
		}
	})
	t.Run("inverted interval", func(t *testing.T) {
		o := valid()
		before := o.ValidFrom.Add(-time.Hour)
		o.ValidUntil = &before
		if err := o.Validate(); err != ErrInvalidInterval {
			t.Errorf("got %v, want ErrInvalidInterval", err)
		}
	})
	t.Run("zero length interval", func(t *testing.T) {
		o := valid()
		same := o.ValidFrom
		o.ValidUntil = &same
		if err := o.Validate(); err != ErrInvalidInterval {
			t.Errorf("got %v, want ErrInvalidInterval", err)
		}
	})
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	o := &Object{IdentityKey: "company:acme"}
	if got := o.Name(); got != "company:acme" {
		t.Errorf("fallback Name() = %q, want identity key", got)
	}

	o.Properties = Properties{"name": String("Acme Corp")}
	if got := o.Name(); got != "Acme Corp" {
		t.Errorf("Name() = %q, want %q", got, "Acme Corp")
	}

	// A non-string name property falls back too.
	o.Properties = Properties{"name": Int(7)}
	if got := o.Name(); got != "company:acme" {
		t.Errorf("Name() with non-string property = %q, want identity key", got)
	}
}

func TestSignalStatusCanTransition(t *testing.T) {
	t.Parallel()

	allowed := []struct{ from, to SignalStatus }{
		{StatusDetected, StatusInvestigating},
		{StatusInvestigating, StatusConfirmed},
		{StatusInvestigating, StatusFalsePositive},
		{StatusConfirmed, StatusResolved},
		{StatusFalsePositive, StatusResolved},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransition(tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to SignalStatus }{
		{StatusDetected, StatusConfirmed},
		{StatusDetected, StatusResolved},
		{StatusConfirmed, StatusInvestigating},
		{StatusResolved, StatusDetected},
		{StatusResolved, StatusResolved},
		{StatusFalsePositive, StatusConfirmed},
	}
	for _, tc := range denied {
		if tc.from.CanTransition(tc.to) {
			t.Errorf("%s -> %s should be denied", tc.from, tc.to)
		}
	}
}
