package types

import (
	"time"
)

// ObjectType classifies the kind of real-world identity an Object records.
type ObjectType string

const (
	ObjectTypeCompany              ObjectType = "company"
	ObjectTypeOfficer              ObjectType = "officer"
	ObjectTypeFund                 ObjectType = "fund"
	ObjectTypeConvertibleBond      ObjectType = "convertible_bond"
	ObjectTypeTransaction          ObjectType = "transaction"
	ObjectTypeInformationAsymmetry ObjectType = "information_asymmetry"
	ObjectTypePowerAsymmetry       ObjectType = "power_asymmetry"
	ObjectTypeRelationalRiskSignal ObjectType = "relational_risk_signal"
	ObjectTypeRiskScore            ObjectType = "risk_score"
)

// Object is one version of a temporally-scoped entity record. Versions of
// the same real-world identity share an IdentityKey and form an append-only
// chain: closing a version sets ValidUntil, opening the next increments
// Version. Closed versions are never mutated.
type Object struct {
	ID          string     `json:"object_id" mapstructure:"object_id"`
	Type        ObjectType `json:"object_type" mapstructure:"object_type"`
	IdentityKey string     `json:"identity_key" mapstructure:"identity_key"`
	Version     int        `json:"version" mapstructure:"version"`

	// Temporal fields
	ValidFrom  time.Time  `json:"valid_from" mapstructure:"valid_from"`
	ValidUntil *time.Time `json:"valid_until,omitempty" mapstructure:"valid_until"`

	// Source lineage: ordered provenance references justifying this version.
	SourceDocuments []string `json:"source_documents,omitempty" mapstructure:"source_documents"`
	Confidence      float64  `json:"confidence" mapstructure:"confidence"`

	Properties Properties `json:"properties,omitempty" mapstructure:"properties"`

	CreatedAt time.Time `json:"created_at" mapstructure:"created_at"`
	UpdatedAt time.Time `json:"updated_at" mapstructure:"updated_at"`
}

// IsValidAt reports whether this version is valid at time t:
// ValidFrom <= t and (ValidUntil is nil or t < ValidUntil).
func (o *Object) IsValidAt(t time.Time) bool {
	if t.Before(o.ValidFrom) {
		return false
	}
	return o.ValidUntil == nil || t.Before(*o.ValidUntil)
}

// Name returns the display name property, falling back to the identity key.
func (o *Object) Name() string {
	if v, ok := o.Properties["name"]; ok {
		if s, ok := v.AsString(); ok {
			return s
		}
	}
	return o.IdentityKey
}

// Validate checks the invariants every stored version must hold.
func (o *Object) Validate() error {
	if o.ID == "" {
		return ErrEmptyID
	}
	if o.Type == "" {
		return ErrEmptyObjectType
	}
	if o.IdentityKey == "" {
		return ErrEmptyIdentityKey
	}
	if o.Confidence < 0 || o.Confidence > 1 {
		return ErrOutOfRange
	}
	if o.ValidUntil != nil && !o.ValidFrom.Before(*o.ValidUntil) {
		return ErrInvalidInterval
	}
	return nil
}

// SignalStatus is the review lifecycle of a RelationalRiskSignal object.
// Transitions are driven by external review; the engine only creates
// signals in StatusDetected.
type SignalStatus string

const (
	StatusDetected      SignalStatus = "detected"
	StatusInvestigating SignalStatus = "investigating"
	StatusConfirmed     SignalStatus = "confirmed"
	StatusFalsePositive SignalStatus = "false_positive"
	StatusResolved      SignalStatus = "resolved"
)

var signalTransitions = map[SignalStatus][]SignalStatus{
	StatusDetected:      {StatusInvestigating},
	StatusInvestigating: {StatusConfirmed, StatusFalsePositive},
	StatusConfirmed:     {StatusResolved},
	StatusFalsePositive: {StatusResolved},
}

// CanTransition reports whether a signal may move from one status to another.
func (s SignalStatus) CanTransition(to SignalStatus) bool {
	for _, next := range signalTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
