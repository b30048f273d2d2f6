// Package types defines the core data types for the ontoscore relationship graph.
//
// This package contains the fundamental types used throughout ontoscore:
//   - Object: A versioned, temporally-scoped entity record (company, officer,
//     fund, instrument, or risk signal)
//   - Link: A versioned, typed, directed relationship between two Objects
//   - Value/Properties: The closed tagged-union property bag carried by
//     Objects and Links
//   - RiskScoreResult: The output of the risk scoring engine
//
// # Temporal validity
//
// Objects and Links carry ValidFrom/ValidUntil timestamps. An entry is
// valid at time t iff ValidFrom <= t and (ValidUntil is nil or t < ValidUntil):
//
//	if obj.IsValidAt(time.Now()) {
//	    // current version
//	}
//
// History is append-only: an update closes the current version and opens a
// new one, it never mutates a closed version in place.
//
// # Validation
//
// Types provide Validate() methods for input validation:
//
//	obj := &types.Object{Type: types.ObjectTypeCompany, IdentityKey: "krx:005930"}
//	if err := obj.Validate(); err != nil {
//	    // Handle validation error
//	}
//
// # Error kinds
//
// The package defines the five error kinds the core surfaces (NotFound,
// InvalidReference, Conflict, BudgetExceeded, UpstreamUnavailable) as typed
// errors matched with errors.Is / errors.As, never by string comparison.
package types
