package types

import (
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrEmptyID          = errors.New("id cannot be empty")
	ErrEmptyIdentityKey = errors.New("identity key cannot be empty")
	ErrEmptyObjectType  = errors.New("object type cannot be empty")
	ErrEmptyEndpoint    = errors.New("link endpoints cannot be empty")
	ErrInvalidInterval  = errors.New("valid_from must precede valid_until")
	ErrOutOfRange       = errors.New("value must be in [0,1]")
)

// NotFoundError is returned when an object or link does not exist, or no
// version of it is valid at the requested time. Non-retryable.
type NotFoundError struct {
	Kind string // "object" or "link"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Is implements errors.Is support for NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// NewObjectNotFoundError creates a NotFoundError for an object id.
func NewObjectNotFoundError(id string) *NotFoundError {
	return &NotFoundError{Kind: "object", ID: id}
}

// NewLinkNotFoundError creates a NotFoundError for a link id.
func NewLinkNotFoundError(id string) *NotFoundError {
	return &NotFoundError{Kind: "link", ID: id}
}

// InvalidReferenceError is returned when a link endpoint is missing or not
// valid at the link's valid_from. Non-retryable.
type InvalidReferenceError struct {
	ObjectID string
	Reason   string
}

func (e *InvalidReferenceError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid reference to object %s", e.ObjectID)
	}
	return fmt.Sprintf("invalid reference to object %s: %s", e.ObjectID, e.Reason)
}

// Is implements errors.Is support for InvalidReferenceError.
func (e *InvalidReferenceError) Is(target error) bool {
	_, ok := target.(*InvalidReferenceError)
	return ok
}

// ConflictError is returned on a duplicate open link or an optimistic
// version mismatch on an identity chain. Non-retryable for the caller;
// the store retries CAS conflicts internally with a bounded attempt count.
type ConflictError struct {
	Key     string
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("conflict on %s", e.Key)
	}
	return fmt.Sprintf("conflict on %s: %s", e.Key, e.Message)
}

// Is implements errors.Is support for ConflictError.
func (e *ConflictError) Is(target error) bool {
	_, ok := target.(*ConflictError)
	return ok
}

// BudgetExceededError marks a pattern-detection traversal that hit its
// visited-node budget. It is advisory: detection returns a partial result
// flagged Truncated=true alongside this error kind, it never fails the run.
type BudgetExceededError struct {
	Visited int
	Budget  int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("traversal budget exceeded: visited %d of %d allowed", e.Visited, e.Budget)
}

// Is implements errors.Is support for BudgetExceededError.
func (e *BudgetExceededError) Is(target error) bool {
	_, ok := target.(*BudgetExceededError)
	return ok
}

// UpstreamUnavailableError is returned when the persistence layer or the
// external predictor stays unreachable after bounded retries. Scoring
// degrades gracefully on this kind: the affected detail is marked degraded
// and the remaining signal is used.
type UpstreamUnavailableError struct {
	Upstream string
	Err      error
}

func (e *UpstreamUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("upstream %s unavailable", e.Upstream)
	}
	return fmt.Sprintf("upstream %s unavailable: %v", e.Upstream, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

// Is implements errors.Is support for UpstreamUnavailableError.
func (e *UpstreamUnavailableError) Is(target error) bool {
	_, ok := target.(*UpstreamUnavailableError)
	return ok
}
