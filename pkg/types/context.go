package types

type contextKey string

// Context keys propagated from the HTTP layer into logs and telemetry.
const (
	ContextKeyRequestID     contextKey = "request_id"
	ContextKeyRequestSource contextKey = "request_source"
)
