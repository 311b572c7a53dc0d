// Package errors provides the closed set of error kinds used across the
// semgate gateway. Every error carries a stable code, a human-readable
// message, and an optional hint so callers can act on the failure.
//
// Raw engine error strings are always wrapped, never passed through
// unredacted.
package errors

import (
	"errors"
	"fmt"
)

// Kind is the stable error code for a gateway failure.
type Kind string

const (
	KindValidation       Kind = "ValidationError"
	KindAuthRequired     Kind = "AuthRequired"
	KindForbidden        Kind = "Forbidden"
	KindDatasetNotFound  Kind = "DatasetNotFound"
	KindDimensionUnknown Kind = "DimensionNotFound"
	KindMeasureUnknown   Kind = "MeasureNotFound"
	KindPlan             Kind = "PlanError"
	KindBuild            Kind = "BuildError"
	KindConfig           Kind = "ConfigError"
	KindConnection       Kind = "ConnectionError"
	KindQuery            Kind = "QueryError"
	KindTimeout          Kind = "Timeout"
	KindCoalesceTimeout  Kind = "CoalesceTimeout"
	KindCacheUnavailable Kind = "CacheUnavailable"
	KindInternal         Kind = "Internal"
)

// GatewayError is the base error type for all semgate errors.
type GatewayError struct {
	Kind      Kind
	Message   string
	Hint      string
	RequestID string
	Cause     error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Hint != "" {
		msg = fmt.Sprintf("%s\nHint: %s", msg, e.Hint)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s\nCaused by: %v", msg, e.Cause)
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// WithRequestID returns a copy of the error stamped with the request id.
func (e *GatewayError) WithRequestID(id string) *GatewayError {
	clone := *e
	clone.RequestID = id
	return &clone
}

// New creates a GatewayError with the given kind and message.
func New(kind Kind, format string, args ...interface{}) *GatewayError {
	return &GatewayError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a GatewayError wrapping an underlying cause. The cause is
// retained for Unwrap but its text never replaces the stable message.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *GatewayError {
	return &GatewayError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// NewValidation creates a ValidationError for a rejected request.
func NewValidation(format string, args ...interface{}) *GatewayError {
	return New(KindValidation, format, args...)
}

// NewDatasetNotFound creates a DatasetNotFound error for an unknown dataset id.
func NewDatasetNotFound(dataset string) *GatewayError {
	return &GatewayError{
		Kind:    KindDatasetNotFound,
		Message: fmt.Sprintf("dataset not found: %s", dataset),
		Hint:    "check the dataset id against the catalog",
	}
}

// NewDimensionNotFound creates a DimensionNotFound error.
func NewDimensionNotFound(dataset, dimension string) *GatewayError {
	return &GatewayError{
		Kind:    KindDimensionUnknown,
		Message: fmt.Sprintf("unknown dimension %q on dataset %s", dimension, dataset),
		Hint:    "dimension names are case-sensitive",
	}
}

// NewMeasureNotFound creates a MeasureNotFound error.
func NewMeasureNotFound(dataset, measure string) *GatewayError {
	return &GatewayError{
		Kind:    KindMeasureUnknown,
		Message: fmt.Sprintf("unknown measure %q on dataset %s", measure, dataset),
		Hint:    "measure names are case-sensitive",
	}
}

// NewPlan creates a PlanError tagged with the compilation step that failed.
func NewPlan(step, format string, args ...interface{}) *GatewayError {
	return &GatewayError{
		Kind:    KindPlan,
		Message: fmt.Sprintf("planning failed at %s: %s", step, fmt.Sprintf(format, args...)),
	}
}

// NewBuild creates a BuildError from the SQL builder.
func NewBuild(format string, args ...interface{}) *GatewayError {
	return New(KindBuild, format, args...)
}

// NewConfig creates a ConfigError for a misconfigured dataset or source.
func NewConfig(format string, args ...interface{}) *GatewayError {
	return New(KindConfig, format, args...)
}

// NewConnection creates a ConnectionError for the given engine. The
// underlying driver error is wrapped, not exposed in the message.
func NewConnection(engine string, cause error) *GatewayError {
	return &GatewayError{
		Kind:    KindConnection,
		Message: fmt.Sprintf("connection to %s failed", engine),
		Hint:    "the adapter will be reconstructed on the next request",
		Cause:   cause,
	}
}

// NewQuery creates a QueryError for the given engine.
func NewQuery(engine string, cause error) *GatewayError {
	return &GatewayError{
		Kind:    KindQuery,
		Message: fmt.Sprintf("query execution on %s failed", engine),
		Cause:   cause,
	}
}

// NewTimeout creates a Timeout error for an expired request deadline.
func NewTimeout(engine string, cause error) *GatewayError {
	return &GatewayError{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("query on %s exceeded its deadline", engine),
		Cause:   cause,
	}
}

// NewCoalesceTimeout creates a CoalesceTimeout error for a single-flight
// follower that gave up waiting for the leader.
func NewCoalesceTimeout(fingerprint string) *GatewayError {
	return &GatewayError{
		Kind:    KindCoalesceTimeout,
		Message: fmt.Sprintf("timed out waiting for in-flight query %s", fingerprint),
		Hint:    "retry the request or enable follower promotion",
	}
}

// NewCacheUnavailable creates a CacheUnavailable error. Callers log and
// swallow this kind; it never fails a request.
func NewCacheUnavailable(cause error) *GatewayError {
	return &GatewayError{
		Kind:    KindCacheUnavailable,
		Message: "cache backend unavailable",
		Hint:    "serving without cache until the backend recovers",
		Cause:   cause,
	}
}

// NewInternal creates an Internal error wrapping an unexpected failure.
func NewInternal(cause error) *GatewayError {
	return &GatewayError{Kind: KindInternal, Message: "internal error", Cause: cause}
}

// KindOf returns the kind of err if it is (or wraps) a GatewayError,
// and KindInternal otherwise.
func KindOf(err error) Kind {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
