package events

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the referenced event, version, or permission does
	// not exist, or that the caller holds no permission on it. Read paths do
	// not distinguish the two, keeping event existence hidden from
	// unauthorized callers.
	ErrNotFound = errors.New("events: resource not found")
	// ErrForbidden indicates the caller's role rank is insufficient for the
	// requested mutation on an event the caller can see.
	ErrForbidden = errors.New("events: insufficient permissions")
)

// ValidationError reports malformed input such as an inverted time interval
// or an unrecognized role string.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("events: validation failed: %s", e.Reason)
}

// ConflictError reports that a candidate time interval overlaps events
// already visible to the user. It carries the conflicting events so callers
// can report count and detail.
type ConflictError struct {
	Conflicts []Event
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("events: conflicts with %d existing events", len(e.Conflicts))
}

// ServiceError wraps a cause with a dotted operation.reason code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}
