// Package fault defines the closed set of failure kinds produced by the
// retry, soap and cache layers.
//
// Kinds are carried as data on a single *Error type rather than as a type
// hierarchy, so callers branch on Kind:
//
//	switch fault.KindOf(err) {
//	case fault.KindTimeout:
//	    // 504
//	case fault.KindClientRejection, fault.KindValidation:
//	    // 400
//	default:
//	    // 502
//	}
//
// Errors that are not *Error (a raw network failure, a context cancellation)
// are "unclassified". The retry loop never surfaces an unclassified error after
// its budget is spent; it wraps the last one into KindUpstreamFailure.
package fault

import (
	"errors"
	"fmt"
	"time"
)

// Kind is a machine-readable failure category.
type Kind string

const (
	// KindValidation is bad input to this layer (negative retry count, blank endpoint).
	// Never retried.
	KindValidation Kind = "VALIDATION"
	// KindTimeout means a call exceeded its own budget.
	KindTimeout Kind = "TIMEOUT"
	// KindClientRejection is a 4xx-equivalent answer from a remote service.
	KindClientRejection Kind = "CLIENT_REJECTION"
	// KindUpstreamFailure is a 5xx-equivalent answer or a malformed/unvalidatable response.
	KindUpstreamFailure Kind = "UPSTREAM_FAILURE"
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	// Status is the remote status code when one was observed, 0 otherwise.
	Status int
	// Budget is the elapsed timeout budget for KindTimeout.
	Budget time.Duration
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Validation reports a programmer-visible input error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Timeout reports that budget elapsed before the call settled.
func Timeout(budget time.Duration, cause error, format string, args ...any) *Error {
	return &Error{Kind: KindTimeout, Message: fmt.Sprintf(format, args...), Budget: budget, Cause: cause}
}

// ClientRejection reports a 4xx-equivalent remote answer.
func ClientRejection(status int, format string, args ...any) *Error {
	return &Error{Kind: KindClientRejection, Message: fmt.Sprintf(format, args...), Status: status}
}

// Upstream reports a remote failure. status may be 0 when no status was observed.
func Upstream(status int, cause error, format string, args ...any) *Error {
	return &Error{Kind: KindUpstreamFailure, Message: fmt.Sprintf(format, args...), Status: status, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when err is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Classified reports whether err already carries a kind.
func Classified(err error) bool {
	return KindOf(err) != ""
}

// Retryable reports whether a classified error may be attempted again.
// Unclassified errors are not covered here; the retry loop treats them as transient.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindUpstreamFailure:
		return true
	default:
		return false
	}
}

// StatusOf returns the remote status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
