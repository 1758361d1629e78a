// Package fault classifies remote-operation failures into retryable and
// fatal categories. Every error that crosses a connector boundary is wrapped
// in a *Error so callers (and the retry executor) can decide whether another
// attempt makes sense without string-matching messages.
package fault

import (
	"errors"
	"fmt"
)

// Class is the failure category of a classified error.
type Class string

const (
	// RetryableTransport covers network and connection-level failures
	// (dial errors, dropped pipes, process spawn failures). Retried.
	RetryableTransport Class = "transport"

	// FatalInput covers bad arguments, unknown tools/servers, malformed
	// configuration. Never retried.
	FatalInput Class = "input"

	// FatalRemote covers application errors returned by the remote side.
	// Never retried.
	FatalRemote Class = "remote"

	// Timeout covers deadline expiry. Treated as retryable for connects;
	// validation probes do not retry at all, so for them it is simply a
	// failed probe.
	Timeout Class = "timeout"
)

// Error is a classified failure.
type Error struct {
	Class Class
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transport wraps err as a retryable transport failure.
func Transport(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: RetryableTransport, Err: err}
}

// Transportf formats a retryable transport failure.
func Transportf(format string, args ...any) error {
	return &Error{Class: RetryableTransport, Err: fmt.Errorf(format, args...)}
}

// Input wraps err as a fatal input failure.
func Input(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: FatalInput, Err: err}
}

// Inputf formats a fatal input failure.
func Inputf(format string, args ...any) error {
	return &Error{Class: FatalInput, Err: fmt.Errorf(format, args...)}
}

// Remote wraps err as a fatal remote-side application failure.
func Remote(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: FatalRemote, Err: err}
}

// Remotef formats a fatal remote-side failure.
func Remotef(format string, args ...any) error {
	return &Error{Class: FatalRemote, Err: fmt.Errorf(format, args...)}
}

// Expired wraps err as a timeout.
func Expired(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: Timeout, Err: err}
}

// ClassOf returns the class of err. Unclassified errors are treated as
// fatal remote failures: only failures a connector has explicitly marked
// transient are worth another attempt.
func ClassOf(err error) Class {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Class
	}
	return FatalRemote
}

// IsRetryable reports whether another attempt may succeed.
func IsRetryable(err error) bool {
	switch ClassOf(err) {
	case RetryableTransport, Timeout:
		return true
	default:
		return false
	}
}
