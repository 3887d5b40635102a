package domain

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrNotFound is returned when a write targets a row that does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrMissingID is returned by update/delete calls without an identifiable target.
	ErrMissingID = errors.New("record has no identifier")
	// ErrHasDependents is returned when deleting a row other rows still reference.
	ErrHasDependents = errors.New("record still referenced")
	// ErrValidation wraps entity validation failures.
	ErrValidation = errors.New("validation failed")
	// ErrBackendUnavailable is returned when the selected backend has no live handle.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrNoBackendReachable indicates neither the table store nor any direct port answered.
	ErrNoBackendReachable = errors.New("no backend reachable")
	// ErrNoConnection indicates every race participant failed or timed out.
	ErrNoConnection = errors.New("no candidate produced a connection")
	// ErrInvalidCredentials covers both an unknown username and a wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserDisabled is returned when a disabled user tries to log in.
	ErrUserDisabled = errors.New("user is disabled")
)

// TransportError is a table-store request failure: a non-2xx status, or a
// network/timeout error when StatusCode is zero.
type TransportError struct {
	Method     string
	Resource   string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("table store %s %s: %v", e.Method, e.Resource, e.Err)
	}
	return fmt.Sprintf("table store %s %s: HTTP %d: %s", e.Method, e.Resource, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError means a response body was present but not in the expected shape.
type DecodeError struct {
	Resource string
	Body     string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response: %v (body: %s)", e.Resource, e.Err, e.Body)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IDRecoveryError means an insert was accepted but no usable identifier came
// back. The row may exist remotely.
type IDRecoveryError struct {
	Resource string
	Body     string
	Err      error
}

func (e *IDRecoveryError) Error() string {
	msg := fmt.Sprintf("insert into %s: could not parse new identifier", e.Resource)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += " (body: " + e.Body + ")"
	}
	return msg
}

func (e *IDRecoveryError) Unwrap() error { return e.Err }

// Snippet trims s to at most n bytes for log and error messages, never
// splitting a multi-byte rune.
func Snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
