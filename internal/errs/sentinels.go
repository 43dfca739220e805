// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Common sentinels across repository/service layers.
var (
	// ErrNotFound indicates the requested task does not exist for the user.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated indicates a missing local credential or a remote 401/403.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrValidation indicates input rejected before any network call.
	ErrValidation = errors.New("validation")

	// ErrNetwork indicates a transport-level failure (no HTTP status was received).
	ErrNetwork = errors.New("network error")

	// ErrRemoteRejected indicates a non-success HTTP status from the remote side.
	ErrRemoteRejected = errors.New("remote rejected")

	// ErrAlreadyExists indicates a task with the same id but different content already exists.
	ErrAlreadyExists = errors.New("already exists")
)

// RemoteError is a non-success response. Status is the HTTP status code, Message the
// remote-reported message (verbatim) or a generic one.
type RemoteError struct {
	Op      string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
}

// Is maps statuses onto sentinels so callers can branch with errors.Is.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrRemoteRejected:
		return true
	case ErrUnauthenticated:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrAlreadyExists:
		return e.Status == http.StatusConflict
	}
	return false
}

// Network wraps a transport failure for op.
func Network(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
}

// Validation builds an ErrValidation with a message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Message returns a short human-readable message for err: the remote-reported message
// when there is one, the error text otherwise.
func Message(err error) string {
	var re *RemoteError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
