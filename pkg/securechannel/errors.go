package securechannel

import (
	"errors"
	"fmt"

	"github.com/backkem/yubihsm/pkg/command"
	"github.com/backkem/yubihsm/pkg/session"
)

// Errors returned by the Channel.
var (
	// ErrSessionClosed matches every error that closed the session and
	// every call made on a closed session. Authenticate again to continue.
	ErrSessionClosed = errors.New("securechannel: session closed")

	// ErrSessionRejected is returned when the device answers a session
	// message with an unauthenticated error record instead of a frame.
	ErrSessionRejected = errors.New("securechannel: session message rejected by device")

	// ErrNotAuthenticated is returned when no session was ever established.
	ErrNotAuthenticated = errors.New("securechannel: not authenticated")

	// ErrNoTransport is returned when a Config has no transport.
	ErrNoTransport = errors.New("securechannel: no transport configured")

	// ErrNoCredential is returned when a Config has no key material.
	ErrNoCredential = errors.New("securechannel: no credential configured")
)

// ClosedError reports the failure that closed a session. It matches both
// ErrSessionClosed and its cause.
type ClosedError struct {
	Cause error
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("securechannel: session closed: %v", e.Cause)
}

// Unwrap returns ErrSessionClosed and the cause.
func (e *ClosedError) Unwrap() []error {
	return []error{ErrSessionClosed, e.Cause}
}

// integrityErrors are the protocol integrity failures.
var integrityErrors = []error{
	session.ErrAuthenticationFailed,
	session.ErrReplayDetected,
	session.ErrMalformedFrame,
	session.ErrHandshakeFailed,
	session.ErrTimeout,
	session.ErrCounterExhausted,
	command.ErrMalformedResponse,
	ErrSessionRejected,
}

// IsIntegrityError reports whether err is a protocol integrity failure:
// the session is closed and must be re-established.
func IsIntegrityError(err error) bool {
	for _, target := range integrityErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
