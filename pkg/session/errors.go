package session

import "errors"

// Session package errors.
var (
	// ErrInvalidKey is returned when a credential key has invalid length.
	ErrInvalidKey = errors.New("session: invalid key length")

	// ErrInvalidChallenge is returned when the derivation context is not
	// an 8-byte host challenge followed by an 8-byte card challenge.
	ErrInvalidChallenge = errors.New("session: invalid challenge")

	// ErrInvalidState is returned when an operation does not fit the
	// current session state, e.g. Seal before the handshake completed.
	ErrInvalidState = errors.New("session: invalid state")

	// ErrClosed is returned by every operation on a closed session.
	ErrClosed = errors.New("session: closed")

	// ErrHandshakeFailed is returned when session establishment fails. It
	// wraps the underlying cause.
	ErrHandshakeFailed = errors.New("session: handshake failed")

	// ErrAuthenticationFailed is returned when a frame MAC does not verify.
	ErrAuthenticationFailed = errors.New("session: message authentication failed")

	// ErrReplayDetected is returned when an incoming counter is not the
	// expected one.
	ErrReplayDetected = errors.New("session: replay detected")

	// ErrMalformedFrame is returned for frames that authenticate but cannot
	// be decrypted, or that belong to another session.
	ErrMalformedFrame = errors.New("session: malformed frame")

	// ErrTimeout is returned when no response arrived in time. The outcome
	// of the command is unknown.
	ErrTimeout = errors.New("session: timeout")

	// ErrCounterExhausted is returned when the message counter has wrapped.
	// The session must be re-established when this occurs.
	ErrCounterExhausted = errors.New("session: message counter exhausted")

	// ErrSessionNotFound is returned when a session lookup fails.
	ErrSessionNotFound = errors.New("session: session not found")

	// ErrSessionTableFull is returned when no more sessions can be allocated.
	ErrSessionTableFull = errors.New("session: session table full")
)
