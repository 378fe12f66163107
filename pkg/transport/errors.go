package transport

import "errors"

// Transport errors. Every error returned by a Transport matches ErrTransport.
var (
	// ErrTransport is the class of all transport failures.
	ErrTransport = errors.New("transport: failure")

	// ErrClosed is returned when an operation is attempted on a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrTimeout is returned when the context expired before a record arrived.
	ErrTimeout = errors.New("transport: timeout")

	// ErrMessageTooLarge is returned when a record exceeds the maximum size.
	ErrMessageTooLarge = errors.New("transport: message too large")

	// ErrNoConn is returned when a ConnConfig has no connection.
	ErrNoConn = errors.New("transport: no connection configured")
)

// transportError tags an error as a transport failure.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }

func (e *transportError) Unwrap() []error { return []error{ErrTransport, e.err} }

// Wrap tags err as a transport failure. Transport implementations outside
// this package use it so that their errors match ErrTransport.
func Wrap(err error) error {
	if err == nil || errors.Is(err, ErrTransport) {
		return err
	}
	return &transportError{err: err}
}
