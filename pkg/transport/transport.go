// Package transport carries YubiHSM2 records between the host engine and a
// device. The engine only depends on the Transport interface; how the
// channel is opened (USB, HTTP connector, TCP) is up to the caller.
//
// Conn adapts any net.Conn, either packet oriented (one Read returns one
// record) or stream oriented (records are delimited by their 3-byte
// header). Pipe provides an in-memory pair of endpoints with network
// condition simulation for tests.
package transport

import "context"

// DefaultMaxMessageSize is the largest record a YubiHSM2 accepts.
const DefaultMaxMessageSize = 2048

// RecordHeaderSize is type(1) || length(2).
const RecordHeaderSize = 3

// Transport exchanges whole records with a peer. Implementations must be
// safe for one concurrent sender and one concurrent receiver.
type Transport interface {
	// Send transmits one record.
	Send(ctx context.Context, record []byte) error

	// Recv blocks until one record arrives or ctx is done.
	Recv(ctx context.Context) ([]byte, error)

	// Close releases the channel. Blocked calls return ErrClosed.
	Close() error
}
