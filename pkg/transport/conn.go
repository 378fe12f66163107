package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
)

// recvQueueSize bounds records read ahead of Recv.
const recvQueueSize = 16

// ConnConfig configures a Conn.
type ConnConfig struct {
	// Conn is the underlying connection.
	// Required.
	Conn net.Conn

	// Framing selects record delimiting. Default: FramingPacket.
	Framing Framing

	// MaxMessageSize bounds records in both directions.
	// Default: DefaultMaxMessageSize.
	MaxMessageSize int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Conn is a Transport over a net.Conn. A background goroutine reads
// records so that Recv can honor context cancellation on any connection.
type Conn struct {
	conn    net.Conn
	framing Framing
	maxSize int
	log     logging.LeveledLogger

	recvCh  chan []byte
	closeCh chan struct{}
	writeMu sync.Mutex

	mu      sync.Mutex
	closed  bool
	readErr error
}

// NewConn wraps a net.Conn and starts its read loop.
func NewConn(config ConnConfig) (*Conn, error) {
	if config.Conn == nil {
		return nil, ErrNoConn
	}
	if !config.Framing.IsValid() {
		return nil, fmt.Errorf("transport: invalid framing %d", config.Framing)
	}

	c := &Conn{
		conn:    config.Conn,
		framing: config.Framing,
		maxSize: config.MaxMessageSize,
		recvCh:  make(chan []byte, recvQueueSize),
		closeCh: make(chan struct{}),
	}
	if c.maxSize <= 0 {
		c.maxSize = DefaultMaxMessageSize
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("transport")
	}

	go c.readLoop()

	return c, nil
}

// Send writes one record. A context deadline becomes the write deadline.
func (c *Conn) Send(ctx context.Context, record []byte) error {
	if err := ctx.Err(); err != nil {
		return Wrap(err)
	}
	if len(record) > c.maxSize {
		return Wrap(fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(record), c.maxSize))
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return Wrap(ErrClosed)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer func() { _ = c.conn.SetWriteDeadline(time.Time{}) }()
	}

	if _, err := c.conn.Write(record); err != nil {
		return Wrap(err)
	}
	if c.log != nil {
		c.log.Tracef("sent %d bytes", len(record))
	}
	return nil
}

// Recv returns the next record.
func (c *Conn) Recv(ctx context.Context) ([]byte, error) {
	select {
	case rec, ok := <-c.recvCh:
		if !ok {
			return nil, c.terminalError()
		}
		return rec, nil
	case <-c.closeCh:
		return nil, Wrap(ErrClosed)
	case <-ctx.Done():
		return nil, Wrap(fmt.Errorf("%w: %w", ErrTimeout, ctx.Err()))
	}
}

// Close closes the connection. The read loop exits once the underlying
// Read returns.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.closeCh)
	err := c.conn.Close()

	if c.log != nil {
		c.log.Debug("closed")
	}
	return err
}

func (c *Conn) terminalError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.readErr == nil {
		return Wrap(ErrClosed)
	}
	return Wrap(c.readErr)
}

func (c *Conn) readLoop() {
	defer close(c.recvCh)

	for {
		rec, err := c.readRecord()
		if err != nil {
			c.mu.Lock()
			if !c.closed {
				c.readErr = err
			}
			c.mu.Unlock()

			if c.log != nil && !errors.Is(err, io.EOF) {
				c.log.Debugf("read loop stopped: %v", err)
			}
			return
		}

		select {
		case c.recvCh <- rec:
		case <-c.closeCh:
			return
		}
	}
}

func (c *Conn) readRecord() ([]byte, error) {
	if c.framing == FramingStream {
		var header [RecordHeaderSize]byte
		if _, err := io.ReadFull(c.conn, header[:]); err != nil {
			return nil, err
		}
		length := int(binary.BigEndian.Uint16(header[1:3]))
		if RecordHeaderSize+length > c.maxSize {
			return nil, fmt.Errorf("%w: announced %d bytes", ErrMessageTooLarge, RecordHeaderSize+length)
		}
		rec := make([]byte, RecordHeaderSize+length)
		copy(rec, header[:])
		if _, err := io.ReadFull(c.conn, rec[RecordHeaderSize:]); err != nil {
			return nil, err
		}
		return rec, nil
	}

	for {
		buf := make([]byte, c.maxSize+1)
		n, err := c.conn.Read(buf)
		if err != nil {
			return nil, err
		}
		if n > c.maxSize {
			if c.log != nil {
				c.log.Warnf("dropping oversized record")
			}
			continue
		}
		if n == 0 {
			continue
		}
		return buf[:n], nil
	}
}
