package mockhsm

import (
	"context"
	"fmt"
	"sync"

	"github.com/backkem/yubihsm/pkg/transport"
)

// Filter rewrites the response records produced for one request. Returning
// no records drops the response; returning several delivers them in order.
type Filter func(resp []byte) [][]byte

// Drop discards every response.
func Drop() Filter {
	return func([]byte) [][]byte { return nil }
}

// Duplicate delivers every response twice.
func Duplicate() Filter {
	return func(resp []byte) [][]byte { return [][]byte{resp, append([]byte(nil), resp...)} }
}

// Late withholds the next n responses. Each withheld response is delivered
// just ahead of the next response that passes, as a late reply would be.
func Late(n int) Filter {
	var (
		mu   sync.Mutex
		held [][]byte
	)
	return func(resp []byte) [][]byte {
		mu.Lock()
		defer mu.Unlock()
		if n > 0 {
			n--
			held = append(held, resp)
			return nil
		}
		out := append(held, resp)
		held = nil
		return out
	}
}

// FlipBit inverts one bit of every response. Bit 0 is the most significant
// bit of the first byte.
func FlipBit(bit int) Filter {
	return func(resp []byte) [][]byte {
		out := append([]byte(nil), resp...)
		if bit/8 < len(out) {
			out[bit/8] ^= 0x80 >> (bit % 8)
		}
		return [][]byte{out}
	}
}

// Loopback is a transport.Transport that hands records straight to a
// Device in the caller's goroutine. Responses pass through an optional
// Filter for fault injection.
type Loopback struct {
	device *Device

	mu      sync.Mutex
	filter  Filter
	pending [][]byte
	sent    int
	closed  bool
	ready   chan struct{}
	done    chan struct{}
}

// NewLoopback connects a transport to d.
func NewLoopback(d *Device) *Loopback {
	return &Loopback{
		device: d,
		ready:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// SetFilter installs f for subsequent responses. nil removes the filter.
func (l *Loopback) SetFilter(f Filter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filter = f
}

// Sent returns the number of records sent to the device.
func (l *Loopback) Sent() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}

// Send delivers record to the device and queues its response.
func (l *Loopback) Send(ctx context.Context, record []byte) error {
	if err := ctx.Err(); err != nil {
		return transport.Wrap(err)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return transport.Wrap(transport.ErrClosed)
	}
	l.sent++
	filter := l.filter
	l.mu.Unlock()

	resp := l.device.Handle(append([]byte(nil), record...))
	out := [][]byte{resp}
	if filter != nil {
		out = filter(resp)
	}

	l.mu.Lock()
	l.pending = append(l.pending, out...)
	l.mu.Unlock()
	l.signal()
	return nil
}

// Recv returns the next queued response, waiting until ctx is done if
// there is none.
func (l *Loopback) Recv(ctx context.Context) ([]byte, error) {
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return nil, transport.Wrap(transport.ErrClosed)
		}
		if len(l.pending) > 0 {
			rec := l.pending[0]
			l.pending = l.pending[1:]
			l.mu.Unlock()
			return rec, nil
		}
		l.mu.Unlock()

		select {
		case <-l.ready:
		case <-l.done:
		case <-ctx.Done():
			return nil, transport.Wrap(fmt.Errorf("%w: %w", transport.ErrTimeout, ctx.Err()))
		}
	}
}

// Close fails all pending and future calls.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		l.pending = nil
		close(l.done)
	}
	return nil
}

func (l *Loopback) signal() {
	select {
	case l.ready <- struct{}{}:
	default:
	}
}
