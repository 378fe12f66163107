package transport

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/test"
)

// NetworkCondition configures network behavior simulation.
// Use this to test protocol behavior under adverse network conditions.
type NetworkCondition struct {
	// DropRate is the probability of dropping a record (0.0 - 1.0).
	DropRate float64

	// DelayMin is the minimum delay to add to each record.
	DelayMin time.Duration

	// DelayMax is the maximum delay to add to each record.
	// Actual delay is uniformly distributed between DelayMin and DelayMax.
	DelayMax time.Duration

	// DuplicateRate is the probability of delivering a record twice (0.0 - 1.0).
	DuplicateRate float64

	// CorruptRate is the probability of flipping one random bit of a
	// record (0.0 - 1.0).
	CorruptRate float64
}

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic record delivery in a background goroutine.
	// Default: true
	AutoProcess bool

	// ProcessInterval is how often the auto-processor checks for records.
	// Default: 1ms
	ProcessInterval time.Duration

	// Seed seeds the condition simulation. Zero uses the current time.
	Seed int64

	// LoggerFactory is passed to the endpoint transports.
	LoggerFactory logging.LoggerFactory
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe provides bidirectional in-memory record delivery between a host
// endpoint (0) and a device endpoint (1). It wraps pion's test.Bridge and
// adds network condition simulation per sending endpoint.
//
// By default, Pipe automatically delivers records in a background goroutine.
// Use SetAutoProcess(false) or NewPipeWithConfig for manual control.
type Pipe struct {
	bridge *test.Bridge
	ends   [2]*Conn

	mu              sync.RWMutex
	conditions      [2]NetworkCondition
	closed          bool
	rng             *rand.Rand
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a new bidirectional pipe with auto-processing enabled.
func NewPipe() *Pipe {
	p, _ := NewPipeWithConfig(DefaultPipeConfig())
	return p
}

// NewPipeWithConfig creates a new pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) (*Pipe, error) {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	p := &Pipe{
		bridge:          test.NewBridge(),
		rng:             rand.New(rand.NewSource(seed)),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}
	if config.ProcessInterval == 0 {
		p.processInterval = 1 * time.Millisecond
	}

	for id, conn := range []net.Conn{p.bridge.GetConn0(), p.bridge.GetConn1()} {
		end, err := NewConn(ConnConfig{
			Conn:          &pipeConn{Conn: conn, pipe: p, id: id},
			Framing:       FramingPacket,
			LoggerFactory: config.LoggerFactory,
		})
		if err != nil {
			return nil, err
		}
		p.ends[id] = end
	}

	if p.autoProcess {
		p.startAutoProcess()
	}

	return p, nil
}

// Host returns the transport of endpoint 0.
func (p *Pipe) Host() Transport {
	return p.ends[0]
}

// Device returns the transport of endpoint 1.
func (p *Pipe) Device() Transport {
	return p.ends[1]
}

// startAutoProcess starts the background delivery goroutine.
func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.bridge.Tick()
			}
		}
	}()
}

// SetAutoProcess enables or disables automatic record delivery.
// When disabled, you must call Tick() or Process() manually.
func (p *Pipe) SetAutoProcess(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.autoProcess == enabled {
		return
	}
	p.autoProcess = enabled

	if enabled {
		p.stopCh = make(chan struct{})
		p.startAutoProcess()
	} else {
		close(p.stopCh)
		p.wg.Wait()
	}
}

// SetCondition configures network condition simulation in both directions.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conditions = [2]NetworkCondition{cond, cond}
}

// SetHostCondition configures records sent by the host endpoint.
func (p *Pipe) SetHostCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conditions[0] = cond
}

// SetDeviceCondition configures records sent by the device endpoint.
func (p *Pipe) SetDeviceCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conditions[1] = cond
}

// Tick delivers one record in each direction (if available).
// Returns the number of records delivered (0, 1, or 2).
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers all queued records.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			break
		}
		count += n
	}
	return count
}

// Close closes both endpoints of the pipe and stops auto-processing.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for _, end := range p.ends {
		if err := end.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.Process()

	p.mu.Lock()
	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()
	p.wg.Wait()

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// PipeAddr implements net.Addr for pipe endpoints.
type PipeAddr struct {
	ID int // Endpoint ID (0 or 1)
}

// Network returns "pipe".
func (a PipeAddr) Network() string { return "pipe" }

// String returns a string representation of the address.
func (a PipeAddr) String() string { return fmt.Sprintf("pipe:%d", a.ID) }

// pipeConn applies the sending endpoint's network condition on Write.
type pipeConn struct {
	net.Conn
	pipe *Pipe
	id   int
}

func (c *pipeConn) Write(b []byte) (int, error) {
	c.pipe.mu.Lock()
	cond := c.pipe.conditions[c.id]
	rng := c.pipe.rng
	drop := cond.DropRate > 0 && rng.Float64() < cond.DropRate
	dup := cond.DuplicateRate > 0 && rng.Float64() < cond.DuplicateRate
	corruptBit := -1
	if cond.CorruptRate > 0 && len(b) > 0 && rng.Float64() < cond.CorruptRate {
		corruptBit = rng.Intn(len(b) * 8)
	}
	var delay time.Duration
	if cond.DelayMax > 0 {
		delay = cond.DelayMin
		if cond.DelayMax > cond.DelayMin {
			delay += time.Duration(rng.Int63n(int64(cond.DelayMax - cond.DelayMin)))
		}
	}
	c.pipe.mu.Unlock()

	if drop {
		return len(b), nil
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if corruptBit >= 0 {
		b = append([]byte(nil), b...)
		b[corruptBit/8] ^= 1 << (corruptBit % 8)
	}
	if dup {
		if _, err := c.Conn.Write(b); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

func (c *pipeConn) LocalAddr() net.Addr {
	return PipeAddr{ID: c.id}
}

func (c *pipeConn) RemoteAddr() net.Addr {
	return PipeAddr{ID: 1 - c.id}
}
