// Package securechannel drives the host side of a YubiHSM2 secure session
// over a transport.Transport.
//
// A Channel performs the two round trip handshake and then runs each
// command through encode, seal, send, receive, open and decode while
// holding one lock, so concurrent callers are served one at a time.
//
// Protocol integrity failures (bad MAC, counter mismatch, malformed frame,
// timeout) close the session. The channel never re-authenticates on its
// own; callers check State or IsIntegrityError and call Authenticate.
package securechannel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/backkem/yubihsm/pkg/command"
	"github.com/backkem/yubihsm/pkg/crypto"
	"github.com/backkem/yubihsm/pkg/message"
	"github.com/backkem/yubihsm/pkg/session"
	"github.com/backkem/yubihsm/pkg/transport"
	"github.com/google/uuid"
	"github.com/pion/logging"
)

// DefaultTimeout bounds one exchange when the caller's context has no
// deadline.
const DefaultTimeout = 30 * time.Second

// closeTimeout bounds the best-effort CloseSession exchange.
const closeTimeout = 2 * time.Second

// Callbacks provides callback functions for Channel events.
type Callbacks struct {
	// OnSessionEstablished is called when a session is authenticated.
	OnSessionEstablished func(sessionID uint8)

	// OnSessionClosed is called when an authenticated session closes. cause
	// is nil for an explicit Close.
	OnSessionClosed func(sessionID uint8, cause error)
}

// Config configures a Channel.
type Config struct {
	// Transport carries records to the device.
	// Required.
	Transport transport.Transport

	// Credential is the long-term authentication key.
	// Required.
	Credential session.Credential

	// Timeout bounds each exchange whose context has no deadline.
	// Default: DefaultTimeout.
	Timeout time.Duration

	// Callbacks for Channel events.
	Callbacks Callbacks

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Channel is the host end of a secure session.
type Channel struct {
	transport transport.Transport
	cred      session.Credential
	timeout   time.Duration
	callbacks Callbacks
	id        uuid.UUID
	log       logging.LeveledLogger

	// sess is nil until the first Authenticate.
	sess *session.Session

	// stale counts responses still owed by the device for requests whose
	// exchange timed out. The handshake skips that many stray records.
	stale int

	mu sync.Mutex
}

// New creates a Channel. No traffic is sent until Authenticate.
func New(config Config) (*Channel, error) {
	if config.Transport == nil {
		return nil, ErrNoTransport
	}
	if config.Credential.IsZero() {
		return nil, ErrNoCredential
	}

	c := &Channel{
		transport: config.Transport,
		cred:      config.Credential,
		timeout:   config.Timeout,
		callbacks: config.Callbacks,
		id:        uuid.New(),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("securechannel")
	}
	return c, nil
}

// ID returns the channel's correlation id.
func (c *Channel) ID() string {
	return c.id.String()
}

// State returns the state of the current session.
func (c *Channel) State() session.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return session.StateUnauthenticated
	}
	return c.sess.State()
}

// SessionID returns the device-assigned id of the authenticated session.
func (c *Channel) SessionID() (uint8, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.sess.State() != session.StateAuthenticated {
		return 0, false
	}
	return c.sess.ID(), true
}

// Authenticate establishes a new session, replacing any previous one.
func (c *Channel) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil && c.sess.State() == session.StateAuthenticated {
		c.closeLocked(ctx)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	sess := session.NewHost(c.cred)
	c.sess = sess

	create, err := sess.Begin()
	if err != nil {
		return c.handshakeError(err)
	}
	c.debugf("create session with key %d", create.KeyID)

	resp, err := c.createSessionLocked(ctx, sess, create)
	if err != nil {
		return c.handshakeError(sess.Fail(err))
	}

	auth, err := sess.Respond(resp)
	if err != nil {
		return c.handshakeError(err)
	}

	rec, err := c.exchangeLocked(ctx, auth.Encode(), command.OpcodeAuthenticateSession)
	if err != nil {
		return c.handshakeError(sess.Fail(err))
	}
	if len(rec.Body) != 0 {
		return c.handshakeError(sess.Fail(fmt.Errorf("%w: authenticate session response %d bytes", session.ErrMalformedFrame, len(rec.Body))))
	}
	if err := sess.Confirm(); err != nil {
		return c.handshakeError(err)
	}
	// Replies that have not arrived by now are treated as lost.
	c.stale = 0

	if c.log != nil {
		c.log.Infof("[%s] session %d authenticated in %s", c.id, sess.ID(), time.Since(start).Round(time.Millisecond))
	}
	if c.callbacks.OnSessionEstablished != nil {
		c.callbacks.OnSessionEstablished(sess.ID())
	}
	return nil
}

// Transceive sends one command and returns its response. A non-success
// device status is returned as a *command.DeviceError together with the
// response; the session stays open. Every other error closes the session
// unless it was raised before anything was sent.
func (c *Channel) Transceive(ctx context.Context, req *command.Request) (*command.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.transceiveLocked(ctx, req)
}

// Abort closes the session because of cause, e.g. a response payload that
// does not fit its command. It returns the error to report.
func (c *Channel) Abort(cause error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.sess.State() == session.StateClosed {
		return &ClosedError{Cause: cause}
	}
	return c.failLocked(c.sess.Fail(cause))
}

// Close sends CloseSession (best effort) and zeroizes the session keys. The
// channel can authenticate again afterwards.
func (c *Channel) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked(ctx)
	return nil
}

func (c *Channel) closeLocked(ctx context.Context) {
	sess := c.sess
	if sess == nil || sess.State() == session.StateClosed {
		return
	}
	if sess.State() == session.StateAuthenticated {
		ctx, cancel := context.WithTimeout(ctx, closeTimeout)
		_, err := c.transceiveLocked(ctx, &command.Request{Opcode: command.OpcodeCloseSession})
		cancel()
		if err != nil {
			c.debugf("close session %d: %v", sess.ID(), err)
		}
		if sess.State() == session.StateClosed {
			// A failed exchange already closed and reported the session.
			return
		}
	}
	id := sess.ID()
	sess.Close()
	if c.log != nil {
		c.log.Infof("[%s] session %d closed", c.id, id)
	}
	if c.callbacks.OnSessionClosed != nil {
		c.callbacks.OnSessionClosed(id, nil)
	}
}

func (c *Channel) transceiveLocked(ctx context.Context, req *command.Request) (*command.Response, error) {
	sess := c.sess
	if sess == nil {
		return nil, ErrNotAuthenticated
	}
	switch sess.State() {
	case session.StateAuthenticated:
	case session.StateClosed:
		return nil, fmt.Errorf("%w: authenticate again", ErrSessionClosed)
	default:
		return nil, ErrNotAuthenticated
	}

	plaintext, err := command.Encode(req)
	if err != nil {
		return nil, err
	}
	frame, err := sess.Seal(plaintext)
	crypto.Zeroize(plaintext)
	if err != nil {
		return nil, c.failLocked(err)
	}
	raw, err := frame.Encode(command.OpcodeSessionMessage)
	if err != nil {
		return nil, c.failLocked(sess.Fail(err))
	}
	c.debugf("send %s session %d counter %d", req.Opcode, frame.SessionID, frame.Counter)

	rec, err := c.exchangeLocked(ctx, raw, command.OpcodeSessionMessage)
	if err != nil {
		return nil, c.failLocked(sess.Fail(err))
	}
	in, err := message.DecodeSessionFrame(rec.Body)
	if err != nil {
		return nil, c.failLocked(sess.Fail(fmt.Errorf("%w: %w", session.ErrMalformedFrame, err)))
	}
	plaintext, err = sess.Open(in)
	if err != nil {
		return nil, c.failLocked(err)
	}

	resp, err := command.Decode(req.Opcode, plaintext)
	if err != nil {
		return nil, c.failLocked(sess.Fail(err))
	}
	c.debugf("recv %s status %s counter %d", resp.Opcode, resp.Status, in.Counter)
	return resp, resp.Err()
}

// createSessionLocked sends CreateSession and returns the device's answer.
// While earlier requests are unanswered, a response whose card cryptogram
// does not match this session's challenge is taken as a late reply to one
// of them and skipped. If nothing else arrives before the deadline, the
// skipped response was this session's own and the credential is wrong.
func (c *Channel) createSessionLocked(ctx context.Context, sess *session.Session, create *message.CreateSessionRequest) (*message.CreateSessionResponse, error) {
	if err := c.sendLocked(ctx, create.Encode()); err != nil {
		return nil, err
	}
	skipped := false
	for {
		rec, err := c.receiveLocked(ctx, command.OpcodeCreateSession)
		if err != nil {
			if skipped && errors.Is(err, session.ErrTimeout) {
				c.stale--
				return nil, fmt.Errorf("%w: card cryptogram mismatch", session.ErrAuthenticationFailed)
			}
			return nil, err
		}
		resp, err := message.DecodeCreateSessionResponse(rec.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", session.ErrMalformedFrame, err)
		}
		if c.stale > 0 && !sess.Matches(resp) {
			c.stale--
			skipped = true
			c.debugf("skipping late create session response for session %d", resp.SessionID)
			continue
		}
		return resp, nil
	}
}

// exchangeLocked sends one record and waits for the response to op.
func (c *Channel) exchangeLocked(ctx context.Context, raw []byte, op command.Opcode) (*message.Record, error) {
	if err := c.sendLocked(ctx, raw); err != nil {
		return nil, err
	}
	return c.receiveLocked(ctx, op)
}

func (c *Channel) sendLocked(ctx context.Context, raw []byte) error {
	if err := c.transport.Send(ctx, raw); err != nil {
		return timeoutOr(err)
	}
	return nil
}

// receiveLocked waits for the response to op. A request that times out
// here is still owed a response, which is counted as stale. Stale session
// responses that arrive during a handshake are skipped, and so are other
// stray records while stale responses are outstanding.
func (c *Channel) receiveLocked(ctx context.Context, op command.Opcode) (*message.Record, error) {
	for {
		in, err := c.transport.Recv(ctx)
		if err != nil {
			err = timeoutOr(err)
			if errors.Is(err, session.ErrTimeout) {
				c.stale++
			}
			return nil, err
		}
		rec, err := message.DecodeRecord(in)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", session.ErrMalformedFrame, err)
		}
		if c.skipLocked(rec, op) {
			continue
		}
		if devErr, ok := rec.DeviceError(op); ok {
			if op == command.OpcodeSessionMessage {
				return nil, fmt.Errorf("%w: %w", ErrSessionRejected, devErr)
			}
			return nil, devErr
		}
		if err := rec.Expect(op.Response()); err != nil {
			return nil, fmt.Errorf("%w: %w", session.ErrMalformedFrame, err)
		}
		return rec, nil
	}
}

// skipLocked reports whether rec is a stray record during a handshake.
func (c *Channel) skipLocked(rec *message.Record, op command.Opcode) bool {
	if op == command.OpcodeSessionMessage || rec.Type == op.Response() {
		return false
	}
	switch {
	case rec.Type == command.OpcodeSessionMessage.Response():
		c.debugf("skipping stale session response during handshake")
	case c.stale > 0 && (rec.Type == command.OpcodeError || rec.Type.IsResponse()):
		c.debugf("skipping stale %s during handshake", rec.Type)
	default:
		return false
	}
	if c.stale > 0 {
		c.stale--
	}
	return true
}

// failLocked reports an error that closed the session.
func (c *Channel) failLocked(err error) error {
	sess := c.sess
	if c.log != nil {
		c.log.Warnf("[%s] session %d closed: %v", c.id, sess.ID(), err)
	}
	if c.callbacks.OnSessionClosed != nil {
		c.callbacks.OnSessionClosed(sess.ID(), err)
	}
	return &ClosedError{Cause: err}
}

func (c *Channel) handshakeError(err error) error {
	if c.log != nil {
		c.log.Warnf("[%s] handshake failed: %v", c.id, err)
	}
	return &ClosedError{Cause: err}
}

func (c *Channel) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Channel) debugf(format string, args ...interface{}) {
	if c.log != nil {
		c.log.Debugf("[%s] "+format, append([]interface{}{c.id}, args...)...)
	}
}

// timeoutOr maps transport deadline errors to session.ErrTimeout.
func timeoutOr(err error) error {
	if errors.Is(err, transport.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", session.ErrTimeout, err)
	}
	return err
}
