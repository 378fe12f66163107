// Package mockhsm is a software YubiHSM2 for tests and examples. It speaks
// the device side of the secure session protocol and implements the HMAC
// object commands with capability and domain checks.
//
// It is not a security boundary: keys live in process memory.
package mockhsm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/backkem/yubihsm/pkg/command"
	"github.com/backkem/yubihsm/pkg/message"
	"github.com/backkem/yubihsm/pkg/session"
	"github.com/backkem/yubihsm/pkg/transport"
	"github.com/pion/logging"
)

// AllDomains grants access to all 16 domains.
const AllDomains uint16 = 0xffff

// AuthKey is an authentication key object stored on the device.
type AuthKey struct {
	Credential   session.Credential
	Label        string
	Domains      uint16
	Capabilities command.Capability

	// Delegated bounds the capabilities of objects this key creates.
	Delegated command.Capability
}

// Config configures a Device.
type Config struct {
	// AuthKeys are the authentication keys on the device.
	// Default: the factory key 1 with password "password" and all
	// capabilities and domains.
	AuthKeys []AuthKey

	// MaxSessions bounds concurrent sessions.
	// Default: session.DefaultMaxSessions.
	MaxSessions int

	// SessionIdleTimeout expires sessions that see no traffic for this
	// long, including sessions the host abandoned mid-handshake.
	// Default: session.DefaultIdleTimeout.
	SessionIdleTimeout time.Duration

	// Now returns the device clock.
	// Default: time.Now.
	Now func() time.Time

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// DefaultAuthKey returns the factory authentication key.
func DefaultAuthKey() AuthKey {
	return AuthKey{
		Credential:   session.CredentialFromPassword(session.DefaultAuthKeyID, session.DefaultPassword),
		Label:        "DEFAULT AUTHKEY CHANGE THIS ASAP",
		Domains:      AllDomains,
		Capabilities: command.CapabilityAll,
		Delegated:    command.CapabilityAll,
	}
}

// Device is an in-memory YubiHSM2. It is safe for concurrent use.
type Device struct {
	authKeys map[uint16]AuthKey
	objects  *objectStore
	sessions *session.Table
	log      logging.LeveledLogger

	mu sync.Mutex
	// sessionKeys maps live session ids to their authentication key.
	sessionKeys map[uint8]uint16
	busy        int
	commands    int
}

// New creates a Device.
func New(config Config) *Device {
	d := &Device{
		authKeys: make(map[uint16]AuthKey),
		objects:  newObjectStore(),
		sessions: session.NewTable(session.TableConfig{
			MaxSessions: config.MaxSessions,
			IdleTimeout: config.SessionIdleTimeout,
			Now:         config.Now,
		}),
		sessionKeys: make(map[uint8]uint16),
	}
	keys := config.AuthKeys
	if len(keys) == 0 {
		keys = []AuthKey{DefaultAuthKey()}
	}
	for _, k := range keys {
		d.authKeys[k.Credential.KeyID] = k
	}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("mockhsm")
	}
	return d
}

// SetBusy makes the next n session commands fail with DeviceBusy.
func (d *Device) SetBusy(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy = n
}

// Commands returns the number of session commands processed.
func (d *Device) Commands() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commands
}

// SessionCount returns the number of live sessions.
func (d *Device) SessionCount() int {
	return d.sessions.Count()
}

// Object returns the info of an HMAC key object.
func (d *Device) Object(id uint16) (command.ObjectInfo, bool) {
	o, ok := d.objects.get(command.TypeHMACKey, id)
	if !ok {
		return command.ObjectInfo{}, false
	}
	return o.info, true
}

// Serve answers records from t until ctx is done or t fails.
func (d *Device) Serve(ctx context.Context, t transport.Transport) error {
	for {
		raw, err := t.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, transport.ErrClosed) {
				return nil
			}
			return err
		}
		if err := t.Send(ctx, d.Handle(raw)); err != nil {
			return err
		}
	}
}

// Handle processes one request record and returns the response record.
func (d *Device) Handle(raw []byte) []byte {
	rec, err := message.DecodeRecord(raw)
	if err != nil {
		d.debugf("bad record: %v", err)
		return message.EncodeError(command.StatusWrongLength)
	}

	switch rec.Type {
	case command.OpcodeEcho:
		out, _ := (&message.Record{Type: command.OpcodeEcho.Response(), Body: rec.Body}).Encode()
		return out
	case command.OpcodeCreateSession:
		return d.createSession(rec.Body)
	case command.OpcodeAuthenticateSession:
		return d.authenticateSession(rec.Body)
	case command.OpcodeSessionMessage:
		return d.sessionMessage(rec.Body)
	default:
		d.debugf("unsupported record type %s", rec.Type)
		return message.EncodeError(command.StatusGenericError)
	}
}

func (d *Device) createSession(body []byte) []byte {
	req, err := message.DecodeCreateSessionRequest(body)
	if err != nil {
		return message.EncodeError(command.StatusWrongLength)
	}
	key, ok := d.authKeys[req.KeyID]
	if !ok {
		d.debugf("create session: unknown key %d", req.KeyID)
		return message.EncodeError(command.StatusObjectNotFound)
	}

	sess, err := d.sessions.Create(key.Credential)
	if err != nil {
		d.debugf("create session: %v", err)
		return message.EncodeError(command.StatusGenericError)
	}
	resp, err := sess.Accept(req)
	if err != nil {
		d.sessions.Remove(sess.ID())
		return message.EncodeError(command.StatusGenericError)
	}

	d.mu.Lock()
	d.sessionKeys[sess.ID()] = req.KeyID
	d.mu.Unlock()
	d.debugf("session %d created for key %d", sess.ID(), req.KeyID)
	return resp.Encode()
}

func (d *Device) authenticateSession(body []byte) []byte {
	req, err := message.DecodeAuthenticateSessionRequest(body)
	if err != nil {
		return message.EncodeError(command.StatusWrongLength)
	}
	sess, err := d.sessions.Find(req.SessionID)
	if err != nil {
		return message.EncodeError(command.StatusInvalidID)
	}
	if err := sess.Verify(req); err != nil {
		d.debugf("session %d authentication failed: %v", req.SessionID, err)
		d.dropSession(req.SessionID)
		return message.EncodeError(command.StatusGenericError)
	}
	d.debugf("session %d authenticated", req.SessionID)
	return message.EncodeAuthenticateSessionResponse()
}

func (d *Device) sessionMessage(body []byte) []byte {
	frame, err := message.DecodeSessionFrame(body)
	if err != nil {
		return message.EncodeError(command.StatusWrongLength)
	}
	sess, err := d.sessions.Find(frame.SessionID)
	if err != nil || sess.State() != session.StateAuthenticated {
		return message.EncodeError(command.StatusInvalidID)
	}
	plaintext, err := sess.Open(frame)
	if err != nil {
		d.debugf("session %d: %v", frame.SessionID, err)
		d.dropSession(frame.SessionID)
		return message.EncodeError(command.StatusGenericError)
	}

	d.mu.Lock()
	keyID := d.sessionKeys[frame.SessionID]
	d.commands++
	busy := d.busy > 0
	if busy {
		d.busy--
	}
	d.mu.Unlock()

	var (
		op      command.Opcode
		status  command.Status
		payload []byte
	)
	req, err := command.DecodeRequest(plaintext)
	switch {
	case err != nil:
		status = command.StatusWrongLength
		if len(plaintext) > 0 {
			op = command.Opcode(plaintext[0])
		}
	case busy:
		op, status = req.Opcode, command.StatusDeviceBusy
	default:
		op = req.Opcode
		payload, status = d.dispatch(d.authKeys[keyID], req)
	}
	d.debugf("session %d: %s -> %s", frame.SessionID, op, status)

	out, err := sess.Seal(command.EncodeResponse(op, status, payload))
	if err != nil {
		d.dropSession(frame.SessionID)
		return message.EncodeError(command.StatusGenericError)
	}
	raw, err := out.Encode(command.OpcodeSessionMessage.Response())
	if err != nil {
		return message.EncodeError(command.StatusGenericError)
	}
	if req != nil && req.Opcode == command.OpcodeCloseSession && status == command.StatusSuccess {
		d.dropSession(frame.SessionID)
	}
	return raw
}

func (d *Device) dropSession(id uint8) {
	d.sessions.Remove(id)
	d.mu.Lock()
	delete(d.sessionKeys, id)
	d.mu.Unlock()
}

func (d *Device) debugf(format string, args ...interface{}) {
	if d.log != nil {
		d.log.Debugf(format, args...)
	}
}
