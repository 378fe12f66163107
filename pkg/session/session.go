package session

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/backkem/yubihsm/pkg/crypto"
	"github.com/backkem/yubihsm/pkg/message"
)

// responseIVPrefix marks the IV block of device-to-host frames.
const responseIVPrefix = 0x80

// Session holds the state of one secure session. It is safe for concurrent
// use, though a channel serializes whole exchanges on top of it.
type Session struct {
	role  Role
	state State
	id    uint8
	cred  Credential

	hostChallenge [message.ChallengeSize]byte
	cardChallenge [message.ChallengeSize]byte

	keys *Keys
	cbc  *crypto.AESCBC

	sendCounter *Counter
	recvCounter *Counter

	// closeErr records why the session closed, nil for explicit closes.
	closeErr error

	mu sync.Mutex
}

// NewHost creates the host side of a session for the given credential.
func NewHost(cred Credential) *Session {
	return &Session{role: RoleHost, state: StateUnauthenticated, cred: cred}
}

// NewDevice creates the device side of a session. id is the session id the
// device assigns.
func NewDevice(cred Credential, id uint8) *Session {
	return &Session{role: RoleDevice, state: StateUnauthenticated, cred: cred, id: id}
}

// Role returns which end of the session this is.
func (s *Session) Role() Role {
	return s.role
}

// ID returns the device-assigned session id. It is valid once the
// CreateSession response has been processed.
func (s *Session) ID() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// KeyID returns the authentication key id the session uses.
func (s *Session) KeyID() uint16 {
	return s.cred.KeyID
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure that closed the session, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

// Counters returns the next outgoing and the expected incoming counter.
func (s *Session) Counters() (send, recv uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendCounter == nil {
		return 0, 0
	}
	return s.sendCounter.Value(), s.recvCounter.Value()
}

// Begin starts the host handshake with a fresh random host challenge.
func (s *Session) Begin() (*message.CreateSessionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(RoleHost, StateUnauthenticated); err != nil {
		return nil, err
	}

	challenge, err := crypto.RandomBytes(message.ChallengeSize)
	if err != nil {
		return nil, s.failLocked(err)
	}
	copy(s.hostChallenge[:], challenge)
	s.state = StateAuthenticating

	return &message.CreateSessionRequest{
		KeyID:         s.cred.KeyID,
		HostChallenge: s.hostChallenge,
	}, nil
}

// Respond processes the device's CreateSession response: it derives the
// session keys, checks the card cryptogram and returns the
// AuthenticateSession request to send.
func (s *Session) Respond(resp *message.CreateSessionResponse) (*message.AuthenticateSessionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(RoleHost, StateAuthenticating); err != nil {
		return nil, err
	}
	if s.keys != nil {
		return nil, s.failLocked(fmt.Errorf("%w: duplicate create session response", ErrInvalidState))
	}

	s.id = resp.SessionID
	s.cardChallenge = resp.CardChallenge
	context := Context(s.hostChallenge, s.cardChallenge)

	if err := s.deriveLocked(context); err != nil {
		return nil, s.failLocked(err)
	}

	card, err := s.keys.CardCryptogram(context)
	if err != nil {
		return nil, s.failLocked(err)
	}
	if subtle.ConstantTimeCompare(card[:], resp.CardCryptogram[:]) != 1 {
		return nil, s.failLocked(fmt.Errorf("%w: card cryptogram mismatch", ErrAuthenticationFailed))
	}

	host, err := s.keys.HostCryptogram(context)
	if err != nil {
		return nil, s.failLocked(err)
	}
	req := &message.AuthenticateSessionRequest{SessionID: s.id, HostCryptogram: host}
	req.MAC, err = s.keys.authenticateMAC(req)
	if err != nil {
		return nil, s.failLocked(err)
	}
	return req, nil
}

// Matches reports whether resp answers the CreateSession request sent by
// Begin, by checking its card cryptogram. The session is not changed.
func (s *Session) Matches(resp *message.CreateSessionResponse) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleHost || s.state != StateAuthenticating {
		return false
	}
	context := Context(s.hostChallenge, resp.CardChallenge)
	keys, err := DeriveKeys(&s.cred, context)
	if err != nil {
		return false
	}
	defer keys.Zeroize()
	card, err := keys.CardCryptogram(context)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(card[:], resp.CardCryptogram[:]) == 1
}

// Confirm completes the host handshake after the device accepted
// AuthenticateSession.
func (s *Session) Confirm() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(RoleHost, StateAuthenticating); err != nil {
		return err
	}
	if s.keys == nil {
		return s.failLocked(fmt.Errorf("%w: no session keys", ErrInvalidState))
	}
	s.authenticatedLocked()
	return nil
}

// Accept processes a CreateSession request on the device side and returns
// the response carrying the card challenge and cryptogram.
func (s *Session) Accept(req *message.CreateSessionRequest) (*message.CreateSessionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(RoleDevice, StateUnauthenticated); err != nil {
		return nil, err
	}
	if req.KeyID != s.cred.KeyID {
		return nil, s.failLocked(fmt.Errorf("%w: key id %d", ErrInvalidState, req.KeyID))
	}

	challenge, err := crypto.RandomBytes(message.ChallengeSize)
	if err != nil {
		return nil, s.failLocked(err)
	}
	s.hostChallenge = req.HostChallenge
	copy(s.cardChallenge[:], challenge)
	context := Context(s.hostChallenge, s.cardChallenge)

	if err := s.deriveLocked(context); err != nil {
		return nil, s.failLocked(err)
	}
	card, err := s.keys.CardCryptogram(context)
	if err != nil {
		return nil, s.failLocked(err)
	}
	s.state = StateAuthenticating

	return &message.CreateSessionResponse{
		SessionID:      s.id,
		CardChallenge:  s.cardChallenge,
		CardCryptogram: card,
	}, nil
}

// Verify checks the host's AuthenticateSession request on the device side.
// On success the session is authenticated.
func (s *Session) Verify(req *message.AuthenticateSessionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(RoleDevice, StateAuthenticating); err != nil {
		return err
	}
	if req.SessionID != s.id {
		return s.failLocked(fmt.Errorf("%w: %w: got %d, want %d", ErrMalformedFrame, message.ErrInvalidSession, req.SessionID, s.id))
	}

	context := Context(s.hostChallenge, s.cardChallenge)
	host, err := s.keys.HostCryptogram(context)
	if err != nil {
		return s.failLocked(err)
	}
	mac, err := s.keys.authenticateMAC(req)
	if err != nil {
		return s.failLocked(err)
	}
	hostOK := subtle.ConstantTimeCompare(host[:], req.HostCryptogram[:])
	macOK := subtle.ConstantTimeCompare(mac[:], req.MAC[:])
	if hostOK&macOK != 1 {
		return s.failLocked(fmt.Errorf("%w: host cryptogram mismatch", ErrAuthenticationFailed))
	}

	s.authenticatedLocked()
	return nil
}

// Seal encrypts and authenticates one outgoing record.
func (s *Session) Seal(plaintext []byte) (*message.SessionFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(s.role, StateAuthenticated); err != nil {
		return nil, err
	}

	counter, err := s.sendCounter.Next()
	if err != nil {
		return nil, s.failLocked(err)
	}

	ciphertext, err := s.cbc.Encrypt(s.iv(s.role, counter), plaintext)
	if err != nil {
		return nil, s.failLocked(err)
	}

	f := &message.SessionFrame{SessionID: s.id, Counter: counter, Ciphertext: ciphertext}
	mac, err := crypto.AESCMAC(s.sealMACKey(), f.AuthenticatedData())
	if err != nil {
		return nil, s.failLocked(err)
	}
	copy(f.MAC[:], mac)
	return f, nil
}

// Open authenticates and decrypts one incoming frame. The MAC is checked
// first, then the counter, then the padding; any failure closes the session.
func (s *Session) Open(f *message.SessionFrame) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(s.role, StateAuthenticated); err != nil {
		return nil, err
	}
	if f.SessionID != s.id {
		return nil, s.failLocked(fmt.Errorf("%w: %w: got %d, want %d", ErrMalformedFrame, message.ErrInvalidSession, f.SessionID, s.id))
	}

	mac, err := crypto.AESCMAC(s.openMACKey(), f.AuthenticatedData())
	if err != nil {
		return nil, s.failLocked(err)
	}
	if subtle.ConstantTimeCompare(mac[:message.MACSize], f.MAC[:]) != 1 {
		return nil, s.failLocked(ErrAuthenticationFailed)
	}

	expected := s.recvCounter.Value()
	if !s.recvCounter.Accept(f.Counter) {
		return nil, s.failLocked(fmt.Errorf("%w: counter %d, want %d", ErrReplayDetected, f.Counter, expected))
	}

	peer := RoleDevice
	if s.role == RoleDevice {
		peer = RoleHost
	}
	plaintext, err := s.cbc.Decrypt(s.iv(peer, f.Counter), f.Ciphertext)
	if err != nil {
		return nil, s.failLocked(fmt.Errorf("%w: %w", ErrMalformedFrame, err))
	}
	return plaintext, nil
}

// Fail closes the session because of cause and returns the error to report.
// During the handshake the result wraps ErrHandshakeFailed.
func (s *Session) Fail(cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failLocked(cause)
}

// Close zeroizes the session keys and moves the session to Closed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked(nil)
}

func (s *Session) expect(role Role, state State) error {
	if s.role != role {
		return fmt.Errorf("%w: operation not valid for %s", ErrInvalidState, s.role)
	}
	if s.state == StateClosed {
		if s.closeErr != nil {
			return fmt.Errorf("%w: %w", ErrClosed, s.closeErr)
		}
		return ErrClosed
	}
	if s.state != state {
		return fmt.Errorf("%w: %s, want %s", ErrInvalidState, s.state, state)
	}
	return nil
}

func (s *Session) deriveLocked(context []byte) error {
	keys, err := DeriveKeys(&s.cred, context)
	if err != nil {
		return err
	}
	cbc, err := crypto.NewAESCBC(keys.ENC)
	if err != nil {
		keys.Zeroize()
		return err
	}
	s.keys = keys
	s.cbc = cbc
	return nil
}

func (s *Session) authenticatedLocked() {
	s.sendCounter = NewCounter()
	s.recvCounter = NewCounter()
	s.state = StateAuthenticated
}

// failLocked closes the session and returns the error describing why.
func (s *Session) failLocked(cause error) error {
	if s.state == StateClosed {
		return cause
	}
	err := cause
	if s.state != StateAuthenticated {
		err = fmt.Errorf("%w: %w", ErrHandshakeFailed, cause)
	}
	s.closeLocked(err)
	return err
}

func (s *Session) closeLocked(cause error) {
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	s.closeErr = cause
	s.zeroizeLocked()
}

func (s *Session) zeroizeLocked() {
	if s.keys != nil {
		s.keys.Zeroize()
		s.keys = nil
	}
	s.cbc = nil
	s.cred.Zeroize()
	crypto.Zeroize(s.hostChallenge[:])
	crypto.Zeroize(s.cardChallenge[:])
}

// iv computes the CBC IV of a frame sent by sender with counter c.
func (s *Session) iv(sender Role, c uint32) []byte {
	var block [crypto.AESBlockSize]byte
	if sender == RoleDevice {
		block[0] = responseIVPrefix
	}
	binary.BigEndian.PutUint32(block[crypto.AESBlockSize-4:], c)
	return s.cbc.EncryptBlock(block)
}

func (s *Session) sealMACKey() []byte {
	if s.role == RoleHost {
		return s.keys.MAC
	}
	return s.keys.RMAC
}

func (s *Session) openMACKey() []byte {
	if s.role == RoleHost {
		return s.keys.RMAC
	}
	return s.keys.MAC
}
