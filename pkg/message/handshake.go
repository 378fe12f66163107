package message

import (
	"encoding/binary"
	"fmt"

	"github.com/backkem/yubihsm/pkg/command"
)

// Handshake body sizes.
const (
	createSessionRequestSize  = 2 + ChallengeSize
	createSessionResponseSize = SessionIDSize + ChallengeSize + CryptogramSize
	authenticateRequestSize   = SessionIDSize + CryptogramSize + MACSize
)

// CreateSessionRequest opens a handshake with the authentication key KeyID.
type CreateSessionRequest struct {
	KeyID         uint16
	HostChallenge [ChallengeSize]byte
}

// Encode serializes the request record.
func (m *CreateSessionRequest) Encode() []byte {
	body := make([]byte, createSessionRequestSize)
	binary.BigEndian.PutUint16(body[0:2], m.KeyID)
	copy(body[2:], m.HostChallenge[:])
	rec, _ := (&Record{Type: command.OpcodeCreateSession, Body: body}).Encode()
	return rec
}

// DecodeCreateSessionRequest parses the body of a CreateSession record.
func DecodeCreateSessionRequest(body []byte) (*CreateSessionRequest, error) {
	if len(body) != createSessionRequestSize {
		return nil, fmt.Errorf("%w: create session body %d bytes", ErrInvalidLength, len(body))
	}
	m := &CreateSessionRequest{KeyID: binary.BigEndian.Uint16(body[0:2])}
	copy(m.HostChallenge[:], body[2:])
	return m, nil
}

// CreateSessionResponse carries the device half of the handshake.
type CreateSessionResponse struct {
	SessionID      uint8
	CardChallenge  [ChallengeSize]byte
	CardCryptogram [CryptogramSize]byte
}

// Encode serializes the response record.
func (m *CreateSessionResponse) Encode() []byte {
	body := make([]byte, 0, createSessionResponseSize)
	body = append(body, m.SessionID)
	body = append(body, m.CardChallenge[:]...)
	body = append(body, m.CardCryptogram[:]...)
	rec, _ := (&Record{Type: command.OpcodeCreateSession.Response(), Body: body}).Encode()
	return rec
}

// DecodeCreateSessionResponse parses the body of a CreateSession response.
func DecodeCreateSessionResponse(body []byte) (*CreateSessionResponse, error) {
	if len(body) != createSessionResponseSize {
		return nil, fmt.Errorf("%w: create session response body %d bytes", ErrInvalidLength, len(body))
	}
	m := &CreateSessionResponse{SessionID: body[0]}
	copy(m.CardChallenge[:], body[1:1+ChallengeSize])
	copy(m.CardCryptogram[:], body[1+ChallengeSize:])
	return m, nil
}

// AuthenticateSessionRequest proves possession of the session keys.
type AuthenticateSessionRequest struct {
	SessionID      uint8
	HostCryptogram [CryptogramSize]byte
	MAC            [MACSize]byte
}

// MACInput returns the record bytes covered by MAC: the full record with
// the MAC field omitted but the length still counting it.
func (m *AuthenticateSessionRequest) MACInput() []byte {
	buf := make([]byte, 0, RecordHeaderSize+SessionIDSize+CryptogramSize)
	buf = append(buf, byte(command.OpcodeAuthenticateSession))
	buf = binary.BigEndian.AppendUint16(buf, authenticateRequestSize)
	buf = append(buf, m.SessionID)
	return append(buf, m.HostCryptogram[:]...)
}

// Encode serializes the request record.
func (m *AuthenticateSessionRequest) Encode() []byte {
	return append(m.MACInput(), m.MAC[:]...)
}

// DecodeAuthenticateSessionRequest parses the body of an
// AuthenticateSession record.
func DecodeAuthenticateSessionRequest(body []byte) (*AuthenticateSessionRequest, error) {
	if len(body) != authenticateRequestSize {
		return nil, fmt.Errorf("%w: authenticate session body %d bytes", ErrInvalidLength, len(body))
	}
	m := &AuthenticateSessionRequest{SessionID: body[0]}
	copy(m.HostCryptogram[:], body[1:1+CryptogramSize])
	copy(m.MAC[:], body[1+CryptogramSize:])
	return m, nil
}

// EncodeAuthenticateSessionResponse builds the empty success record that
// completes the handshake.
func EncodeAuthenticateSessionResponse() []byte {
	return []byte{byte(command.OpcodeAuthenticateSession.Response()), 0x00, 0x00}
}
