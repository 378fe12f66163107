package message

import (
	"encoding/binary"
	"fmt"

	"github.com/backkem/yubihsm/pkg/command"
)

// SessionFrame is the body of an authenticated SessionMessage record:
//
//	[session id:1][counter:4 BE][ciphertext][mac:8]
type SessionFrame struct {
	SessionID  uint8
	Counter    uint32
	Ciphertext []byte
	MAC        [MACSize]byte
}

// AuthenticatedData returns counter || ciphertext, the input to the frame MAC.
func (f *SessionFrame) AuthenticatedData() []byte {
	buf := make([]byte, 0, CounterSize+len(f.Ciphertext))
	buf = binary.BigEndian.AppendUint32(buf, f.Counter)
	return append(buf, f.Ciphertext...)
}

// Encode serializes the frame into a record of type t, which is
// SessionMessage for commands and its response opcode for replies.
func (f *SessionFrame) Encode(t command.Opcode) ([]byte, error) {
	body := make([]byte, 0, SessionIDSize+CounterSize+len(f.Ciphertext)+MACSize)
	body = append(body, f.SessionID)
	body = append(body, f.AuthenticatedData()...)
	body = append(body, f.MAC[:]...)
	return (&Record{Type: t, Body: body}).Encode()
}

// DecodeSessionFrame parses a SessionMessage record body. The ciphertext
// aliases body.
func DecodeSessionFrame(body []byte) (*SessionFrame, error) {
	if len(body) < SessionIDSize+MinSessionFrameSize {
		return nil, fmt.Errorf("%w: session frame %d bytes", ErrMessageTooShort, len(body))
	}
	macStart := len(body) - MACSize
	f := &SessionFrame{
		SessionID:  body[0],
		Counter:    binary.BigEndian.Uint32(body[1 : 1+CounterSize]),
		Ciphertext: body[1+CounterSize : macStart],
	}
	copy(f.MAC[:], body[macStart:])
	return f, nil
}
