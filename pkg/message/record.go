// Package message implements the YubiHSM2 wire framing: the outer transport
// record, the unauthenticated handshake records, and the session frame that
// carries encrypted commands.
//
// Every record on the transport is
//
//	[type:1][length:2 BE][body]
//
// where type is a command opcode (with the response bit on replies) and
// length counts the body bytes.
package message

import (
	"encoding/binary"
	"fmt"

	"github.com/backkem/yubihsm/pkg/command"
)

// Record is one transport record.
type Record struct {
	Type command.Opcode
	Body []byte
}

// Encode serializes the record.
func (r *Record) Encode() ([]byte, error) {
	if RecordHeaderSize+len(r.Body) > command.MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLong, RecordHeaderSize+len(r.Body))
	}
	buf := make([]byte, RecordHeaderSize+len(r.Body))
	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(r.Body)))
	copy(buf[RecordHeaderSize:], r.Body)
	return buf, nil
}

// DecodeRecord parses one transport record. The body aliases data.
func DecodeRecord(data []byte) (*Record, error) {
	if len(data) < RecordHeaderSize {
		return nil, ErrMessageTooShort
	}
	if len(data) > command.MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLong, len(data))
	}
	length := int(binary.BigEndian.Uint16(data[1:3]))
	if length != len(data)-RecordHeaderSize {
		return nil, fmt.Errorf("%w: header %d, body %d", ErrInvalidLength, length, len(data)-RecordHeaderSize)
	}
	return &Record{
		Type: command.Opcode(data[0]),
		Body: data[RecordHeaderSize:],
	}, nil
}

// Expect returns ErrUnexpectedType unless the record has type t.
func (r *Record) Expect(t command.Opcode) error {
	if r.Type != t {
		return fmt.Errorf("%w: got %s, want %s", ErrUnexpectedType, r.Type, t)
	}
	return nil
}

// EncodeError builds the unauthenticated device error record.
func EncodeError(status command.Status) []byte {
	return []byte{byte(command.OpcodeError), 0x00, 0x01, byte(status)}
}

// DeviceError converts an error record to a *command.DeviceError for the
// request opcode op. ok is false if r is not an error record.
func (r *Record) DeviceError(op command.Opcode) (err *command.DeviceError, ok bool) {
	if r.Type != command.OpcodeError {
		return nil, false
	}
	code := byte(command.StatusGenericError)
	if len(r.Body) == 1 {
		code = r.Body[0]
	}
	return command.NewDeviceError(op, code), true
}
