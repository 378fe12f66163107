package command

import (
	"encoding/binary"
	"fmt"
)

// Size limits.
const (
	// MaxMessageSize is the largest transport record the device accepts.
	MaxMessageSize = 2048

	// SessionOverhead is the framing around the ciphertext of an
	// authenticated record: record header, session id, counter and MAC.
	SessionOverhead = 3 + 1 + 4 + 8

	// HeaderSize is the opcode and length prefix of every record.
	HeaderSize = 3

	// ObjectIDSize is the size of the target object id.
	ObjectIDSize = 2

	// AttributesSize is the algorithm and capability fields.
	AttributesSize = 1 + 8

	// MaxRequestHeaderSize is the largest request prefix before the payload.
	MaxRequestHeaderSize = HeaderSize + ObjectIDSize + AttributesSize

	// MaxRecordSize is the largest command record that still fits one
	// padded, encrypted session frame.
	MaxRecordSize = (MaxMessageSize-SessionOverhead)/16*16 - 1

	// MaxPayloadSize is the largest request payload.
	MaxPayloadSize = MaxRecordSize - MaxRequestHeaderSize

	// MaxObjectID is the highest addressable object id. Id 0 asks the
	// device to pick one on creation.
	MaxObjectID = 0xfffe

	// ResponseHeaderSize is the response prefix including the status byte.
	ResponseHeaderSize = HeaderSize + 1
)

// Request is one command sent inside a session.
type Request struct {
	Opcode Opcode

	// ObjectID is the target object. Zero for commands without a target.
	ObjectID uint16

	// Algorithm and Capabilities are encoded only for opcodes that
	// create objects.
	Algorithm    Algorithm
	Capabilities Capability

	Payload []byte
}

// Response is one decoded command response.
type Response struct {
	Opcode  Opcode
	Status  Status
	Code    byte
	Payload []byte
}

// Err returns the device error carried by r, or nil on success.
func (r *Response) Err() error {
	if r.Status == StatusSuccess {
		return nil
	}
	return &DeviceError{Opcode: r.Opcode &^ ResponseBit, Status: r.Status, Code: r.Code}
}

// Encode serializes a request record. The caller owns the returned slice
// and should zeroize it once sealed if the payload carries key material.
func Encode(req *Request) ([]byte, error) {
	if req.ObjectID > MaxObjectID {
		return nil, fmt.Errorf("%w: 0x%04x", ErrInvalidID, req.ObjectID)
	}
	if len(req.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(req.Payload), MaxPayloadSize)
	}

	bodyLen := ObjectIDSize + len(req.Payload)
	if req.Opcode.hasObjectAttributes() {
		bodyLen += AttributesSize
	}

	buf := make([]byte, HeaderSize+bodyLen)
	buf[0] = byte(req.Opcode)
	binary.BigEndian.PutUint16(buf[1:3], uint16(bodyLen))
	binary.BigEndian.PutUint16(buf[3:5], req.ObjectID)
	off := 5
	if req.Opcode.hasObjectAttributes() {
		buf[off] = byte(req.Algorithm)
		binary.BigEndian.PutUint64(buf[off+1:off+9], uint64(req.Capabilities))
		off += AttributesSize
	}
	copy(buf[off:], req.Payload)
	return buf, nil
}

// DecodeRequest parses a request record. It is the device side of Encode.
// The returned payload aliases raw.
func DecodeRequest(raw []byte) (*Request, error) {
	if len(raw) < HeaderSize+ObjectIDSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedRequest, len(raw))
	}
	length := int(binary.BigEndian.Uint16(raw[1:3]))
	if length != len(raw)-HeaderSize {
		return nil, fmt.Errorf("%w: length %d, have %d", ErrMalformedRequest, length, len(raw)-HeaderSize)
	}

	req := &Request{
		Opcode:   Opcode(raw[0]),
		ObjectID: binary.BigEndian.Uint16(raw[3:5]),
	}
	off := 5
	if req.Opcode.hasObjectAttributes() {
		if len(raw) < off+AttributesSize {
			return nil, fmt.Errorf("%w: missing object attributes", ErrMalformedRequest)
		}
		req.Algorithm = Algorithm(raw[off])
		req.Capabilities = Capability(binary.BigEndian.Uint64(raw[off+1 : off+9]))
		off += AttributesSize
	}
	req.Payload = raw[off:]
	return req, nil
}

// EncodeResponse serializes a response record for op with the given status.
func EncodeResponse(op Opcode, status Status, payload []byte) []byte {
	buf := make([]byte, ResponseHeaderSize+len(payload))
	buf[0] = byte(op.Response())
	binary.BigEndian.PutUint16(buf[1:3], uint16(1+len(payload)))
	buf[3] = byte(status)
	copy(buf[4:], payload)
	return buf
}

// Decode parses the response record to a request with opcode op. A
// non-success status is returned in the Response, not as an error; use
// Response.Err. The returned payload aliases raw.
func Decode(op Opcode, raw []byte) (*Response, error) {
	if len(raw) < ResponseHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedResponse, len(raw))
	}
	if Opcode(raw[0]) != op.Response() {
		return nil, fmt.Errorf("%w: got %s, want %s", unexpectedOpcodeError{}, Opcode(raw[0]), op.Response())
	}
	length := int(binary.BigEndian.Uint16(raw[1:3]))
	if length != len(raw)-HeaderSize {
		return nil, fmt.Errorf("%w: length %d, have %d", ErrMalformedResponse, length, len(raw)-HeaderSize)
	}
	return &Response{
		Opcode:  Opcode(raw[0]),
		Status:  ParseStatus(raw[3]),
		Code:    raw[3],
		Payload: raw[4:],
	}, nil
}
