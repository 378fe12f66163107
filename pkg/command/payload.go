package command

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Payload field sizes.
const (
	LabelSize   = 40
	DomainsSize = 2
	// ObjectInfoSize is the GetObjectInfo response payload size.
	ObjectInfoSize = 8 + 2 + 2 + 2 + 1 + 1 + 1 + 1 + LabelSize + 8
)

// EncodeLabel returns label zero-padded to LabelSize bytes.
func EncodeLabel(label string) ([]byte, error) {
	if len(label) > LabelSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrLabelTooLong, len(label), LabelSize)
	}
	buf := make([]byte, LabelSize)
	copy(buf, label)
	return buf, nil
}

// DecodeLabel strips the zero padding of a label field.
func DecodeLabel(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// GenerateKeyPayload builds the label || domains payload of a key
// generation request.
func GenerateKeyPayload(label string, domains uint16) ([]byte, error) {
	buf, err := EncodeLabel(label)
	if err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint16(buf, domains), nil
}

// PutKeyPayload builds the label || domains || key payload of a key import
// request.
func PutKeyPayload(label string, domains uint16, key []byte) ([]byte, error) {
	buf, err := EncodeLabel(label)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, LabelSize+DomainsSize+len(key))
	out = append(out, buf...)
	out = binary.BigEndian.AppendUint16(out, domains)
	return append(out, key...), nil
}

// SplitKeyPayload is the device side of GenerateKeyPayload and PutKeyPayload.
// key is empty for generation requests and aliases payload.
func SplitKeyPayload(payload []byte) (label string, domains uint16, key []byte, err error) {
	if len(payload) < LabelSize+DomainsSize {
		return "", 0, nil, fmt.Errorf("%w: key payload %d bytes", ErrMalformedRequest, len(payload))
	}
	label = DecodeLabel(payload[:LabelSize])
	domains = binary.BigEndian.Uint16(payload[LabelSize : LabelSize+DomainsSize])
	return label, domains, payload[LabelSize+DomainsSize:], nil
}

// DecodeObjectID parses the 2-byte object id returned by creation commands.
func DecodeObjectID(payload []byte) (uint16, error) {
	if len(payload) != ObjectIDSize {
		return 0, fmt.Errorf("%w: object id payload %d bytes", ErrMalformedResponse, len(payload))
	}
	return binary.BigEndian.Uint16(payload), nil
}

// EncodeObjectID is the device side of DecodeObjectID.
func EncodeObjectID(id uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, id)
}

// VerifyPayload builds the mac || data payload of a verification request.
func VerifyPayload(mac, data []byte) []byte {
	out := make([]byte, 0, len(mac)+len(data))
	out = append(out, mac...)
	return append(out, data...)
}

// DecodeVerifyResult parses the 1-byte verification result.
func DecodeVerifyResult(payload []byte) (bool, error) {
	if len(payload) != 1 || payload[0] > 1 {
		return false, fmt.Errorf("%w: verify result %x", ErrMalformedResponse, payload)
	}
	return payload[0] == 1, nil
}

// EncodeVerifyResult is the device side of DecodeVerifyResult.
func EncodeVerifyResult(ok bool) []byte {
	if ok {
		return []byte{1}
	}
	return []byte{0}
}

// RandomLengthPayload builds the GetPseudoRandom request payload.
func RandomLengthPayload(n uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, n)
}

// ObjectInfo describes an object without exposing its contents.
type ObjectInfo struct {
	Capabilities          Capability
	ID                    uint16
	Length                uint16
	Domains               uint16
	Type                  ObjectType
	Algorithm             Algorithm
	Sequence              uint8
	Origin                uint8
	Label                 string
	DelegatedCapabilities Capability
}

// Object origins.
const (
	OriginGenerated uint8 = 0x01
	OriginImported  uint8 = 0x02
)

// Encode serializes the GetObjectInfo response payload.
func (o *ObjectInfo) Encode() []byte {
	buf := make([]byte, 0, ObjectInfoSize)
	buf = binary.BigEndian.AppendUint64(buf, uint64(o.Capabilities))
	buf = binary.BigEndian.AppendUint16(buf, o.ID)
	buf = binary.BigEndian.AppendUint16(buf, o.Length)
	buf = binary.BigEndian.AppendUint16(buf, o.Domains)
	buf = append(buf, byte(o.Type), byte(o.Algorithm), o.Sequence, o.Origin)
	label := make([]byte, LabelSize)
	copy(label, o.Label)
	buf = append(buf, label...)
	return binary.BigEndian.AppendUint64(buf, uint64(o.DelegatedCapabilities))
}

// DecodeObjectInfo parses a GetObjectInfo response payload.
func DecodeObjectInfo(payload []byte) (*ObjectInfo, error) {
	if len(payload) != ObjectInfoSize {
		return nil, fmt.Errorf("%w: object info %d bytes", ErrMalformedResponse, len(payload))
	}
	return &ObjectInfo{
		Capabilities:          Capability(binary.BigEndian.Uint64(payload[0:8])),
		ID:                    binary.BigEndian.Uint16(payload[8:10]),
		Length:                binary.BigEndian.Uint16(payload[10:12]),
		Domains:               binary.BigEndian.Uint16(payload[12:14]),
		Type:                  ObjectType(payload[14]),
		Algorithm:             Algorithm(payload[15]),
		Sequence:              payload[16],
		Origin:                payload[17],
		Label:                 DecodeLabel(payload[18 : 18+LabelSize]),
		DelegatedCapabilities: Capability(binary.BigEndian.Uint64(payload[18+LabelSize:])),
	}, nil
}
