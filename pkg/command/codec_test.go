package command

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxPayloadSize(t *testing.T) {
	assert.Equal(t, 2031, MaxRecordSize)
	assert.Equal(t, 2017, MaxPayloadSize)
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want []byte
	}{
		{
			name: "sign",
			req:  Request{Opcode: OpcodeSignHMAC, ObjectID: 0x0102, Payload: []byte{0xaa, 0xbb}},
			want: []byte{0x53, 0x00, 0x04, 0x01, 0x02, 0xaa, 0xbb},
		},
		{
			name: "generate carries attributes",
			req: Request{
				Opcode:       OpcodeGenerateHMACKey,
				ObjectID:     0x0010,
				Algorithm:    AlgorithmHMACSHA256,
				Capabilities: CapabilitySignHMAC | CapabilityDeleteHMACKey,
				Payload:      []byte{0x01},
			},
			want: []byte{
				0x5a, 0x00, 0x0c, 0x00, 0x10,
				0x14,
				0x00, 0x00, 0x08, 0x00, 0x00, 0x40, 0x00, 0x00,
				0x01,
			},
		},
		{
			name: "empty payload",
			req:  Request{Opcode: OpcodeCloseSession},
			want: []byte{0x40, 0x00, 0x02, 0x00, 0x00},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(&tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			back, err := DecodeRequest(got)
			require.NoError(t, err)
			assert.Equal(t, tt.req.Opcode, back.Opcode)
			assert.Equal(t, tt.req.ObjectID, back.ObjectID)
			assert.Equal(t, tt.req.Algorithm, back.Algorithm)
			assert.Equal(t, tt.req.Capabilities, back.Capabilities)
			assert.True(t, bytes.Equal(tt.req.Payload, back.Payload))
		})
	}
}

func TestEncodeLimits(t *testing.T) {
	_, err := Encode(&Request{Opcode: OpcodeSignHMAC, ObjectID: 0xffff})
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = Encode(&Request{Opcode: OpcodeSignHMAC, ObjectID: MaxObjectID})
	assert.NoError(t, err)

	_, err = Encode(&Request{Opcode: OpcodePutHMACKey, Payload: make([]byte, MaxPayloadSize+1)})
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	raw, err := Encode(&Request{Opcode: OpcodePutHMACKey, Payload: make([]byte, MaxPayloadSize)})
	require.NoError(t, err)
	assert.Len(t, raw, MaxRecordSize)
}

func TestDecodeRequestErrors(t *testing.T) {
	_, err := DecodeRequest([]byte{0x53, 0x00})
	assert.ErrorIs(t, err, ErrMalformedRequest)

	_, err = DecodeRequest([]byte{0x53, 0x00, 0x05, 0x00, 0x01})
	assert.ErrorIs(t, err, ErrMalformedRequest)

	_, err = DecodeRequest([]byte{0x5a, 0x00, 0x03, 0x00, 0x01, 0x14})
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestDecode(t *testing.T) {
	raw := EncodeResponse(OpcodeSignHMAC, StatusSuccess, []byte{1, 2, 3})
	assert.Equal(t, []byte{0xd3, 0x00, 0x04, 0x00, 1, 2, 3}, raw)

	resp, err := Decode(OpcodeSignHMAC, raw)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, []byte{1, 2, 3}, resp.Payload)
	assert.NoError(t, resp.Err())
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"short", []byte{0xd3, 0x00}},
		{"length too big", []byte{0xd3, 0x00, 0x05, 0x00, 1}},
		{"length too small", []byte{0xd3, 0x00, 0x01, 0x00, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(OpcodeSignHMAC, tt.raw)
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}

	_, err := Decode(OpcodeSignHMAC, EncodeResponse(OpcodeVerifyHMAC, StatusSuccess, nil))
	assert.ErrorIs(t, err, ErrUnexpectedOpcode)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDecodeDeviceStatus(t *testing.T) {
	resp, err := Decode(OpcodeSignHMAC, EncodeResponse(OpcodeSignHMAC, StatusObjectNotFound, nil))
	require.NoError(t, err)

	err = resp.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.False(t, errors.Is(err, ErrDeviceBusy))

	var devErr *DeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Equal(t, StatusObjectNotFound, devErr.Status)
	assert.Equal(t, OpcodeSignHMAC, devErr.Opcode)
}

func TestDecodeUnknownStatus(t *testing.T) {
	raw := []byte{0xd3, 0x00, 0x01, 0x42}
	resp, err := Decode(OpcodeSignHMAC, raw)
	require.NoError(t, err)
	assert.Equal(t, StatusGenericError, resp.Status)
	assert.Equal(t, byte(0x42), resp.Code)

	err = resp.Err()
	assert.ErrorIs(t, err, ErrGeneric)
	assert.Contains(t, err.Error(), "0x42")
}
