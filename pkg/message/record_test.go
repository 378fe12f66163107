package message

import (
	"testing"

	"github.com/backkem/yubihsm/pkg/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	r := &Record{Type: command.OpcodeEcho, Body: []byte{0xde, 0xad}}
	raw, err := r.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x00, 0x02, 0xde, 0xad}, raw)

	got, err := DecodeRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, r, got)
	assert.NoError(t, got.Expect(command.OpcodeEcho))
	assert.ErrorIs(t, got.Expect(command.OpcodeSessionMessage), ErrUnexpectedType)
}

func TestRecordErrors(t *testing.T) {
	_, err := DecodeRecord([]byte{0x01, 0x00})
	assert.ErrorIs(t, err, ErrMessageTooShort)

	_, err = DecodeRecord([]byte{0x01, 0x00, 0x02, 0x00})
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = DecodeRecord(make([]byte, command.MaxMessageSize+1))
	assert.ErrorIs(t, err, ErrMessageTooLong)

	_, err = (&Record{Body: make([]byte, command.MaxMessageSize)}).Encode()
	assert.ErrorIs(t, err, ErrMessageTooLong)
}

func TestErrorRecord(t *testing.T) {
	raw := EncodeError(command.StatusInvalidID)
	assert.Equal(t, []byte{0x7f, 0x00, 0x01, 0x0c}, raw)

	rec, err := DecodeRecord(raw)
	require.NoError(t, err)
	devErr, ok := rec.DeviceError(command.OpcodeCreateSession)
	require.True(t, ok)
	assert.ErrorIs(t, devErr, command.ErrDeviceInvalidID)

	rec = &Record{Type: command.OpcodeCreateSession.Response()}
	_, ok = rec.DeviceError(command.OpcodeCreateSession)
	assert.False(t, ok)
}
