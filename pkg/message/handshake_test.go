package message

import (
	"testing"

	"github.com/backkem/yubihsm/pkg/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSession(t *testing.T) {
	req := &CreateSessionRequest{
		KeyID:         1,
		HostChallenge: [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
	raw := req.Encode()
	assert.Equal(t, []byte{0x03, 0x00, 0x0a, 0x00, 0x01, 1, 2, 3, 4, 5, 6, 7, 8}, raw)

	rec, err := DecodeRecord(raw)
	require.NoError(t, err)
	got, err := DecodeCreateSessionRequest(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, req, got)

	resp := &CreateSessionResponse{
		SessionID:      7,
		CardChallenge:  [8]byte{0xa0, 0xa1, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7},
		CardCryptogram: [8]byte{0xc0, 0xc1, 0xc2, 0xc3, 0xc4, 0xc5, 0xc6, 0xc7},
	}
	rec, err = DecodeRecord(resp.Encode())
	require.NoError(t, err)
	assert.Equal(t, command.Opcode(0x83), rec.Type)
	gotResp, err := DecodeCreateSessionResponse(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, resp, gotResp)

	_, err = DecodeCreateSessionResponse(rec.Body[1:])
	assert.ErrorIs(t, err, ErrInvalidLength)
	_, err = DecodeCreateSessionRequest(nil)
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestAuthenticateSession(t *testing.T) {
	req := &AuthenticateSessionRequest{
		SessionID:      3,
		HostCryptogram: [8]byte{1, 1, 1, 1, 1, 1, 1, 1},
		MAC:            [8]byte{2, 2, 2, 2, 2, 2, 2, 2},
	}
	raw := req.Encode()
	assert.Len(t, raw, 3+1+8+8)
	assert.Equal(t, []byte{0x04, 0x00, 0x11, 0x03}, raw[:4])
	assert.Equal(t, raw[:len(raw)-MACSize], req.MACInput())

	rec, err := DecodeRecord(raw)
	require.NoError(t, err)
	got, err := DecodeAuthenticateSessionRequest(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, req, got)

	rec, err = DecodeRecord(EncodeAuthenticateSessionResponse())
	require.NoError(t, err)
	assert.Equal(t, command.OpcodeAuthenticateSession.Response(), rec.Type)
	assert.Empty(t, rec.Body)
}
