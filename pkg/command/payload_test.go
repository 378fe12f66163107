package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLabel(t *testing.T) {
	b, err := EncodeLabel("signing key")
	require.NoError(t, err)
	assert.Len(t, b, LabelSize)
	assert.Equal(t, "signing key", DecodeLabel(b))

	_, err = EncodeLabel(strings.Repeat("x", LabelSize))
	assert.NoError(t, err)

	_, err = EncodeLabel(strings.Repeat("x", LabelSize+1))
	assert.ErrorIs(t, err, ErrLabelTooLong)
}

func TestKeyPayload(t *testing.T) {
	key := []byte{1, 2, 3, 4}
	p, err := PutKeyPayload("k", 0x0003, key)
	require.NoError(t, err)
	assert.Len(t, p, LabelSize+DomainsSize+len(key))

	label, domains, gotKey, err := SplitKeyPayload(p)
	require.NoError(t, err)
	assert.Equal(t, "k", label)
	assert.Equal(t, uint16(3), domains)
	assert.Equal(t, key, gotKey)

	p, err = GenerateKeyPayload("gen", 0xffff)
	require.NoError(t, err)
	label, domains, gotKey, err = SplitKeyPayload(p)
	require.NoError(t, err)
	assert.Equal(t, "gen", label)
	assert.Equal(t, uint16(0xffff), domains)
	assert.Empty(t, gotKey)

	_, _, _, err = SplitKeyPayload(make([]byte, LabelSize))
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestObjectInfo(t *testing.T) {
	info := &ObjectInfo{
		Capabilities: CapabilitySignHMAC,
		ID:           0x1234,
		Length:       32,
		Domains:      1,
		Type:         TypeHMACKey,
		Algorithm:    AlgorithmHMACSHA256,
		Sequence:     0,
		Origin:       OriginGenerated,
		Label:        "info",
	}
	raw := info.Encode()
	assert.Len(t, raw, ObjectInfoSize)

	got, err := DecodeObjectInfo(raw)
	require.NoError(t, err)
	assert.Equal(t, info, got)

	_, err = DecodeObjectInfo(raw[1:])
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestSmallPayloads(t *testing.T) {
	id, err := DecodeObjectID(EncodeObjectID(0xbeef))
	require.NoError(t, err)
	assert.Equal(t, uint16(0xbeef), id)

	_, err = DecodeObjectID([]byte{1})
	assert.ErrorIs(t, err, ErrMalformedResponse)

	ok, err := DecodeVerifyResult(EncodeVerifyResult(true))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = DecodeVerifyResult(EncodeVerifyResult(false))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = DecodeVerifyResult([]byte{2})
	assert.ErrorIs(t, err, ErrMalformedResponse)

	assert.Equal(t, []byte{9, 8, 7}, VerifyPayload([]byte{9}, []byte{8, 7}))
	assert.Equal(t, []byte{0x00, 0x20}, RandomLengthPayload(32))
}
