package session

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialFromPassword(t *testing.T) {
	c := CredentialFromPassword(1, "password")
	assert.Equal(t, uint16(1), c.KeyID)
	assert.Equal(t, "090b47dbed595654901dee1cc655e420", hex.EncodeToString(c.EncKey[:]))
	assert.Equal(t, "592fd483f759e29909a04c4505d2ce0a", hex.EncodeToString(c.MACKey[:]))
	assert.False(t, c.IsZero())

	c.Zeroize()
	assert.True(t, c.IsZero())
}

func TestNewCredential(t *testing.T) {
	enc := make([]byte, KeySize)
	mac := make([]byte, KeySize)
	enc[0], mac[0] = 1, 2

	c, err := NewCredential(3, enc, mac)
	require.NoError(t, err)
	assert.Equal(t, byte(1), c.EncKey[0])
	assert.Equal(t, byte(2), c.MACKey[0])

	_, err = NewCredential(3, enc[:15], mac)
	assert.ErrorIs(t, err, ErrInvalidKey)
}
