package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACParams(t *testing.T) {
	tests := []struct {
		alg    Algorithm
		digest int
		block  int
	}{
		{AlgorithmHMACSHA1, 20, 64},
		{AlgorithmHMACSHA256, 32, 64},
		{AlgorithmHMACSHA384, 48, 128},
		{AlgorithmHMACSHA512, 64, 128},
	}
	for _, tt := range tests {
		t.Run(tt.alg.String(), func(t *testing.T) {
			p, ok := tt.alg.HMAC()
			require.True(t, ok)
			assert.Equal(t, tt.digest, p.DigestSize)
			assert.Equal(t, tt.block, p.BlockSize)
			h := p.Hash()
			assert.Equal(t, tt.digest, h.Size())
			assert.Equal(t, tt.block, h.BlockSize())
		})
	}
	assert.Len(t, HMACAlgorithms, len(tests))
}

func TestNonHMACAlgorithms(t *testing.T) {
	for _, alg := range []Algorithm{
		AlgorithmRSA2048,
		AlgorithmECP256,
		AlgorithmAES128CCMWrap,
		AlgorithmYubicoAESAuthentication,
		AlgorithmAES128,
		0,
		0xff,
	} {
		assert.False(t, alg.IsHMAC(), alg.String())
	}
}

func TestCapability(t *testing.T) {
	c := CapabilitySignHMAC | CapabilityVerifyHMAC
	assert.True(t, c.Has(CapabilitySignHMAC))
	assert.True(t, c.Has(CapabilitySignHMAC|CapabilityVerifyHMAC))
	assert.False(t, c.Has(CapabilitySignHMAC|CapabilityDeleteHMACKey))
	assert.Equal(t, "sign-hmac:verify-hmac", c.String())
	assert.Equal(t, "none", CapabilityNone.String())
	assert.Equal(t, Capability(1)<<43, CapabilityDeleteHMACKey)
}

func TestOpcodeString(t *testing.T) {
	assert.Equal(t, "SignHMAC", OpcodeSignHMAC.String())
	assert.Equal(t, "SignHMACResponse", OpcodeSignHMAC.Response().String())
	assert.Equal(t, Opcode(0x83), OpcodeCreateSession.Response())
	assert.Equal(t, "Error", OpcodeError.String())
	assert.False(t, OpcodeError.IsResponse())
}
