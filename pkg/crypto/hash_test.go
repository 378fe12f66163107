package crypto

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NIST FIPS 180-4 "abc" examples for each hash backing an HMAC algorithm.
var abcTestVectors = []struct {
	name     string
	hash     HashFunc
	expected string
}{
	{"SHA1", sha1.New, "a9993e364706816aba3e25717850c26c9cd0d89d"},
	{"SHA256", sha256.New, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	{"SHA384", sha512.New384, "cb00753f45a35e8bb5a03d699ac65007272c32ab0eded1631a8b605a43ff5bed8086072ba1e7cc2358baeca134c825a7"},
	{"SHA512", sha512.New, "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f"},
}

func TestHash(t *testing.T) {
	for _, tc := range abcTestVectors {
		t.Run(tc.name, func(t *testing.T) {
			expected, err := hex.DecodeString(tc.expected)
			require.NoError(t, err)
			assert.Equal(t, expected, Hash(tc.hash, []byte("abc")))
		})
	}
}

func TestNormalizeHMACKey(t *testing.T) {
	tests := []struct {
		name       string
		hash       HashFunc
		keyLen     int
		wantHashed bool
	}{
		{"SHA1 short key", sha1.New, 20, false},
		{"SHA1 block size key", sha1.New, 64, false},
		{"SHA1 oversized key", sha1.New, 65, true},
		{"SHA256 oversized key", sha256.New, 65, true},
		{"SHA384 block size key", sha512.New384, 128, false},
		{"SHA384 oversized key", sha512.New384, 129, true},
		{"SHA512 oversized key", sha512.New, 129, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := bytes.Repeat([]byte{0xde}, tt.keyLen)
			got := NormalizeHMACKey(tt.hash, key)

			if !tt.wantHashed {
				assert.Equal(t, key, got)
				return
			}
			assert.Equal(t, Hash(tt.hash, key), got)
			assert.Len(t, got, tt.hash().Size())

			// HMAC treats the normalized key exactly like the original.
			msg := []byte("normalize")
			assert.Equal(t, HMAC(tt.hash, key, msg), HMAC(tt.hash, got, msg))
		})
	}
}
