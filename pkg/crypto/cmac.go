package crypto

import (
	"crypto/aes"
	"errors"
	"hash"

	"github.com/aead/cmac"
)

// AES-CMAC constants (NIST SP 800-38B).
const (
	// CMACKeySize is the AES-128 key size used for every SCP03 MAC.
	CMACKeySize = 16

	// CMACSize is the full AES-CMAC tag length.
	CMACSize = aes.BlockSize
)

// ErrCMACInvalidKeySize is returned when a CMAC key is not 16 bytes.
var ErrCMACInvalidKeySize = errors.New("cmac: invalid key size, must be 16 bytes")

// NewAESCMAC returns a hash.Hash computing AES-128-CMAC under key.
func NewAESCMAC(key []byte) (hash.Hash, error) {
	if len(key) != CMACKeySize {
		return nil, ErrCMACInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cmac.New(block)
}

// AESCMAC computes the 16-byte AES-128-CMAC of the concatenation of parts.
func AESCMAC(key []byte, parts ...[]byte) ([]byte, error) {
	h, err := NewAESCMAC(key)
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil), nil
}
