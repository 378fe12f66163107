// AES-CBC implementation for the SCP03 secure messaging layer.
// Plaintext is padded with ISO/IEC 9797-1 padding method 2: a single 0x80
// byte followed by zero bytes up to the next block boundary. Padding is
// always added, so a block-aligned plaintext gains a full block.

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

// AES-CBC constants.
const (
	// AESKeySize is the AES-128 key size in bytes.
	AESKeySize = 16

	// AESBlockSize is the AES block size in bytes.
	AESBlockSize = aes.BlockSize

	// paddingMarker starts the ISO/IEC 9797-1 method 2 padding.
	paddingMarker = 0x80
)

// Errors for AES-CBC operations.
var (
	ErrAESCBCInvalidKeySize    = errors.New("aescbc: invalid key size, must be 16 bytes")
	ErrAESCBCInvalidIVSize     = errors.New("aescbc: invalid IV size, must be 16 bytes")
	ErrAESCBCInvalidCiphertext = errors.New("aescbc: ciphertext is not a positive multiple of the block size")
	ErrAESCBCInvalidPadding    = errors.New("aescbc: invalid padding")
)

// AESCBC is an AES-128-CBC cipher bound to one session encryption key.
type AESCBC struct {
	block cipher.Block
}

// NewAESCBC creates a new AES-128-CBC cipher. The key must be 16 bytes.
func NewAESCBC(key []byte) (*AESCBC, error) {
	if len(key) != AESKeySize {
		return nil, ErrAESCBCInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return &AESCBC{block: block}, nil
}

// EncryptBlock encrypts a single 16-byte block in ECB mode. SCP03 uses this
// to turn a counter block into a per-message IV.
func (c *AESCBC) EncryptBlock(in [AESBlockSize]byte) []byte {
	out := make([]byte, AESBlockSize)
	c.block.Encrypt(out, in[:])
	return out
}

// Encrypt pads plaintext and encrypts it under iv.
func (c *AESCBC) Encrypt(iv, plaintext []byte) ([]byte, error) {
	if len(iv) != AESBlockSize {
		return nil, ErrAESCBCInvalidIVSize
	}

	padded := Pad(plaintext)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(ciphertext, padded)
	Zeroize(padded)
	return ciphertext, nil
}

// Decrypt decrypts ciphertext under iv and strips the padding.
func (c *AESCBC) Decrypt(iv, ciphertext []byte) ([]byte, error) {
	if len(iv) != AESBlockSize {
		return nil, ErrAESCBCInvalidIVSize
	}
	if len(ciphertext) == 0 || len(ciphertext)%AESBlockSize != 0 {
		return nil, ErrAESCBCInvalidCiphertext
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := Unpad(plaintext)
	if err != nil {
		Zeroize(plaintext)
		return nil, err
	}
	return unpadded, nil
}

// Pad returns a copy of data with ISO/IEC 9797-1 method 2 padding applied.
func Pad(data []byte) []byte {
	n := len(data) + 1
	if rem := n % AESBlockSize; rem != 0 {
		n += AESBlockSize - rem
	}
	out := make([]byte, n)
	copy(out, data)
	out[len(data)] = paddingMarker
	return out
}

// Unpad removes ISO/IEC 9797-1 method 2 padding. The result aliases data.
func Unpad(data []byte) ([]byte, error) {
	for i := len(data) - 1; i >= 0; i-- {
		switch data[i] {
		case 0x00:
			continue
		case paddingMarker:
			return data[:i], nil
		default:
			return nil, ErrAESCBCInvalidPadding
		}
	}
	return nil, ErrAESCBCInvalidPadding
}

// Zeroize overwrites b with zeros.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
