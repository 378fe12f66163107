// Package crypto provides the cryptographic primitives used by the YubiHSM2
// secure channel: AES-CBC with ISO/IEC 9797-1 padding, AES-CMAC, the SCP03
// key derivation function and the HMAC helpers used for key normalization.
package crypto

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
)

// Digest sizes of the hash functions backing the HMAC key algorithms.
const (
	// SHA1LenBytes is the SHA-1 output length in bytes.
	SHA1LenBytes = sha1.Size

	// SHA256LenBytes is the SHA-256 output length in bytes.
	SHA256LenBytes = sha256.Size

	// SHA384LenBytes is the SHA-384 output length in bytes.
	SHA384LenBytes = sha512.Size384

	// SHA512LenBytes is the SHA-512 output length in bytes.
	SHA512LenBytes = sha512.Size
)

// HashFunc constructs a new hash.Hash. It matches the signature expected by
// crypto/hmac and golang.org/x/crypto/pbkdf2.
type HashFunc func() hash.Hash

// Hash computes the digest of message with the given hash function.
func Hash(h HashFunc, message []byte) []byte {
	d := h()
	d.Write(message)
	return d.Sum(nil)
}

// NormalizeHMACKey applies the RFC 2104 key rule: a key longer than the hash
// block size is replaced by its digest. Shorter keys are returned unchanged;
// zero padding up to the block size is left to the HMAC implementation.
//
// The returned slice never aliases key when hashing took place.
func NormalizeHMACKey(h HashFunc, key []byte) []byte {
	if len(key) <= h().BlockSize() {
		return key
	}
	return Hash(h, key)
}
