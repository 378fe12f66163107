package crypto

import (
	"crypto/hmac"
)

// HMAC computes the HMAC of message under key with the given hash function.
// The output length is the digest size of h.
func HMAC(h HashFunc, key, message []byte) []byte {
	m := hmac.New(h, key)
	m.Write(message)
	return m.Sum(nil)
}

// HMACEqual compares two MACs for equality in constant time.
// This should be used instead of bytes.Equal to prevent timing attacks.
func HMACEqual(mac1, mac2 []byte) bool {
	return hmac.Equal(mac1, mac2)
}
