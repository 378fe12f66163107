package command

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"

	"github.com/backkem/yubihsm/pkg/crypto"
)

// Algorithm is a cryptographic algorithm identifier (YubiHSM2 numbering).
// Only the HMAC algorithms are usable for HMAC key objects; the others are
// listed so that they can be recognized and rejected.
type Algorithm uint8

// Algorithm identifiers.
const (
	AlgorithmRSA2048                 Algorithm = 9
	AlgorithmECP256                  Algorithm = 12
	AlgorithmHMACSHA1                Algorithm = 19
	AlgorithmHMACSHA256              Algorithm = 20
	AlgorithmHMACSHA384              Algorithm = 21
	AlgorithmHMACSHA512              Algorithm = 22
	AlgorithmAES128CCMWrap           Algorithm = 29
	AlgorithmYubicoAESAuthentication Algorithm = 38
	AlgorithmAES128                  Algorithm = 50
)

// HMACAlgorithms lists every algorithm accepted for HMAC key objects.
var HMACAlgorithms = []Algorithm{
	AlgorithmHMACSHA1,
	AlgorithmHMACSHA256,
	AlgorithmHMACSHA384,
	AlgorithmHMACSHA512,
}

// HMACParams describes the hash function behind an HMAC algorithm.
type HMACParams struct {
	// Hash constructs the underlying hash.
	Hash crypto.HashFunc

	// DigestSize is the MAC length in bytes.
	DigestSize int

	// BlockSize is the hash block size; longer keys are hashed first.
	BlockSize int
}

// HMAC returns the parameters of an HMAC algorithm. ok is false for every
// algorithm that cannot back an HMAC key.
func (a Algorithm) HMAC() (params HMACParams, ok bool) {
	switch a {
	case AlgorithmHMACSHA1:
		return HMACParams{Hash: sha1.New, DigestSize: crypto.SHA1LenBytes, BlockSize: sha1.BlockSize}, true
	case AlgorithmHMACSHA256:
		return HMACParams{Hash: sha256.New, DigestSize: crypto.SHA256LenBytes, BlockSize: sha256.BlockSize}, true
	case AlgorithmHMACSHA384:
		return HMACParams{Hash: sha512.New384, DigestSize: crypto.SHA384LenBytes, BlockSize: sha512.BlockSize}, true
	case AlgorithmHMACSHA512:
		return HMACParams{Hash: sha512.New, DigestSize: crypto.SHA512LenBytes, BlockSize: sha512.BlockSize}, true
	default:
		return HMACParams{}, false
	}
}

// IsHMAC reports whether a is one of the HMAC algorithms.
func (a Algorithm) IsHMAC() bool {
	_, ok := a.HMAC()
	return ok
}

// String returns the algorithm name.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmRSA2048:
		return "rsa2048"
	case AlgorithmECP256:
		return "ecp256"
	case AlgorithmHMACSHA1:
		return "hmac-sha1"
	case AlgorithmHMACSHA256:
		return "hmac-sha256"
	case AlgorithmHMACSHA384:
		return "hmac-sha384"
	case AlgorithmHMACSHA512:
		return "hmac-sha512"
	case AlgorithmAES128CCMWrap:
		return "aes128-ccm-wrap"
	case AlgorithmYubicoAESAuthentication:
		return "aes128-yubico-authentication"
	case AlgorithmAES128:
		return "aes128"
	default:
		return "unknown"
	}
}
