package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

// SCP03 derivation constants (GlobalPlatform Amendment D, Table 4-1).
const (
	// DerivationCardCryptogram derives the card (device) cryptogram.
	DerivationCardCryptogram byte = 0x00

	// DerivationHostCryptogram derives the host cryptogram.
	DerivationHostCryptogram byte = 0x01

	// DerivationSENC derives the session encryption key.
	DerivationSENC byte = 0x04

	// DerivationSMAC derives the session command MAC key.
	DerivationSMAC byte = 0x06

	// DerivationSRMAC derives the session response MAC key.
	DerivationSRMAC byte = 0x07
)

// Credential derivation parameters used by YubiHSM2 password authentication.
const (
	// PasswordSalt is the fixed PBKDF2 salt for password-derived credentials.
	PasswordSalt = "Yubico"

	// PasswordIterations is the PBKDF2 iteration count.
	PasswordIterations = 10000

	// PasswordKeyLen is the derived length: an encryption and a MAC key.
	PasswordKeyLen = 2 * AESKeySize
)

// ErrKDFInvalidLength is returned when the requested output is not a
// positive multiple of 8 bits or exceeds one CMAC block.
var ErrKDFInvalidLength = errors.New("kdf: invalid output length")

// DeriveSCP03 implements the SCP03 KDF: NIST SP 800-108 in counter mode with
// AES-CMAC as PRF and a single iteration.
//
// The PRF input is:
//
//	11 zero bytes || constant || 0x00 || L (2 bytes, bits) || 0x01 || context
//
// Returns the first bits/8 bytes of the CMAC output.
func DeriveSCP03(key []byte, constant byte, context []byte, bits int) ([]byte, error) {
	if bits <= 0 || bits%8 != 0 || bits > 8*CMACSize {
		return nil, ErrKDFInvalidLength
	}

	var label [16]byte
	label[11] = constant
	label[12] = 0x00
	binary.BigEndian.PutUint16(label[13:15], uint16(bits))
	label[15] = 0x01

	out, err := AESCMAC(key, label[:], context)
	if err != nil {
		return nil, err
	}
	return out[:bits/8], nil
}

// PBKDF2SHA256 derives a key from a password using PBKDF2-HMAC-SHA256.
func PBKDF2SHA256(password, salt []byte, iterations, keyLen int) []byte {
	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New)
}

// DerivePasswordKeys derives the long-term encryption and MAC keys of a
// password authentication key.
func DerivePasswordKeys(password string) (encKey, macKey []byte) {
	k := PBKDF2SHA256([]byte(password), []byte(PasswordSalt), PasswordIterations, PasswordKeyLen)
	return k[:AESKeySize], k[AESKeySize:]
}
