package session

import (
	"github.com/backkem/yubihsm/pkg/crypto"
)

// KeySize is the size of long-term and session keys (AES-128).
const KeySize = crypto.AESKeySize

// DefaultAuthKeyID is the factory authentication key of a YubiHSM2.
const DefaultAuthKeyID uint16 = 1

// DefaultPassword is the factory password of DefaultAuthKeyID.
const DefaultPassword = "password"

// Credential is a long-term authentication key: the object id of the
// authentication key on the device and its encryption and MAC halves.
type Credential struct {
	KeyID  uint16
	EncKey [KeySize]byte
	MACKey [KeySize]byte
}

// NewCredential builds a credential from raw key halves.
func NewCredential(keyID uint16, encKey, macKey []byte) (Credential, error) {
	var c Credential
	if len(encKey) != KeySize || len(macKey) != KeySize {
		return c, ErrInvalidKey
	}
	c.KeyID = keyID
	copy(c.EncKey[:], encKey)
	copy(c.MACKey[:], macKey)
	return c, nil
}

// CredentialFromPassword derives a credential with PBKDF2-HMAC-SHA256 over
// the password, as YubiHSM2 password authentication keys are created.
func CredentialFromPassword(keyID uint16, password string) Credential {
	enc, mac := crypto.DerivePasswordKeys(password)
	c := Credential{KeyID: keyID}
	copy(c.EncKey[:], enc)
	copy(c.MACKey[:], mac)
	crypto.Zeroize(enc)
	crypto.Zeroize(mac)
	return c
}

// IsZero reports whether no key material is set.
func (c *Credential) IsZero() bool {
	return c.EncKey == [KeySize]byte{} && c.MACKey == [KeySize]byte{}
}

// Zeroize clears the key halves.
func (c *Credential) Zeroize() {
	crypto.Zeroize(c.EncKey[:])
	crypto.Zeroize(c.MACKey[:])
}
