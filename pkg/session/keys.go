package session

import (
	"fmt"

	"github.com/backkem/yubihsm/pkg/crypto"
	"github.com/backkem/yubihsm/pkg/message"
)

// Derivation sizes.
const (
	// ContextSize is host challenge || card challenge.
	ContextSize = 2 * message.ChallengeSize

	keyBits        = 8 * KeySize
	cryptogramBits = 8 * message.CryptogramSize
)

// Keys holds the three session keys derived during the handshake.
type Keys struct {
	ENC  []byte // S-ENC: encrypts both directions
	MAC  []byte // S-MAC: authenticates commands
	RMAC []byte // S-RMAC: authenticates responses
}

// Context concatenates the host and card challenges.
func Context(host, card [message.ChallengeSize]byte) []byte {
	ctx := make([]byte, 0, ContextSize)
	ctx = append(ctx, host[:]...)
	return append(ctx, card[:]...)
}

// DeriveKeys derives S-ENC from the credential's encryption key and S-MAC
// and S-RMAC from its MAC key.
func DeriveKeys(cred *Credential, context []byte) (*Keys, error) {
	if len(context) != ContextSize {
		return nil, fmt.Errorf("%w: context %d bytes", ErrInvalidChallenge, len(context))
	}

	enc, err := crypto.DeriveSCP03(cred.EncKey[:], crypto.DerivationSENC, context, keyBits)
	if err != nil {
		return nil, err
	}
	mac, err := crypto.DeriveSCP03(cred.MACKey[:], crypto.DerivationSMAC, context, keyBits)
	if err != nil {
		crypto.Zeroize(enc)
		return nil, err
	}
	rmac, err := crypto.DeriveSCP03(cred.MACKey[:], crypto.DerivationSRMAC, context, keyBits)
	if err != nil {
		crypto.Zeroize(enc)
		crypto.Zeroize(mac)
		return nil, err
	}
	return &Keys{ENC: enc, MAC: mac, RMAC: rmac}, nil
}

// CardCryptogram computes the device's proof of key possession.
func (k *Keys) CardCryptogram(context []byte) ([message.CryptogramSize]byte, error) {
	return k.cryptogram(crypto.DerivationCardCryptogram, context)
}

// HostCryptogram computes the host's proof of key possession.
func (k *Keys) HostCryptogram(context []byte) ([message.CryptogramSize]byte, error) {
	return k.cryptogram(crypto.DerivationHostCryptogram, context)
}

func (k *Keys) cryptogram(constant byte, context []byte) ([message.CryptogramSize]byte, error) {
	var out [message.CryptogramSize]byte
	if len(context) != ContextSize {
		return out, fmt.Errorf("%w: context %d bytes", ErrInvalidChallenge, len(context))
	}
	c, err := crypto.DeriveSCP03(k.MAC, constant, context, cryptogramBits)
	if err != nil {
		return out, err
	}
	copy(out[:], c)
	return out, nil
}

// authenticateMAC computes the MAC of an AuthenticateSession record: CMAC
// under S-MAC over a zero chaining block followed by the record without its
// MAC field.
func (k *Keys) authenticateMAC(req *message.AuthenticateSessionRequest) ([message.MACSize]byte, error) {
	var out [message.MACSize]byte
	var chain [crypto.CMACSize]byte
	mac, err := crypto.AESCMAC(k.MAC, chain[:], req.MACInput())
	if err != nil {
		return out, err
	}
	copy(out[:], mac)
	return out, nil
}

// Zeroize clears all three keys.
func (k *Keys) Zeroize() {
	crypto.Zeroize(k.ENC)
	crypto.Zeroize(k.MAC)
	crypto.Zeroize(k.RMAC)
}
