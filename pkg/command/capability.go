package command

import "strings"

// Capability is a bitmask of operations permitted on an object.
type Capability uint64

// Capability flags (YubiHSM2 numbering).
const (
	CapabilityGetPseudoRandom Capability = 1 << 19
	CapabilityPutHMACKey      Capability = 1 << 20
	CapabilityGenerateHMACKey Capability = 1 << 21
	CapabilitySignHMAC        Capability = 1 << 22
	CapabilityVerifyHMAC      Capability = 1 << 23
	CapabilityDeleteHMACKey   Capability = 1 << 43
)

// CapabilityNone grants nothing.
const CapabilityNone Capability = 0

// CapabilityAll grants every operation.
const CapabilityAll Capability = 0xffffffffffffffff

var capabilityNames = []struct {
	c    Capability
	name string
}{
	{CapabilityGetPseudoRandom, "get-pseudo-random"},
	{CapabilityPutHMACKey, "put-hmac-key"},
	{CapabilityGenerateHMACKey, "generate-hmac-key"},
	{CapabilitySignHMAC, "sign-hmac"},
	{CapabilityVerifyHMAC, "verify-hmac"},
	{CapabilityDeleteHMACKey, "delete-hmac-key"},
}

// Has reports whether every flag in want is set.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// String returns the named flags joined by ':'.
func (c Capability) String() string {
	if c == CapabilityNone {
		return "none"
	}
	var names []string
	for _, n := range capabilityNames {
		if c.Has(n.c) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "other"
	}
	return strings.Join(names, ":")
}
