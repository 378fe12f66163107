package crypto

import (
	"crypto/rand"
	"io"
)

// Reader is the entropy source for challenges and generated key material.
// Tests may replace it with a deterministic reader.
var Reader io.Reader = rand.Reader

// RandomBytes returns n bytes read from Reader.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}
