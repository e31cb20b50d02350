package platform

import (
	"crypto/rand"

	"github.com/google/uuid"
)

const shortHashAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
const shortHashLength = 6

func NewID() string {
	return uuid.New().String()
}

// NewShortHash returns the short identifier embedded in user-facing
// hostnames.
func NewShortHash() string {
	b := make([]byte, shortHashLength)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	for i := range b {
		b[i] = shortHashAlphabet[b[i]%byte(len(shortHashAlphabet))]
	}
	return string(b)
}
