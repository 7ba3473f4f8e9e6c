// Package random mints short human readable codes.
package random

import (
	crand "crypto/rand"
	"math/big"
)

// Unambiguous upper case alphabet: no 0/O or 1/I.
const charset = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Code returns a cryptographically random code of length characters.
func Code(length int) (string, error) {
	b := make([]byte, length)
	l := big.NewInt(int64(len(charset)))
	for i := range b {
		num, err := crand.Int(crand.Reader, l)
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}
