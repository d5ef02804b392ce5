package codes

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
)

// Generator produces a candidate code id.
type Generator func() (string, error)

// DigitGenerator returns a generator of uniformly random numeric codes of the given length.
func DigitGenerator(length int) Generator {
	return func() (string, error) {
		max := big.NewInt(10)
		out := make([]byte, length)
		for i := range out {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			out[i] = byte('0' + n.Int64())
		}
		return string(out), nil
	}
}

// RandomGenerator returns a generator of URL-safe random strings built from n random bytes.
func RandomGenerator(n int) Generator {
	return func() (string, error) {
		b := make([]byte, n)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		return base64.RawURLEncoding.EncodeToString(b), nil
	}
}
