package game

import (
	"crypto/rand"
	"math/big"
)

// Join codes are numeric so they can be typed quickly on any device.
const codeAlphabet = "0123456789"

// DefaultCodeLength is the standard join code length.
const DefaultCodeLength = 6

// GenerateCode returns a random numeric join code of the given length.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
