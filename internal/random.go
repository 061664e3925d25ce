package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// ChallengeAlphabet omits 0, O, 1 and I so rendered codes stay legible.
const ChallengeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const digitAlphabet = "0123456789"

// NewDigits returns a crypto-random numeric code of the given length.
func NewDigits(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid code digits")
	}
	return NewCode(digitAlphabet, digits)
}

// NewCode draws length characters uniformly from alphabet.
func NewCode(alphabet string, length int) (string, error) {
	if length <= 0 || alphabet == "" {
		return "", errors.New("invalid code shape")
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

// NewIntn returns a crypto-random integer in [0, n).
func NewIntn(n int64) (int64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}
