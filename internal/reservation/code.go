package reservation

import (
	"crypto/rand"
	"math/big"
)

const (
	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// maxCodeAttempts bounds the retry loop; the code space is 36^6.
	maxCodeAttempts = 64
)

// CodeGenerator produces candidate reservation codes.
type CodeGenerator func() (string, error)

// RandomCode draws a code uniformly from [A-Z0-9]{6}.
func RandomCode() (string, error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// ValidCode reports whether code has the issued shape.
func ValidCode(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for _, c := range code {
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
