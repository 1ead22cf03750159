package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/hex"
	"math/big"
)

// GenerateToken returns n random bytes, hex encoded.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := randomBytes(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns the SHA-256 digest of an opaque token, hex encoded.
// Only digests are stored; the raw token travels by email.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomBytes(b []byte) (int, error) {
	return rand.Read(b)
}

func randomSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := randomBytes(b); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b), nil
}

func randomUint64() (uint64, error) {
	n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(1<<63))
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// randomDigits returns a zero-padded decimal string of length n.
func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + d.Int64())
	}
	return string(digits), nil
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
