package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor for stored password hashes.
const DefaultBcryptCost = 12

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// HashPassword hashes a password using bcrypt at the given cost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches a bcrypt hash.
func VerifyPassword(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
