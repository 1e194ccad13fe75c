package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrPasswordTooShort = errors.New("password must be at least 12 characters")

const (
	bcryptCost        = 12
	minPasswordLength = 12
)

// HashOperatorPassword hashes the shared operator password. Used by the
// deployment tooling to produce the OPERATOR_PASSWORD_HASH env value.
func HashOperatorPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyOperatorPassword compares a login attempt with the configured hash
func VerifyOperatorPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
