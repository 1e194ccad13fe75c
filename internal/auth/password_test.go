package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashOperatorPassword(t *testing.T) {
	hash, err := HashOperatorPassword("correct-horse-battery")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.True(t, VerifyOperatorPassword("correct-horse-battery", hash))
	assert.False(t, VerifyOperatorPassword("wrong-password-guess", hash))
}

func TestHashOperatorPassword_TooShort(t *testing.T) {
	_, err := HashOperatorPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestVerifyOperatorPassword_BadHash(t *testing.T) {
	assert.False(t, VerifyOperatorPassword("correct-horse-battery", "not-a-bcrypt-hash"))
}
