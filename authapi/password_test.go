package authapi_test

import (
	"testing"

	"github.com/goliatone/go-session/authapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	hash, err := authapi.HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.NoError(t, authapi.ComparePasswordAndHash("s3cret", hash))
	assert.ErrorIs(t, authapi.ComparePasswordAndHash("wrong", hash), authapi.ErrInvalidCredentials)
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := authapi.HashPassword("", bcrypt.MinCost)
	assert.ErrorIs(t, err, authapi.ErrEmptyPassword)
}

func TestComparePasswordAndHash_InvalidHash(t *testing.T) {
	err := authapi.ComparePasswordAndHash("s3cret", "not-a-bcrypt-hash")
	require.Error(t, err)
	assert.NotErrorIs(t, err, authapi.ErrInvalidCredentials)
}
