package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService("test-signing-key", "campusid")

	token, err := svc.GenerateToken("registrar@example.edu", "admin", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "registrar@example.edu", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	token, err := NewService("key-one", "campusid").GenerateToken("sub", "admin", time.Hour)
	require.NoError(t, err)

	_, err = NewService("key-two", "campusid").ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewService("test-signing-key", "campusid")
	token, err := svc.GenerateToken("sub", "admin", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongAlgorithm(t *testing.T) {
	// alg=none tokens must never pass, regardless of claims.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "sub", "role": "admin"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewService("test-signing-key", "campusid").ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, err := NewService("test-signing-key", "campusid").ValidateToken("not.a.token")
	assert.Error(t, err)
}
