package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestTokenRoundTrip(t *testing.T) {
	handler := NewTokenHandler(testSecret)
	claims := ForUser("8b7f2f44-7c0f-4a38-9a3e-1c2d3e4f5a6b", "nicola", time.Hour)

	token, err := handler.Encode(claims)
	require.NoError(t, err)

	decoded, err := handler.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, claims.Subject, decoded.Subject)
	assert.Equal(t, claims.Username, decoded.Username)
	assert.Equal(t, claims.ExpiresAt.Unix(), decoded.ExpiresAt.Unix())
	assert.Equal(t, claims.IssuedAt.Unix(), decoded.IssuedAt.Unix())
}

func TestTokenWrongKeyRejected(t *testing.T) {
	token, err := NewTokenHandler(testSecret).Encode(ForUser("id", "nicola", time.Hour))
	require.NoError(t, err)

	other := NewTokenHandler([]byte("fedcba9876543210fedcba9876543210"))
	_, err = other.Decode(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	handler := NewTokenHandler(testSecret)
	claims := ForUser("id", "nicola", -time.Hour)

	token, err := handler.Encode(claims)
	require.NoError(t, err)

	_, err = handler.Decode(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestMissingExpIsPermitted(t *testing.T) {
	handler := NewTokenHandler(testSecret)
	token, err := handler.Encode(Claims{
		Username:         "nicola",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "id"},
	})
	require.NoError(t, err)

	decoded, err := handler.Decode(token)
	require.NoError(t, err)
	assert.Nil(t, decoded.ExpiresAt)
	assert.Equal(t, "id", decoded.Subject)
}

func TestDecodeUnverified(t *testing.T) {
	token, err := NewTokenHandler(testSecret).Encode(ForUser("id", "nicola", time.Hour))
	require.NoError(t, err)

	// A handler holding the wrong key can still inspect the claims.
	other := NewTokenHandler([]byte("fedcba9876543210fedcba9876543210"))
	claims, err := other.DecodeUnverified(token)
	require.NoError(t, err)
	assert.Equal(t, "nicola", claims.Username)
}

func TestGarbageTokenIsDecodingFailure(t *testing.T) {
	handler := NewTokenHandler(testSecret)
	_, err := handler.Decode("not.a.token")
	assert.ErrorIs(t, err, ErrDecodingFailed)

	_, err = handler.DecodeUnverified("%%%")
	assert.ErrorIs(t, err, ErrDecodingFailed)
}
