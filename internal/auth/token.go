// Package auth is the shared credential library: signed bearer tokens and
// password hashing. Both services link it; neither owns it.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token failure modes. Callers branch on these with errors.Is.
var (
	// ErrInvalidToken covers signature mismatches and failed claim checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when exp lies in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrDecodingFailed is returned for tokens that are not structurally JWTs.
	ErrDecodingFailed = errors.New("token decoding failed")
)

// Claims carried by a Drift bearer token. A missing exp is permitted; all
// other registered claims are optional too.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// ForUser builds the standard login claims: sub, exp, iat and username.
func ForUser(userID, username string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
}

// TokenHandler encodes and decodes HMAC-SHA256 signed tokens with a shared
// 256-bit secret.
type TokenHandler struct {
	secret []byte
}

// NewTokenHandler wraps the shared secret.
func NewTokenHandler(secret []byte) *TokenHandler {
	return &TokenHandler{secret: secret}
}

// Encode signs claims into a compact token string.
func (h *TokenHandler) Encode(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Decode validates the signature and exp and returns the claims.
func (h *TokenHandler) Decode(tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return h.secret, nil
	})
	switch {
	case err == nil && token.Valid:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Claims{}, ErrDecodingFailed
	default:
		return Claims{}, ErrInvalidToken
	}
}

// DecodeUnverified parses claims without checking the signature. Debugging
// only; never an authorization decision.
func (h *TokenHandler) DecodeUnverified(tokenString string) (Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return Claims{}, ErrDecodingFailed
	}
	return claims, nil
}
