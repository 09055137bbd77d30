package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashAndVerify(t *testing.T) {
	hasher := NewPasswordHasher()

	phc, err := hasher.Hash("hunter2-but-longer")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(phc, "$argon2id$"))

	ok, err := hasher.Verify("hunter2-but-longer", phc)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("wrong-password", phc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordSaltIsRandom(t *testing.T) {
	hasher := NewPasswordHasher()

	first, err := hasher.Hash("same-password")
	require.NoError(t, err)
	second, err := hasher.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	hasher := NewPasswordHasher()

	for _, phc := range []string{
		"",
		"plainly-not-a-hash",
		"$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA",
	} {
		_, err := hasher.Verify("password", phc)
		assert.ErrorIs(t, err, ErrInvalidHash, "phc=%q", phc)
	}
}
