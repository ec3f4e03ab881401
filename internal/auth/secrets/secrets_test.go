package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	dErrors "citizenportal/pkg/domain-errors"
)

func TestNewRefreshToken(t *testing.T) {
	a, err := NewRefreshToken()
	require.NoError(t, err)
	b, err := NewRefreshToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, RefreshTokenPrefix))
	assert.NotEqual(t, a, b)
	assert.Len(t, strings.TrimPrefix(a, RefreshTokenPrefix), 43)
}

func TestTokenHashIsStable(t *testing.T) {
	assert.Equal(t, TokenHash("ref_abc"), TokenHash("ref_abc"))
	assert.NotEqual(t, TokenHash("ref_abc"), TokenHash("ref_abd"))
	assert.Len(t, TokenHash("ref_abc"), 64)
}

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	require.NoError(t, h.Verify("correct horse", hash))

	err = h.Verify("battery staple", hash)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = h.Hash("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = h.Hash(strings.Repeat("x", 73))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
