package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "citizenportal/pkg/domain"
	dErrors "citizenportal/pkg/domain-errors"
)

func TestRefreshTokenLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec, err := NewRefreshTokenRecord("hash", id.NewSessionID(), id.NewUserID(), "Mozilla/5.0", "203.0.113.7", now, time.Hour)
	require.NoError(t, err)
	require.NoError(t, rec.ValidateForConsume(now.Add(59*time.Minute)))

	t.Run("expired", func(t *testing.T) {
		err := rec.ValidateForConsume(now.Add(time.Hour))
		assert.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "refresh token expired"))
	})

	t.Run("used", func(t *testing.T) {
		used := rec.Clone()
		used.MarkUsed(now)
		assert.ErrorIs(t, used.ValidateForConsume(now), dErrors.New(dErrors.CodeUnauthorized, "refresh token already used"))
		assert.False(t, rec.Used, "clone must not alias")
	})

	t.Run("revoked wins over used", func(t *testing.T) {
		revoked := rec.Clone()
		revoked.MarkUsed(now)
		revoked.Revoke(now)
		first := *revoked.RevokedAt
		revoked.Revoke(now.Add(time.Minute))
		assert.Equal(t, first, *revoked.RevokedAt)
		assert.ErrorIs(t, revoked.ValidateForConsume(now), dErrors.New(dErrors.CodeUnauthorized, "refresh token revoked"))
	})
}

func TestNewRefreshTokenRecordInvariants(t *testing.T) {
	now := time.Now()
	_, err := NewRefreshTokenRecord("", id.NewSessionID(), id.NewUserID(), "", "", now, time.Hour)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	_, err = NewRefreshTokenRecord("h", id.SessionID{}, id.NewUserID(), "", "", now, time.Hour)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	_, err = NewRefreshTokenRecord("h", id.NewSessionID(), id.NewUserID(), "", "", now, 0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestLoginRequestValidate(t *testing.T) {
	req := &LoginRequest{Email: "  Maria@Example.COM ", Password: "x"}
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, "maria@example.com", req.Email)

	err := (&LoginRequest{}).Validate()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Len(t, dErrors.FieldsOf(err), 2)
}
