// Package refreshtoken persists refresh token rotation chains.
//
// Error Contract:
// All store methods follow this error pattern:
//   - Return sentinel.ErrNotFound when no record has the given hash
//   - Consume returns sentinel.ErrAlreadyUsed, ErrExpired or ErrRevoked
//     together with the record so callers can detect replay
//   - Return wrapped errors with context for infrastructure failures
package refreshtoken

import (
	"fmt"
	"time"

	"citizenportal/internal/auth/models"
	"citizenportal/pkg/platform/sentinel"
)

// consumeError maps the record's refusal reason onto a store sentinel.
func consumeError(record *models.RefreshTokenRecord, now time.Time) error {
	err := record.ValidateForConsume(now)
	if err == nil {
		return nil
	}
	switch {
	case record.RevokedAt != nil:
		return fmt.Errorf("%s: %w", err.Error(), sentinel.ErrRevoked)
	case record.Used:
		return fmt.Errorf("%s: %w", err.Error(), sentinel.ErrAlreadyUsed)
	default:
		return fmt.Errorf("%s: %w", err.Error(), sentinel.ErrExpired)
	}
}

func errNotFound() error {
	return fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
}
