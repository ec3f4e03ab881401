package refreshtoken

import (
	"context"
	"fmt"
	"sync"
	"time"

	"citizenportal/internal/auth/models"
	id "citizenportal/pkg/domain"
	"citizenportal/pkg/platform/sentinel"
)

// InMemoryRefreshTokenStore stores refresh tokens in memory for tests/dev.
type InMemoryRefreshTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*models.RefreshTokenRecord
}

// New constructs an empty in-memory refresh token store.
func New() *InMemoryRefreshTokenStore {
	return &InMemoryRefreshTokenStore{tokens: make(map[string]*models.RefreshTokenRecord)}
}

func (s *InMemoryRefreshTokenStore) Create(_ context.Context, record *models.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[record.TokenHash]; exists {
		return fmt.Errorf("refresh token already exists: %w", sentinel.ErrConflict)
	}
	s.tokens[record.TokenHash] = record.Clone()
	return nil
}

func (s *InMemoryRefreshTokenStore) Find(_ context.Context, tokenHash string) (*models.RefreshTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.tokens[tokenHash]; ok {
		return record.Clone(), nil
	}
	return nil, errNotFound()
}

// Consume marks the token used if it is still valid. The record is returned
// even when consumption is refused so replay can be detected.
func (s *InMemoryRefreshTokenStore) Consume(_ context.Context, tokenHash string, now time.Time) (*models.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tokens[tokenHash]
	if !ok {
		return nil, errNotFound()
	}
	if err := consumeError(record, now); err != nil {
		return record.Clone(), err
	}
	record.MarkUsed(now)
	return record.Clone(), nil
}

// RevokeSession revokes every token in the rotation chain of sessionID and
// returns how many were newly revoked.
func (s *InMemoryRefreshTokenStore) RevokeSession(_ context.Context, sessionID id.SessionID, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revoked := 0
	for _, record := range s.tokens {
		if record.SessionID != sessionID || record.RevokedAt != nil {
			continue
		}
		record.Revoke(now)
		revoked++
	}
	return revoked, nil
}

// DeleteExpired removes all refresh tokens that have expired as of now.
func (s *InMemoryRefreshTokenStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, record := range s.tokens {
		if !now.Before(record.ExpiresAt) {
			delete(s.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}
