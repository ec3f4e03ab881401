package models

import (
	"time"

	id "citizenportal/pkg/domain"
	dErrors "citizenportal/pkg/domain-errors"
)

// RefreshTokenRecord is one link in a refresh session's rotation chain.
// Every rotation inserts a new record with the same SessionID and marks the
// previous one used. The token itself is never stored, only its hash.
type RefreshTokenRecord struct {
	TokenHash string
	SessionID id.SessionID
	UserID    id.UserID
	UserAgent string
	IP        string
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// NewRefreshTokenRecord builds an unused record valid for ttl from now.
func NewRefreshTokenRecord(tokenHash string, sessionID id.SessionID, userID id.UserID, userAgent, ip string, now time.Time, ttl time.Duration) (*RefreshTokenRecord, error) {
	if tokenHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "refresh token hash cannot be empty")
	}
	if sessionID.IsNil() || userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "refresh token must belong to a session and a user")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "refresh token ttl must be positive")
	}
	return &RefreshTokenRecord{
		TokenHash: tokenHash,
		SessionID: sessionID,
		UserID:    userID,
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

// ValidateForConsume reports why the record cannot be rotated, if at all.
// Revocation is checked first so a revoked family never looks like a replay.
func (r *RefreshTokenRecord) ValidateForConsume(now time.Time) error {
	if r.RevokedAt != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "refresh token revoked")
	}
	if r.Used {
		return dErrors.New(dErrors.CodeUnauthorized, "refresh token already used")
	}
	if !now.Before(r.ExpiresAt) {
		return dErrors.New(dErrors.CodeUnauthorized, "refresh token expired")
	}
	return nil
}

// MarkUsed consumes the record.
func (r *RefreshTokenRecord) MarkUsed(now time.Time) {
	at := now
	r.Used = true
	r.UsedAt = &at
}

// Revoke ends the record. Already revoked records keep their first stamp.
func (r *RefreshTokenRecord) Revoke(now time.Time) {
	if r.RevokedAt != nil {
		return
	}
	at := now
	r.RevokedAt = &at
}

// Clone returns a deep copy.
func (r *RefreshTokenRecord) Clone() *RefreshTokenRecord {
	c := *r
	if r.UsedAt != nil {
		t := *r.UsedAt
		c.UsedAt = &t
	}
	if r.RevokedAt != nil {
		t := *r.RevokedAt
		c.RevokedAt = &t
	}
	return &c
}
