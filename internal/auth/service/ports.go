package service

import (
	"context"
	"time"

	"citizenportal/internal/audit"
	"citizenportal/internal/auth/models"
	jwttoken "citizenportal/internal/jwt_token"
	vmodels "citizenportal/internal/verification/models"
	id "citizenportal/pkg/domain"
)

// UserStore is the read side of the account table.
type UserStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*vmodels.User, error)
	FindByEmail(ctx context.Context, email string) (*vmodels.User, error)
}

type RefreshTokenStore interface {
	Create(ctx context.Context, record *models.RefreshTokenRecord) error
	Find(ctx context.Context, tokenHash string) (*models.RefreshTokenRecord, error)
	Consume(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshTokenRecord, error)
	RevokeSession(ctx context.Context, sessionID id.SessionID, now time.Time) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type TokenGenerator interface {
	IssueAccessToken(subject jwttoken.Subject, now time.Time, ttl time.Duration) (string, string, error)
}

type PasswordVerifier interface {
	Verify(password, hash string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
