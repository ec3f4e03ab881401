package service

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"citizenportal/internal/audit"
	"citizenportal/internal/verification/models"
)

// CredentialIssuer mints a fresh session for a user whose claims changed.
type CredentialIssuer interface {
	Issue(ctx context.Context, user *models.User) (*models.Credentials, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// PasswordHasher turns a plaintext password into a stored hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
}
