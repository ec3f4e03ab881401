package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"citizenportal/internal/verification/models"
	id "citizenportal/pkg/domain"
	"citizenportal/pkg/platform/sentinel"
)

// StaffAccount describes a validator or admin provisioned at startup.
type StaffAccount struct {
	Email        string
	PasswordHash string
	Name         string
	Role         models.Role
}

type staffUserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// SeedStaff creates the account unless the email is already registered.
// It returns the existing or newly created user.
func SeedStaff(ctx context.Context, users staffUserStore, account StaffAccount) (*models.User, error) {
	existing, err := users.FindByEmail(ctx, account.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("lookup staff account: %w", err)
	}

	user, err := models.NewStaff(id.NewUserID(), account.Email, account.PasswordHash, account.Name, account.Role, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create staff account: %w", err)
	}
	return user, nil
}
