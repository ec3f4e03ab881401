package models

import (
	"strings"

	"citizenportal/pkg/email"
	"citizenportal/pkg/platform/validation"
)

// LoginRequest authenticates an existing account by email and password.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Normalize() {
	r.Email = email.Normalize(r.Email)
}

func (r *LoginRequest) Validate() error {
	return validation.Struct(r)
}

// RefreshRequest carries a refresh token in the body for clients that do
// not use cookies.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r *RefreshRequest) Normalize() {
	r.RefreshToken = strings.TrimSpace(r.RefreshToken)
}
