package models

import (
	"time"

	id "citizenportal/pkg/domain"
	dErrors "citizenportal/pkg/domain-errors"
)

// User is the account aggregate.
//
// Invariants:
//   - Email is unique (case-insensitive, stored normalized)
//   - For citizens, VerificationStatus mirrors the status of the most recently
//     created Application after every committed write
//   - RejectionReason and RejectionDate are set only while status is rejected
//   - Users are never hard-deleted by the verification workflow
type User struct {
	ID                 id.UserID
	Email              string
	PasswordHash       string
	Name               string
	Role               Role
	VerificationStatus Status
	RejectionReason    *string
	RejectionDate      *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewCitizen builds a citizen account that has not submitted anything yet.
// The account enters pending through its first application.
func NewCitizen(userID id.UserID, email, passwordHash, name string, now time.Time) (*User, error) {
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user email cannot be empty")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user password hash cannot be empty")
	}
	return &User{
		ID:                 userID,
		Email:              email,
		PasswordHash:       passwordHash,
		Name:               name,
		Role:               RoleCitizen,
		VerificationStatus: StatusNone,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// NewStaff builds a validator or admin account. Staff accounts do not go
// through verification.
func NewStaff(userID id.UserID, email, passwordHash, name string, role Role, now time.Time) (*User, error) {
	if role != RoleValidator && role != RoleAdmin {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "staff role must be validator or admin")
	}
	if email == "" || passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "staff email and password hash are required")
	}
	return &User{
		ID:                 userID,
		Email:              email,
		PasswordHash:       passwordHash,
		Name:               name,
		Role:               role,
		VerificationStatus: StatusNone,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

func (u *User) IsCitizen() bool {
	return u.Role == RoleCitizen
}

// CanReapply checks the reapplication precondition.
func (u *User) CanReapply() error {
	if u.VerificationStatus != StatusRejected {
		return dErrors.New(dErrors.CodeConflict, "can only reapply if previous application was rejected")
	}
	return nil
}

// ApplyStatus sets the verification status. Leaving rejected clears the
// rejection fields.
func (u *User) ApplyStatus(next Status, now time.Time) {
	if next != StatusRejected {
		u.RejectionReason = nil
		u.RejectionDate = nil
	}
	u.VerificationStatus = next
	u.UpdatedAt = now
}

// ApplyRejection records the validator's reason alongside the status.
func (u *User) ApplyRejection(reason string, now time.Time) {
	u.ApplyStatus(StatusRejected, now)
	u.RejectionReason = &reason
	at := now
	u.RejectionDate = &at
}

// Rename updates the display name.
func (u *User) Rename(name string, now time.Time) {
	u.Name = name
	u.UpdatedAt = now
}

// Clone returns a deep copy so callers can mutate without aliasing store
// state.
func (u *User) Clone() *User {
	c := *u
	if u.RejectionReason != nil {
		r := *u.RejectionReason
		c.RejectionReason = &r
	}
	if u.RejectionDate != nil {
		t := *u.RejectionDate
		c.RejectionDate = &t
	}
	return &c
}
