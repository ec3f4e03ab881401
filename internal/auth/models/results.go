package models

import (
	vmodels "citizenportal/internal/verification/models"
)

// LoginResult is the authenticated account with a fresh session.
type LoginResult struct {
	User        *vmodels.User
	Credentials *vmodels.Credentials
}
