package models

import (
	"time"

	id "citizenportal/pkg/domain"
)

// Credentials is the session artifact pair handed back after a transition
// that changes the caller's verification status.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// RegistrationResult is returned by step 1.
type RegistrationResult struct {
	User            *User
	Application     *Application
	Credentials     *Credentials
	IsReapplication bool
}

// SubmissionResult is returned by step 3 and both reapplication paths.
type SubmissionResult struct {
	User        *User
	Application *Application
	Credentials *Credentials
}

// ReviewItem is an application joined with its owner's email for validator
// views.
type ReviewItem struct {
	Application *Application
	Email       string
}

// DecisionResult echoes the outcome of Decide and Reopen.
type DecisionResult struct {
	ApplicationID id.ApplicationID
	Status        Status
	UserID        id.UserID
}
