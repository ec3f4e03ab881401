package models

import (
	"encoding/json"
	"time"

	id "citizenportal/pkg/domain"
	pstrings "citizenportal/pkg/platform/strings"
)

// PersonalDetails are the identity facts captured at step 1.
type PersonalDetails struct {
	FirstName   string
	MiddleName  string
	LastName    string
	Address     string
	Phone       string
	DateOfBirth string
}

// FullName composes the display name from the non-empty parts.
func (d PersonalDetails) FullName() string {
	return pstrings.JoinNonEmpty(d.FirstName, d.MiddleName, d.LastName)
}

// Application is one submission of identity evidence and its review status.
//
// Invariants:
//   - ID and CreatedAt never change after insert
//   - The current application of a user is the one with the latest CreatedAt
//   - Superseded applications are read-only history
//   - SubmittedAt moves only when the status enters pending from another state
//   - AIAnalysis is opaque; it is stored and returned without interpretation
type Application struct {
	ID          id.ApplicationID
	UserID      id.UserID
	FirstName   string
	MiddleName  string
	LastName    string
	FullName    string
	Address     string
	Phone       string
	DateOfBirth string
	IDCardFront string
	IDCardBack  string
	SelfieImage string
	AIAnalysis  json.RawMessage
	Status      Status
	ReviewedBy  *id.UserID
	ReviewedAt  *time.Time
	ReviewNotes string
	SubmittedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewApplication builds a pending application from step 1 details. The ID is
// assigned by the store on insert.
func NewApplication(userID id.UserID, details PersonalDetails, now time.Time) *Application {
	return &Application{
		UserID:      userID,
		FirstName:   details.FirstName,
		MiddleName:  details.MiddleName,
		LastName:    details.LastName,
		FullName:    details.FullName(),
		Address:     details.Address,
		Phone:       details.Phone,
		DateOfBirth: details.DateOfBirth,
		Status:      StatusPending,
		SubmittedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Details returns the personal details currently on the application.
func (a *Application) Details() PersonalDetails {
	return PersonalDetails{
		FirstName:   a.FirstName,
		MiddleName:  a.MiddleName,
		LastName:    a.LastName,
		Address:     a.Address,
		Phone:       a.Phone,
		DateOfBirth: a.DateOfBirth,
	}
}

// ApplyDocuments stores the ID card images from step 2.
func (a *Application) ApplyDocuments(front, back string, now time.Time) {
	a.IDCardFront = front
	a.IDCardBack = back
	a.UpdatedAt = now
}

// ApplyBiometrics stores the selfie and the opaque analysis blob from step 3.
// A nil analysis clears any previous blob.
func (a *Application) ApplyBiometrics(selfie string, analysis json.RawMessage, now time.Time) {
	a.SelfieImage = selfie
	a.AIAnalysis = analysis
	a.UpdatedAt = now
}

// ApplyStatus sets the review status.
func (a *Application) ApplyStatus(next Status, now time.Time) {
	if next == StatusPending && a.Status != StatusPending {
		a.SubmittedAt = now
	}
	a.Status = next
	a.UpdatedAt = now
}

// ApplyReview records who decided and when.
func (a *Application) ApplyReview(reviewer id.UserID, notes string, now time.Time) {
	r := reviewer
	at := now
	a.ReviewedBy = &r
	a.ReviewedAt = &at
	a.ReviewNotes = notes
	a.UpdatedAt = now
}

// ApplicationChanges is a partial edit submitted with a reapplication. Nil
// or blank fields keep the stored value.
type ApplicationChanges struct {
	FirstName   *string
	MiddleName  *string
	LastName    *string
	Address     *string
	Phone       *string
	DateOfBirth *string
	IDCardFront *string
	IDCardBack  *string
	SelfieImage *string
}

// ApplyChanges merges a partial edit onto the application in place and
// recomputes the full name from the merged parts.
func (a *Application) ApplyChanges(c ApplicationChanges, now time.Time) {
	a.FirstName = pstrings.Coalesce(c.FirstName, a.FirstName)
	a.MiddleName = pstrings.Override(c.MiddleName, a.MiddleName)
	a.LastName = pstrings.Coalesce(c.LastName, a.LastName)
	a.FullName = a.Details().FullName()
	a.Address = pstrings.Coalesce(c.Address, a.Address)
	a.Phone = pstrings.Coalesce(c.Phone, a.Phone)
	a.DateOfBirth = pstrings.Coalesce(c.DateOfBirth, a.DateOfBirth)

	// Images only overwrite when a new payload was actually sent.
	if c.IDCardFront != nil && *c.IDCardFront != "" {
		a.IDCardFront = *c.IDCardFront
	}
	if c.IDCardBack != nil && *c.IDCardBack != "" {
		a.IDCardBack = *c.IDCardBack
	}
	if c.SelfieImage != nil && *c.SelfieImage != "" {
		a.SelfieImage = *c.SelfieImage
	}
	a.UpdatedAt = now
}

// Clone returns a deep copy so callers can mutate without aliasing store
// state.
func (a *Application) Clone() *Application {
	c := *a
	if a.AIAnalysis != nil {
		c.AIAnalysis = append(json.RawMessage(nil), a.AIAnalysis...)
	}
	if a.ReviewedBy != nil {
		r := *a.ReviewedBy
		c.ReviewedBy = &r
	}
	if a.ReviewedAt != nil {
		t := *a.ReviewedAt
		c.ReviewedAt = &t
	}
	return &c
}
