package models

import (
	"bytes"
	"encoding/json"
	"strings"

	id "citizenportal/pkg/domain"
	dErrors "citizenportal/pkg/domain-errors"
	"citizenportal/pkg/email"
)

// Step1Request opens an account, or reopens a rejected one, with the
// applicant's personal details.
type Step1Request struct {
	Email      string `json:"email" validate:"required,email,max=255"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	FirstName  string `json:"firstName" validate:"required,max=100"`
	MiddleName string `json:"middleName" validate:"max=100"`
	LastName   string `json:"lastName" validate:"required,max=100"`
	Address    string `json:"address" validate:"required,max=500"`
	Phone      string `json:"phone" validate:"required,phone"`
	DOB        string `json:"dob" validate:"required,pastdate"`
}

func (r *Step1Request) Normalize() {
	if r == nil {
		return
	}
	r.Email = email.Normalize(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.MiddleName = strings.TrimSpace(r.MiddleName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Address = strings.TrimSpace(r.Address)
	r.Phone = strings.TrimSpace(r.Phone)
	r.DOB = strings.TrimSpace(r.DOB)
}

// Validate reports every failing field at once.
func (r *Step1Request) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validateStruct(r)
}

func (r *Step1Request) Details() PersonalDetails {
	return PersonalDetails{
		FirstName:   r.FirstName,
		MiddleName:  r.MiddleName,
		LastName:    r.LastName,
		Address:     r.Address,
		Phone:       r.Phone,
		DateOfBirth: r.DOB,
	}
}

// Step2Request carries the ID card images. Images are opaque strings
// (typically data URLs).
type Step2Request struct {
	IDCardFront string `json:"idCardFront" validate:"required"`
	IDCardBack  string `json:"idCardBack" validate:"required"`
}

func (r *Step2Request) Normalize() {
	if r == nil {
		return
	}
	r.IDCardFront = strings.TrimSpace(r.IDCardFront)
	r.IDCardBack = strings.TrimSpace(r.IDCardBack)
}

func (r *Step2Request) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validateStruct(r)
}

// Step3Request carries the selfie and an optional analysis blob produced by
// the client. The blob is never interpreted server side.
type Step3Request struct {
	SelfieImage string          `json:"selfieImage" validate:"required"`
	AIAnalysis  json.RawMessage `json:"aiAnalysis,omitempty"`
}

func (r *Step3Request) Normalize() {
	if r == nil {
		return
	}
	r.SelfieImage = strings.TrimSpace(r.SelfieImage)
	if bytes.Equal(bytes.TrimSpace(r.AIAnalysis), []byte("null")) {
		r.AIAnalysis = nil
	}
}

func (r *Step3Request) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validateStruct(r); err != nil {
		return err
	}
	if len(r.AIAnalysis) > 0 && !json.Valid(r.AIAnalysis) {
		return dErrors.NewValidation(map[string]string{"aiAnalysis": "must be valid JSON"})
	}
	return nil
}

// ReapplyChangesRequest is a partial edit. Absent fields keep the previous
// application's values. Blank required fields and blank images also keep
// them; a blank middleName clears it, since the middle name is optional.
type ReapplyChangesRequest struct {
	FirstName   *string `json:"firstName,omitempty" validate:"omitempty,max=100"`
	MiddleName  *string `json:"middleName,omitempty" validate:"omitempty,max=100"`
	LastName    *string `json:"lastName,omitempty" validate:"omitempty,max=100"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=500"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,phone"`
	DOB         *string `json:"dob,omitempty" validate:"omitempty,pastdate"`
	IDCardFront *string `json:"idCardFront,omitempty"`
	IDCardBack  *string `json:"idCardBack,omitempty"`
	SelfieImage *string `json:"selfieImage,omitempty"`
}

func (r *ReapplyChangesRequest) Normalize() {
	if r == nil {
		return
	}
	r.FirstName = trimPtr(r.FirstName)
	r.MiddleName = trimPtr(r.MiddleName)
	r.LastName = trimPtr(r.LastName)
	r.Address = trimPtr(r.Address)
	r.Phone = trimPtr(r.Phone)
	r.DOB = trimPtr(r.DOB)
	r.IDCardFront = trimPtr(r.IDCardFront)
	r.IDCardBack = trimPtr(r.IDCardBack)
	r.SelfieImage = trimPtr(r.SelfieImage)
}

func (r *ReapplyChangesRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validateStruct(r)
}

func (r *ReapplyChangesRequest) Changes() ApplicationChanges {
	return ApplicationChanges{
		FirstName:   r.FirstName,
		MiddleName:  r.MiddleName,
		LastName:    r.LastName,
		Address:     r.Address,
		Phone:       r.Phone,
		DateOfBirth: r.DOB,
		IDCardFront: r.IDCardFront,
		IDCardBack:  r.IDCardBack,
		SelfieImage: r.SelfieImage,
	}
}

// DecisionRequest is a validator's verdict on one application.
type DecisionRequest struct {
	ApplicationID id.ApplicationID `json:"applicationId" validate:"gt=0"`
	Action        Action           `json:"action" validate:"required,oneof=approve reject request_info"`
	Notes         string           `json:"notes" validate:"required_if=Action reject,max=2000"`
}

func (r *DecisionRequest) Normalize() {
	if r == nil {
		return
	}
	r.Action = Action(strings.ToLower(strings.TrimSpace(string(r.Action))))
	r.Notes = strings.TrimSpace(r.Notes)
}

// Validate rejects a reject without notes before any storage access.
func (r *DecisionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validateStruct(r)
}
