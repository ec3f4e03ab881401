package handler

import (
	"encoding/json"
	"time"

	"citizenportal/internal/verification/models"
	id "citizenportal/pkg/domain"
)

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	Role               string     `json:"role"`
	VerificationStatus string     `json:"verificationStatus"`
	RejectionReason    *string    `json:"rejectionReason,omitempty"`
	RejectionDate      *time.Time `json:"rejectionDate,omitempty"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:                 u.ID.String(),
		Email:              u.Email,
		Name:               u.Name,
		Role:               u.Role.String(),
		VerificationStatus: u.VerificationStatus.String(),
		RejectionReason:    u.RejectionReason,
		RejectionDate:      u.RejectionDate,
	}
}

type registrationResponse struct {
	Message         string       `json:"message"`
	User            userResponse `json:"user"`
	Token           string       `json:"token"`
	IsReapplication bool         `json:"isReapplication"`
}

type submissionResponse struct {
	Message       string           `json:"message"`
	ApplicationID id.ApplicationID `json:"applicationId"`
	User          userResponse     `json:"user"`
	Token         string           `json:"token"`
}

// previousApplicationResponse is the current application flattened for
// pre-filling the reapplication form.
type previousApplicationResponse struct {
	ID          id.ApplicationID `json:"id"`
	FirstName   string           `json:"firstName"`
	MiddleName  string           `json:"middleName"`
	LastName    string           `json:"lastName"`
	FullName    string           `json:"fullName"`
	Address     string           `json:"address"`
	Phone       string           `json:"phone"`
	DOB         string           `json:"dob"`
	IDCardFront string           `json:"idCardFront,omitempty"`
	IDCardBack  string           `json:"idCardBack,omitempty"`
	SelfieImage string           `json:"selfieImage,omitempty"`
	Status      string           `json:"status"`
	ReviewNotes string           `json:"reviewNotes,omitempty"`
	SubmittedAt time.Time        `json:"submittedAt"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func toPreviousApplication(a *models.Application) previousApplicationResponse {
	return previousApplicationResponse{
		ID:          a.ID,
		FirstName:   a.FirstName,
		MiddleName:  a.MiddleName,
		LastName:    a.LastName,
		FullName:    a.FullName,
		Address:     a.Address,
		Phone:       a.Phone,
		DOB:         a.DateOfBirth,
		IDCardFront: a.IDCardFront,
		IDCardBack:  a.IDCardBack,
		SelfieImage: a.SelfieImage,
		Status:      a.Status.String(),
		ReviewNotes: a.ReviewNotes,
		SubmittedAt: a.SubmittedAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

type queueItemResponse struct {
	ID          id.ApplicationID `json:"id"`
	FullName    string           `json:"fullName"`
	Email       string           `json:"email"`
	Status      string           `json:"status"`
	SubmittedAt time.Time        `json:"submittedAt"`
}

type historyItemResponse struct {
	ID          id.ApplicationID `json:"id"`
	FullName    string           `json:"fullName"`
	Email       string           `json:"email"`
	Status      string           `json:"status"`
	ReviewedBy  *string          `json:"reviewedBy"`
	ReviewedAt  *time.Time       `json:"reviewedAt"`
	ReviewNotes string           `json:"reviewNotes,omitempty"`
	SubmittedAt time.Time        `json:"submittedAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

type applicationDetailResponse struct {
	ID          id.ApplicationID `json:"id"`
	UserID      string           `json:"userId"`
	Email       string           `json:"email"`
	FirstName   string           `json:"firstName"`
	MiddleName  string           `json:"middleName"`
	LastName    string           `json:"lastName"`
	FullName    string           `json:"fullName"`
	Address     string           `json:"address"`
	Phone       string           `json:"phone"`
	DOB         string           `json:"dob"`
	IDCardFront *string          `json:"idCardFront"`
	IDCardBack  *string          `json:"idCardBack"`
	SelfieImage *string          `json:"selfieImage"`
	AIAnalysis  json.RawMessage  `json:"aiAnalysis"`
	Status      string           `json:"status"`
	ReviewedBy  *string          `json:"reviewedBy"`
	ReviewedAt  *time.Time       `json:"reviewedAt"`
	ReviewNotes string           `json:"reviewNotes,omitempty"`
	SubmittedAt time.Time        `json:"submittedAt"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

type decisionResponse struct {
	Message       string           `json:"message"`
	ApplicationID id.ApplicationID `json:"applicationId"`
	Status        string           `json:"status"`
}

func toQueue(items []models.ReviewItem) []queueItemResponse {
	out := make([]queueItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, queueItemResponse{
			ID:          it.Application.ID,
			FullName:    it.Application.FullName,
			Email:       it.Email,
			Status:      it.Application.Status.String(),
			SubmittedAt: it.Application.SubmittedAt,
		})
	}
	return out
}

func toHistory(items []models.ReviewItem) []historyItemResponse {
	out := make([]historyItemResponse, 0, len(items))
	for _, it := range items {
		a := it.Application
		out = append(out, historyItemResponse{
			ID:          a.ID,
			FullName:    a.FullName,
			Email:       it.Email,
			Status:      a.Status.String(),
			ReviewedBy:  reviewer(a),
			ReviewedAt:  a.ReviewedAt,
			ReviewNotes: a.ReviewNotes,
			SubmittedAt: a.SubmittedAt,
			UpdatedAt:   a.UpdatedAt,
		})
	}
	return out
}

func toApplicationDetail(it *models.ReviewItem) applicationDetailResponse {
	a := it.Application
	// A missing blob is rendered as JSON null rather than omitted.
	analysis := a.AIAnalysis
	if len(analysis) == 0 {
		analysis = json.RawMessage("null")
	}
	return applicationDetailResponse{
		ID:          a.ID,
		UserID:      a.UserID.String(),
		Email:       it.Email,
		FirstName:   a.FirstName,
		MiddleName:  a.MiddleName,
		LastName:    a.LastName,
		FullName:    a.FullName,
		Address:     a.Address,
		Phone:       a.Phone,
		DOB:         a.DateOfBirth,
		IDCardFront: nonEmpty(a.IDCardFront),
		IDCardBack:  nonEmpty(a.IDCardBack),
		SelfieImage: nonEmpty(a.SelfieImage),
		AIAnalysis:  analysis,
		Status:      a.Status.String(),
		ReviewedBy:  reviewer(a),
		ReviewedAt:  a.ReviewedAt,
		ReviewNotes: a.ReviewNotes,
		SubmittedAt: a.SubmittedAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func reviewer(a *models.Application) *string {
	if a.ReviewedBy == nil {
		return nil
	}
	s := a.ReviewedBy.String()
	return &s
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
