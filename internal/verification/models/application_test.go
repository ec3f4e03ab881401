package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "citizenportal/pkg/domain"
)

func ptr(s string) *string { return &s }

func sampleApplication(now time.Time) *Application {
	return NewApplication(id.NewUserID(), PersonalDetails{
		FirstName:   "Maria",
		MiddleName:  "Santos",
		LastName:    "Reyes",
		Address:     "12 Rizal St",
		Phone:       "+63 912 345 6789",
		DateOfBirth: "1990-04-12",
	}, now)
}

func TestNewApplication(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	app := sampleApplication(now)

	assert.Equal(t, StatusPending, app.Status)
	assert.Equal(t, "Maria Santos Reyes", app.FullName)
	assert.Equal(t, now, app.SubmittedAt)
	assert.Equal(t, now, app.CreatedAt)
}

func TestApplicationSubmittedAtMovesOnlyOnEntry(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	app := sampleApplication(start)

	app.ApplyStatus(StatusPending, start.Add(time.Hour))
	assert.Equal(t, start, app.SubmittedAt, "pending to pending keeps the queue position")

	app.ApplyStatus(StatusNeedsInfo, start.Add(2*time.Hour))
	app.ApplyStatus(StatusPending, start.Add(3*time.Hour))
	assert.Equal(t, start.Add(3*time.Hour), app.SubmittedAt)
}

func TestApplicationApplyChanges(t *testing.T) {
	now := time.Now()

	t.Run("recomputes the full name part-wise", func(t *testing.T) {
		app := sampleApplication(now)
		app.ApplyChanges(ApplicationChanges{LastName: ptr("Garcia")}, now)
		assert.Equal(t, "Maria Santos Garcia", app.FullName)
		assert.Equal(t, "Garcia", app.LastName)
	})

	t.Run("blank and absent fields keep previous values", func(t *testing.T) {
		app := sampleApplication(now)
		app.IDCardFront = "front-v1"
		app.ApplyChanges(ApplicationChanges{Address: ptr("   "), IDCardFront: ptr("")}, now)
		assert.Equal(t, "12 Rizal St", app.Address)
		assert.Equal(t, "front-v1", app.IDCardFront)
		assert.Equal(t, "+63 912 345 6789", app.Phone)
	})

	t.Run("blank middle name clears it", func(t *testing.T) {
		app := sampleApplication(now)
		app.ApplyChanges(ApplicationChanges{MiddleName: ptr("")}, now)
		assert.Empty(t, app.MiddleName)
		assert.Equal(t, "Maria Reyes", app.FullName)
	})

	t.Run("absent middle name is kept", func(t *testing.T) {
		app := sampleApplication(now)
		app.ApplyChanges(ApplicationChanges{Phone: ptr("+63 917 000 1111")}, now)
		assert.Equal(t, "Santos", app.MiddleName)
	})

	t.Run("non-empty images overwrite", func(t *testing.T) {
		app := sampleApplication(now)
		app.SelfieImage = "old"
		app.ApplyChanges(ApplicationChanges{SelfieImage: ptr("new")}, now)
		assert.Equal(t, "new", app.SelfieImage)
	})
}

func TestApplicationReviewAndClone(t *testing.T) {
	now := time.Now()
	app := sampleApplication(now)
	app.ApplyBiometrics("selfie", json.RawMessage(`{"score":0.93}`), now)
	reviewer := id.NewUserID()
	app.ApplyReview(reviewer, "looks fine", now)

	c := app.Clone()
	c.AIAnalysis[2] = 'X'
	*c.ReviewedBy = id.NewUserID()

	require.NotNil(t, app.ReviewedBy)
	assert.Equal(t, reviewer, *app.ReviewedBy)
	assert.JSONEq(t, `{"score":0.93}`, string(app.AIAnalysis))
}
