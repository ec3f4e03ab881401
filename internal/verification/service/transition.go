package service

import (
	"context"
	"fmt"
	"time"

	"citizenportal/internal/verification/models"
	id "citizenportal/pkg/domain"
	dErrors "citizenportal/pkg/domain-errors"
)

type transitionKind int

const (
	// transitionSubmission is a citizen sending evidence: step 1, step 3 and
	// both reapplication paths.
	transitionSubmission transitionKind = iota
	// transitionDecision is a validator approving, rejecting or asking for
	// more information.
	transitionDecision
	// transitionReopen is a validator sending a decided application back to
	// the queue.
	transitionReopen
)

type statusTransition struct {
	User *models.User
	// Application is inserted as the user's new current application when
	// its ID is zero.
	Application *models.Application
	Next        models.Status
	Kind        transitionKind
	Reviewer    id.UserID
	Notes       string
	Now         time.Time
}

// applyStatusTransition is the only place verification status is written.
// It must run inside RunInTx with the user row read before the application
// row. After it returns nil the user's status equals the status of their
// current application.
func applyStatusTransition(ctx context.Context, stores Stores, t statusTransition) error {
	user, app := t.User, t.Application
	if app.UserID != user.ID {
		return dErrors.New(dErrors.CodeInvariantViolation, "application does not belong to user")
	}

	if app.ID.IsZero() {
		if t.Kind != transitionSubmission || t.Next != models.StatusPending {
			return dErrors.New(dErrors.CodeInvariantViolation, "new applications must enter pending by submission")
		}
		if !user.VerificationStatus.CanTransitionTo(t.Next) {
			return illegalTransition(user.VerificationStatus, t.Next)
		}
		app.ApplyStatus(t.Next, t.Now)
		if err := stores.Applications.Create(ctx, app); err != nil {
			return translateStoreError(err, "application owner not found", "failed to save application")
		}
	} else {
		current, err := stores.Applications.FindCurrentByUser(ctx, user.ID)
		if err != nil {
			return translateStoreError(err, "application not found", "failed to load current application")
		}
		if current.ID != app.ID {
			return dErrors.New(dErrors.CodeConflict, "application has been superseded by a newer submission")
		}
		if !transitionAllowed(app.Status, t.Next, t.Kind) {
			return illegalTransition(app.Status, t.Next)
		}
		if t.Kind == transitionDecision {
			app.ApplyReview(t.Reviewer, t.Notes, t.Now)
		}
		app.ApplyStatus(t.Next, t.Now)
		if err := stores.Applications.Update(ctx, app); err != nil {
			return translateStoreError(err, "application not found", "failed to update application")
		}
	}

	if t.Next == models.StatusRejected {
		user.ApplyRejection(t.Notes, t.Now)
	} else {
		user.ApplyStatus(t.Next, t.Now)
	}
	if err := stores.Users.Update(ctx, user); err != nil {
		return translateStoreError(err, "user not found", "failed to update user")
	}
	return nil
}

func transitionAllowed(from, next models.Status, kind transitionKind) bool {
	switch kind {
	case transitionSubmission:
		// Resubmitting evidence while pending overwrites it in place.
		if from == models.StatusPending && next == models.StatusPending {
			return true
		}
		return next == models.StatusPending && from.CanTransitionTo(next)
	case transitionDecision:
		return next.IsDecided() && from.CanTransitionTo(next)
	case transitionReopen:
		return next == models.StatusPending && from.CanReopen()
	}
	return false
}

func illegalTransition(from, next models.Status) error {
	return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("cannot move application from %s to %s", from, next))
}
