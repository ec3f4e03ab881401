package service

import (
	"context"

	"citizenportal/internal/audit"
	"citizenportal/internal/verification/models"
	id "citizenportal/pkg/domain"
	"citizenportal/pkg/requestcontext"
)

const (
	reapplyQuick       = "quick"
	reapplyWithChanges = "with_changes"
)

// Reapply puts a rejected user's current application back in the queue
// unchanged. The application row and its ID are reused.
func (s *Service) Reapply(ctx context.Context, userID id.UserID) (*models.SubmissionResult, error) {
	return s.reapply(ctx, userID, reapplyQuick, nil)
}

// ReapplyWithChanges merges a partial edit onto the rejected user's current
// application and puts it back in the queue.
func (s *Service) ReapplyWithChanges(ctx context.Context, userID id.UserID, req *models.ReapplyChangesRequest) (*models.SubmissionResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	changes := req.Changes()
	return s.reapply(ctx, userID, reapplyWithChanges, &changes)
}

func (s *Service) reapply(ctx context.Context, userID id.UserID, kind string, changes *models.ApplicationChanges) (*models.SubmissionResult, error) {
	now := requestcontext.Now(ctx)
	var (
		user *models.User
		app  *models.Application
	)
	err := s.tx.RunInTx(ctx, func(stores Stores) error {
		var err error
		user, err = stores.Users.FindByID(ctx, userID)
		if err != nil {
			return translateStoreError(err, "user not found", "failed to load user")
		}
		if err := user.CanReapply(); err != nil {
			return err
		}
		app, err = stores.Applications.FindCurrentByUser(ctx, user.ID)
		if err != nil {
			return translateStoreError(err, "no previous application found", "failed to load application")
		}
		if changes != nil {
			app.ApplyChanges(*changes, now)
			user.Rename(app.FullName, now)
		}
		return applyStatusTransition(ctx, stores, statusTransition{
			User:        user,
			Application: app,
			Next:        models.StatusPending,
			Kind:        transitionSubmission,
			Now:         now,
		})
	})
	if err != nil {
		return nil, s.txError(ctx, "reapply_"+kind, err, "no previous application found", "failed to save reapplication")
	}

	s.logAudit(ctx, audit.EventApplicationResubmitted,
		"user_id", user.ID,
		"application_id", app.ID,
		"status", app.Status.String(),
		"reason", kind,
	)
	if s.metrics != nil {
		s.metrics.IncrementReapplication(kind)
	}

	creds, err := s.issueCredentials(ctx, user, "reapply_"+kind)
	if err != nil {
		return nil, err
	}
	return &models.SubmissionResult{User: user, Application: app, Credentials: creds}, nil
}
