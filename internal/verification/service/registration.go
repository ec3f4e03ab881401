package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"citizenportal/internal/audit"
	"citizenportal/internal/verification/models"
	id "citizenportal/pkg/domain"
	dErrors "citizenportal/pkg/domain-errors"
	"citizenportal/pkg/platform/sentinel"
	"citizenportal/pkg/requestcontext"
)

// RegisterStep1 creates a citizen account with its first application, or
// reopens a rejected account with a brand-new application row. Credentials
// are issued only after the transaction commits.
func (s *Service) RegisterStep1(ctx context.Context, req *models.Step1Request) (*models.RegistrationResult, error) {
	ctx, span := s.tracer.Start(ctx, "verification.RegisterStep1")
	defer span.End()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	details := req.Details()
	now := requestcontext.Now(ctx)
	var (
		user            *models.User
		app             *models.Application
		isReapplication bool
	)
	err := s.tx.RunInTx(ctx, func(stores Stores) error {
		existing, err := stores.Users.FindByEmail(ctx, req.Email)
		switch {
		case err == nil:
			if existing.VerificationStatus != models.StatusRejected {
				return dErrors.New(dErrors.CodeConflict, "email already registered")
			}
			// An unauthenticated caller may only reopen the account with its
			// own password.
			if err := s.passwords.Verify(req.Password, existing.PasswordHash); err != nil {
				return dErrors.New(dErrors.CodeConflict, "email already registered")
			}
			user = existing
			isReapplication = true
		case errors.Is(err, sentinel.ErrNotFound):
			// Only a new account needs a hash; reopening keeps the stored one.
			hash, err := s.passwords.Hash(req.Password)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
			}
			user, err = models.NewCitizen(id.NewUserID(), req.Email, hash, details.FullName(), now)
			if err != nil {
				return err
			}
			if err := stores.Users.Create(ctx, user); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return dErrors.New(dErrors.CodeConflict, "email already registered")
				}
				return translateStoreError(err, "user not found", "failed to create user")
			}
		default:
			return translateStoreError(err, "user not found", "failed to look up account")
		}

		user.Rename(details.FullName(), now)
		app = models.NewApplication(user.ID, details, now)
		return applyStatusTransition(ctx, stores, statusTransition{
			User:        user,
			Application: app,
			Next:        models.StatusPending,
			Kind:        transitionSubmission,
			Now:         now,
		})
	})
	if err != nil {
		span.SetStatus(codes.Error, "step 1 failed")
		return nil, s.txError(ctx, "register_step1", err, "user not found", "failed to save registration")
	}
	span.SetAttributes(
		attribute.String("user.id", user.ID.String()),
		attribute.Int64("application.id", int64(app.ID)),
		attribute.Bool("registration.reapplication", isReapplication),
	)

	event := audit.EventRegistrationSubmitted
	if isReapplication {
		event = audit.EventReapplicationSubmitted
	}
	s.logAudit(ctx, event,
		"user_id", user.ID,
		"application_id", app.ID,
		"status", user.VerificationStatus.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementRegistration(isReapplication)
	}

	creds, err := s.issueCredentials(ctx, user, "register_step1")
	if err != nil {
		return nil, err
	}
	return &models.RegistrationResult{
		User:            user,
		Application:     app,
		Credentials:     creds,
		IsReapplication: isReapplication,
	}, nil
}

// RegisterStep2 attaches the ID card images to the caller's current
// application. Status is unchanged, so no new credential is issued.
func (s *Service) RegisterStep2(ctx context.Context, userID id.UserID, req *models.Step2Request) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	var appID id.ApplicationID
	err := s.tx.RunInTx(ctx, func(stores Stores) error {
		user, err := stores.Users.FindByID(ctx, userID)
		if err != nil {
			return translateStoreError(err, "user not found", "failed to load user")
		}
		app, err := stores.Applications.FindCurrentByUser(ctx, user.ID)
		if err != nil {
			return translateStoreError(err, "no application found for user", "failed to load application")
		}
		if !acceptsEvidence(app.Status) {
			return dErrors.New(dErrors.CodeConflict, "application is not accepting documents in status "+app.Status.String())
		}
		app.ApplyDocuments(req.IDCardFront, req.IDCardBack, now)
		if err := stores.Applications.Update(ctx, app); err != nil {
			return translateStoreError(err, "no application found for user", "failed to save documents")
		}
		appID = app.ID
		return nil
	})
	if err != nil {
		return s.txError(ctx, "register_step2", err, "no application found for user", "failed to save documents")
	}

	s.logAudit(ctx, audit.EventDocumentsSubmitted,
		"user_id", userID,
		"application_id", appID,
	)
	if s.metrics != nil {
		s.metrics.IncrementSubmission("documents")
	}
	return nil
}

// RegisterStep3 stores the selfie and analysis blob and forces both rows to
// pending. Repeating it while pending overwrites the evidence only.
func (s *Service) RegisterStep3(ctx context.Context, userID id.UserID, req *models.Step3Request) (*models.SubmissionResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

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
		app, err = stores.Applications.FindCurrentByUser(ctx, user.ID)
		if err != nil {
			return translateStoreError(err, "no application found for user", "failed to load application")
		}
		if !acceptsEvidence(app.Status) {
			return dErrors.New(dErrors.CodeConflict, "application is not accepting a selfie in status "+app.Status.String())
		}
		app.ApplyBiometrics(req.SelfieImage, req.AIAnalysis, now)
		return applyStatusTransition(ctx, stores, statusTransition{
			User:        user,
			Application: app,
			Next:        models.StatusPending,
			Kind:        transitionSubmission,
			Now:         now,
		})
	})
	if err != nil {
		return nil, s.txError(ctx, "register_step3", err, "no application found for user", "failed to save selfie")
	}

	s.logAudit(ctx, audit.EventBiometricsSubmitted,
		"user_id", user.ID,
		"application_id", app.ID,
		"status", app.Status.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementSubmission("biometrics")
	}

	creds, err := s.issueCredentials(ctx, user, "register_step3")
	if err != nil {
		return nil, err
	}
	return &models.SubmissionResult{User: user, Application: app, Credentials: creds}, nil
}

// PreviousApplication returns the caller's current application.
func (s *Service) PreviousApplication(ctx context.Context, userID id.UserID) (*models.Application, error) {
	app, err := s.apps.FindCurrentByUser(ctx, userID)
	if err != nil {
		return nil, translateStoreError(err, "no previous application found", "failed to load application")
	}
	return app, nil
}

// acceptsEvidence reports whether the citizen may still change evidence:
// before a decision, or after a validator asked for more information.
func acceptsEvidence(status models.Status) bool {
	return status == models.StatusPending || status == models.StatusNeedsInfo
}
