package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"citizenportal/internal/audit"
	"citizenportal/internal/verification/models"
	id "citizenportal/pkg/domain"
	dErrors "citizenportal/pkg/domain-errors"
	"citizenportal/pkg/requestcontext"
)

// Queue lists pending applications, longest waiting first.
func (s *Service) Queue(ctx context.Context) ([]models.ReviewItem, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Queue")
	defer span.End()

	items, err := s.apps.ListByStatus(ctx, models.StatusPending)
	if err != nil {
		span.SetStatus(codes.Error, "list pending failed")
		return nil, translateStoreError(err, "no applications found", "failed to load queue")
	}
	span.SetAttributes(attribute.Int("queue.length", len(items)))
	return items, nil
}

// Application returns one application with its owner's email.
func (s *Service) Application(ctx context.Context, appID id.ApplicationID) (*models.ReviewItem, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Application",
		trace.WithAttributes(attribute.Int64("application.id", int64(appID))))
	defer span.End()

	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		return nil, translateStoreError(err, "application not found", "failed to load application")
	}
	owner, err := s.users.FindByID(ctx, app.UserID)
	if err != nil {
		return nil, translateStoreError(err, "application owner not found", "failed to load application owner")
	}
	return &models.ReviewItem{Application: app, Email: owner.Email}, nil
}

// Decide applies a validator verdict to an application and its owner in
// one transaction.
func (s *Service) Decide(ctx context.Context, req *models.DecisionRequest) (*models.DecisionResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "verification.Decide")
	defer span.End()

	// Validation runs before any read or write.
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	next, ok := req.Action.TargetStatus()
	if !ok {
		return nil, dErrors.NewValidation(map[string]string{"action": "must be one of: approve, reject, request_info"})
	}
	span.SetAttributes(
		attribute.Int64("application.id", int64(req.ApplicationID)),
		attribute.String("decision.action", string(req.Action)),
	)

	reviewer := requestcontext.UserID(ctx)
	now := requestcontext.Now(ctx)
	app, err := s.lockedTransition(ctx, req.ApplicationID, func(user *models.User, app *models.Application) statusTransition {
		return statusTransition{
			User:        user,
			Application: app,
			Next:        next,
			Kind:        transitionDecision,
			Reviewer:    reviewer,
			Notes:       req.Notes,
			Now:         now,
		}
	})
	if err != nil {
		span.SetStatus(codes.Error, "decision failed")
		return nil, err
	}

	attributes := []any{
		"user_id", app.UserID,
		"actor_id", reviewer,
		"application_id", app.ID,
		"status", app.Status.String(),
	}
	if req.Notes != "" {
		attributes = append(attributes, "reason", req.Notes)
	}
	s.logAudit(ctx, audit.EventApplicationDecided, attributes...)
	if s.metrics != nil {
		s.metrics.IncrementDecision(string(req.Action))
		s.metrics.ObserveDecision(start)
	}
	return &models.DecisionResult{ApplicationID: app.ID, Status: app.Status, UserID: app.UserID}, nil
}

// History lists decided applications, most recent decision first. An
// empty filter returns every decided status.
func (s *Service) History(ctx context.Context, rawStatus string) ([]models.ReviewItem, error) {
	ctx, span := s.tracer.Start(ctx, "verification.History")
	defer span.End()

	var filter *models.Status
	if raw := strings.TrimSpace(strings.ToLower(rawStatus)); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil || !status.IsDecided() {
			return nil, dErrors.NewValidation(map[string]string{"status": "must be one of: approved, rejected, needs_info"})
		}
		filter = &status
		span.SetAttributes(attribute.String("history.status", raw))
	}

	items, err := s.apps.ListDecided(ctx, filter)
	if err != nil {
		span.SetStatus(codes.Error, "list decided failed")
		return nil, translateStoreError(err, "no applications found", "failed to load history")
	}
	return items, nil
}

// Reopen sends a decided application and its owner back to pending. Only
// the owner's current application can be reopened.
func (s *Service) Reopen(ctx context.Context, appID id.ApplicationID) (*models.DecisionResult, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Reopen",
		trace.WithAttributes(attribute.Int64("application.id", int64(appID))))
	defer span.End()

	actor := requestcontext.UserID(ctx)
	now := requestcontext.Now(ctx)
	var previous models.Status
	app, err := s.lockedTransition(ctx, appID, func(user *models.User, app *models.Application) statusTransition {
		previous = app.Status
		return statusTransition{
			User:        user,
			Application: app,
			Next:        models.StatusPending,
			Kind:        transitionReopen,
			Now:         now,
		}
	})
	if err != nil {
		span.SetStatus(codes.Error, "reopen failed")
		return nil, err
	}

	s.logAudit(ctx, audit.EventApplicationReopened,
		"user_id", app.UserID,
		"actor_id", actor,
		"application_id", app.ID,
		"status", app.Status.String(),
		"reason", "reopened from "+previous.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementReopened()
	}
	return &models.DecisionResult{ApplicationID: app.ID, Status: app.Status, UserID: app.UserID}, nil
}

// lockedTransition resolves the owner of appID, then locks the user row
// before the application row and applies the transition built by plan.
func (s *Service) lockedTransition(
	ctx context.Context,
	appID id.ApplicationID,
	plan func(user *models.User, app *models.Application) statusTransition,
) (*models.Application, error) {
	unlocked, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		return nil, translateStoreError(err, "application not found", "failed to load application")
	}

	var app *models.Application
	err = s.tx.RunInTx(ctx, func(stores Stores) error {
		user, err := stores.Users.FindByID(ctx, unlocked.UserID)
		if err != nil {
			return translateStoreError(err, "application owner not found", "failed to load application owner")
		}
		app, err = stores.Applications.FindByID(ctx, appID)
		if err != nil {
			return translateStoreError(err, "application not found", "failed to load application")
		}
		return applyStatusTransition(ctx, stores, plan(user, app))
	})
	if err != nil {
		return nil, s.txError(ctx, "validator_transition", err, "application not found", "failed to save decision")
	}
	return app, nil
}
