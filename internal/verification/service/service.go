package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"citizenportal/internal/audit"
	"citizenportal/internal/verification/metrics"
	"citizenportal/internal/verification/models"
	"citizenportal/pkg/attrs"
	id "citizenportal/pkg/domain"
	dErrors "citizenportal/pkg/domain-errors"
	"citizenportal/pkg/platform/sentinel"
	"citizenportal/pkg/requestcontext"
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	FindCurrentByUser(ctx context.Context, userID id.UserID) (*models.Application, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Application, error)
	Update(ctx context.Context, app *models.Application) error
	ListByStatus(ctx context.Context, status models.Status) ([]models.ReviewItem, error)
	ListDecided(ctx context.Context, filter *models.Status) ([]models.ReviewItem, error)
}

// Stores groups the stores that share a transaction.
type Stores struct {
	Users        UserStore
	Applications ApplicationStore
}

// StoreTx provides the transactional boundary for user and application
// writes. Implementations wrap a database transaction or, in memory, a
// coarse lock. Reads made through stores inside fn lock the rows they return.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(stores Stores) error) error
}

// Service runs the registration pipeline, the reapplication paths and the
// validator decisions. Every status write goes through applyStatusTransition
// inside a single transaction.
type Service struct {
	users          UserStore
	apps           ApplicationStore
	tx             StoreTx
	credentials    CredentialIssuer
	passwords      PasswordHasher
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service.
func New(users UserStore, apps ApplicationStore, tx StoreTx, credentials CredentialIssuer, passwords PasswordHasher, opts ...Option) (*Service, error) {
	if users == nil || apps == nil {
		return nil, errors.New("user and application stores are required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	if credentials == nil {
		return nil, errors.New("credential issuer is required")
	}
	if passwords == nil {
		return nil, errors.New("password hasher is required")
	}
	s := &Service{
		users:       users,
		apps:        apps,
		tx:          tx,
		credentials: credentials,
		passwords:   passwords,
		tracer:      otel.Tracer("citizenportal/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// translateStoreError keeps domain errors raised inside a transaction and
// maps store sentinels for everything else.
func translateStoreError(err error, notFound, internal string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFound)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "conflicting update, retry the request")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internal)
}

// txError translates the error of a failed transaction and logs storage
// failures with their context. The caller only sees a generic message.
func (s *Service) txError(ctx context.Context, operation string, err error, notFound, internal string) error {
	err = translateStoreError(err, notFound, internal)
	if s.logger != nil && dErrors.HasCode(err, dErrors.CodeInternal) {
		s.logger.ErrorContext(ctx, "verification transaction failed",
			"operation", operation,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	return err
}

// issueCredentials runs after commit. A failure here leaves the committed
// state in place and is reported as INTERNAL.
func (s *Service) issueCredentials(ctx context.Context, user *models.User, operation string) (*models.Credentials, error) {
	creds, err := s.credentials.Issue(ctx, user)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "credential issuance failed after commit",
				"operation", operation,
				"user_id", user.ID.String(),
				"verification_status", user.VerificationStatus.String(),
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "changes were saved but a new session could not be issued, please log in again")
	}
	return creds, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	// Add request_id from context if available
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	e := audit.Event{
		Action:    event,
		Status:    attrs.ExtractString(attributes, "status"),
		Reason:    attrs.ExtractString(attributes, "reason"),
		RequestID: requestID,
	}
	if userID, err := id.ParseUserID(attrs.ExtractString(attributes, "user_id")); err == nil {
		e.UserID = userID
	}
	if actorID, err := id.ParseUserID(attrs.ExtractString(attributes, "actor_id")); err == nil {
		e.ActorID = actorID
	}
	if appID, err := id.ParseApplicationID(attrs.ExtractString(attributes, "application_id")); err == nil {
		e.ApplicationID = appID
	}
	if err := s.auditPublisher.Emit(ctx, e); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", event, "error", err)
	}
}
