package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"citizenportal/internal/audit"
	"citizenportal/internal/auth/metrics"
	"citizenportal/internal/auth/models"
	"citizenportal/internal/auth/secrets"
	jwttoken "citizenportal/internal/jwt_token"
	vmodels "citizenportal/internal/verification/models"
	"citizenportal/pkg/attrs"
	id "citizenportal/pkg/domain"
	dErrors "citizenportal/pkg/domain-errors"
	"citizenportal/pkg/platform/sentinel"
	"citizenportal/pkg/requestcontext"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Config holds token lifetimes.
type Config struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Service issues access tokens and rotating refresh sessions. Tokens are
// always built from the user row as it is when they are issued.
type Service struct {
	users          UserStore
	refreshTokens  RefreshTokenStore
	jwt            TokenGenerator
	passwords      PasswordVerifier
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
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

func New(users UserStore, refreshTokens RefreshTokenStore, jwt TokenGenerator, passwords PasswordVerifier, cfg *Config, opts ...Option) (*Service, error) {
	if users == nil || refreshTokens == nil {
		return nil, errors.New("user and refresh token stores are required")
	}
	if jwt == nil {
		return nil, errors.New("token generator is required")
	}
	if passwords == nil {
		return nil, errors.New("password verifier is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	s := &Service{
		users:           users,
		refreshTokens:   refreshTokens,
		jwt:             jwt,
		passwords:       passwords,
		logger:          slog.Default(),
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	}
	if s.AccessTokenTTL <= 0 {
		s.AccessTokenTTL = defaultAccessTokenTTL
	}
	if s.RefreshTokenTTL <= 0 {
		s.RefreshTokenTTL = defaultRefreshTokenTTL
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue opens a new refresh session for user and returns an access token
// carrying the user's current claims. Client metadata is taken from ctx.
func (s *Service) Issue(ctx context.Context, user *vmodels.User) (*vmodels.Credentials, error) {
	now := requestcontext.Now(ctx)
	access, err := s.accessToken(user, now)
	if err != nil {
		return nil, err
	}
	refresh, err := s.CreateRefreshSession(ctx, user.ID, requestcontext.UserAgent(ctx), requestcontext.ClientIP(ctx))
	if err != nil {
		return nil, err
	}
	return &vmodels.Credentials{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.AccessTokenTTL,
	}, nil
}

// CreateRefreshSession starts a new rotation chain bound to the device and
// address it was requested from.
func (s *Service) CreateRefreshSession(ctx context.Context, userID id.UserID, userAgent, ip string) (string, error) {
	return s.issueRefreshToken(ctx, id.NewSessionID(), userID, userAgent, ip)
}

func (s *Service) issueRefreshToken(ctx context.Context, sessionID id.SessionID, userID id.UserID, userAgent, ip string) (string, error) {
	token, err := secrets.NewRefreshToken()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate refresh token")
	}
	record, err := models.NewRefreshTokenRecord(secrets.TokenHash(token), sessionID, userID, userAgent, ip, requestcontext.Now(ctx), s.RefreshTokenTTL)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create refresh token")
	}
	if err := s.refreshTokens.Create(ctx, record); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to save refresh token")
	}
	return token, nil
}

func (s *Service) accessToken(user *vmodels.User, now time.Time) (string, error) {
	token, _, err := s.jwt.IssueAccessToken(jwttoken.Subject{
		UserID:             user.ID.String(),
		Email:              user.Email,
		Name:               user.Name,
		Role:               user.Role.String(),
		VerificationStatus: user.VerificationStatus.String(),
	}, now, s.AccessTokenTTL)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign access token")
	}
	return token, nil
}

// Refresh rotates a refresh token. The presented token is consumed, the
// user is reloaded and a new pair is issued in the same session. Presenting
// a token that was already rotated ends the whole session.
func (s *Service) Refresh(ctx context.Context, token string) (*models.LoginResult, error) {
	if token == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "refresh token is required")
	}
	now := requestcontext.Now(ctx)

	record, err := s.refreshTokens.Consume(ctx, secrets.TokenHash(token), now)
	if err != nil {
		return nil, s.refreshFailure(ctx, record, err, now)
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.incrementRefresh("unknown_user")
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	access, err := s.accessToken(user, now)
	if err != nil {
		return nil, err
	}
	userAgent, ip := requestcontext.UserAgent(ctx), requestcontext.ClientIP(ctx)
	if userAgent == "" {
		userAgent = record.UserAgent
	}
	if ip == "" {
		ip = record.IP
	}
	refresh, err := s.issueRefreshToken(ctx, record.SessionID, user.ID, userAgent, ip)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventTokenRefreshed,
		"user_id", user.ID,
		"status", user.VerificationStatus.String(),
	)
	s.incrementRefresh("rotated")
	return &models.LoginResult{
		User: user,
		Credentials: &vmodels.Credentials{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    s.AccessTokenTTL,
		},
	}, nil
}

func (s *Service) refreshFailure(ctx context.Context, record *models.RefreshTokenRecord, err error, now time.Time) error {
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed) && record != nil:
		revoked, revokeErr := s.refreshTokens.RevokeSession(ctx, record.SessionID, now)
		if revokeErr != nil {
			s.logger.ErrorContext(ctx, "failed to revoke replayed refresh session",
				"session_id", record.SessionID.String(),
				"request_id", requestcontext.RequestID(ctx),
				"error", revokeErr,
			)
		}
		s.logAudit(ctx, audit.EventRefreshReplayDetected,
			"user_id", record.UserID,
			"reason", "refresh token reused from "+models.DeviceLabel(requestcontext.UserAgent(ctx)),
		)
		s.logger.WarnContext(ctx, "refresh token replay detected",
			"session_id", record.SessionID.String(),
			"session_device", record.Device(),
			"revoked_tokens", revoked,
			"request_id", requestcontext.RequestID(ctx),
		)
		if s.metrics != nil {
			s.metrics.IncrementReplay()
			s.metrics.IncrementSessionRevoked()
		}
		s.incrementRefresh("replayed")
		return dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")
	case errors.Is(err, sentinel.ErrNotFound),
		errors.Is(err, sentinel.ErrAlreadyUsed),
		errors.Is(err, sentinel.ErrRevoked):
		s.incrementRefresh("rejected")
		return dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")
	case errors.Is(err, sentinel.ErrExpired):
		s.incrementRefresh("expired")
		return dErrors.New(dErrors.CodeUnauthorized, "refresh token has expired")
	default:
		s.logger.ErrorContext(ctx, "refresh token consume failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to refresh session")
	}
}

// Revoke ends the session the token belongs to. Unknown tokens are ignored
// so logout is idempotent.
func (s *Service) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	record, err := s.refreshTokens.Find(ctx, secrets.TokenHash(token))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session")
	}
	revoked, err := s.refreshTokens.RevokeSession(ctx, record.SessionID, requestcontext.Now(ctx))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session")
	}
	if revoked > 0 {
		s.logAudit(ctx, audit.EventSessionRevoked,
			"user_id", record.UserID,
			"reason", "logout",
		)
		if s.metrics != nil {
			s.metrics.IncrementSessionRevoked()
		}
	}
	return nil
}

// Login verifies an email and password and opens a new session. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	invalid := dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.loginFailed(ctx, id.UserID{}, "unknown email")
			return nil, invalid
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if err := s.passwords.Verify(req.Password, user.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			s.loginFailed(ctx, user.ID, "wrong password")
			return nil, invalid
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}

	creds, err := s.Issue(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventLoginSucceeded,
		"user_id", user.ID,
		"status", user.VerificationStatus.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementLogin("success")
	}
	return &models.LoginResult{User: user, Credentials: creds}, nil
}

func (s *Service) loginFailed(ctx context.Context, userID id.UserID, reason string) {
	s.logAudit(ctx, audit.EventLoginFailed,
		"user_id", userID,
		"reason", reason,
	)
	if s.metrics != nil {
		s.metrics.IncrementLogin("failure")
	}
}

// DeleteExpiredTokens removes refresh tokens past their expiry.
func (s *Service) DeleteExpiredTokens(ctx context.Context) (int, error) {
	n, err := s.refreshTokens.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete expired refresh tokens")
	}
	if s.metrics != nil {
		s.metrics.AddSwept(n)
	}
	return n, nil
}

func (s *Service) incrementRefresh(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementRefresh(outcome)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
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
	if err := s.auditPublisher.Emit(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", event, "error", err)
	}
}

// RunExpirySweeper deletes expired refresh tokens every interval until ctx
// is cancelled. Sweep failures are logged and retried on the next tick.
func (s *Service) RunExpirySweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.DeleteExpiredTokens(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "refresh token sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.InfoContext(ctx, "expired refresh tokens deleted", "count", n)
			}
		}
	}
}
