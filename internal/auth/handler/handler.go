package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"citizenportal/internal/auth/models"
	dErrors "citizenportal/pkg/domain-errors"
	"citizenportal/pkg/platform/httputil"
	"citizenportal/pkg/requestcontext"
)

// Service defines the session operations exposed over HTTP.
type Service interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error)
	Refresh(ctx context.Context, token string) (*models.LoginResult, error)
	Revoke(ctx context.Context, token string) error
}

// Handler serves login, refresh rotation and logout.
type Handler struct {
	auth    Service
	logger  *slog.Logger
	cookies httputil.SessionCookies
}

func New(auth Service, logger *slog.Logger, cookies httputil.SessionCookies) *Handler {
	return &Handler{
		auth:    auth,
		logger:  logger,
		cookies: cookies,
	}
}

// Register mounts the session endpoints. None of them require an access
// token; refresh and logout authenticate with the refresh token.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/refresh", h.HandleRefresh)
	r.Post("/auth/logout", h.HandleLogout)
}

type sessionUser struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	Role               string `json:"role"`
	VerificationStatus string `json:"verificationStatus"`
}

type sessionResponse struct {
	User      sessionUser `json:"user"`
	Token     string      `json:"token"`
	ExpiresIn int         `json:"expiresIn"`
}

func toSessionResponse(result *models.LoginResult) sessionResponse {
	u := result.User
	return sessionResponse{
		User: sessionUser{
			ID:                 u.ID.String(),
			Email:              u.Email,
			Name:               u.Name,
			Role:               u.Role.String(),
			VerificationStatus: u.VerificationStatus.String(),
		},
		Token:     result.Credentials.AccessToken,
		ExpiresIn: int(result.Credentials.ExpiresIn.Seconds()),
	}
}

// HandleLogin handles POST /auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, err := httputil.DecodeJSON[models.LoginRequest](r)
	if err != nil {
		h.logger.WarnContext(ctx, "login request rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.auth.Login(ctx, req)
	if err != nil {
		h.logFailure(ctx, "login failed", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "user logged in",
		"request_id", requestID,
		"user_id", result.User.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	h.writeSession(w, result)
}

// HandleRefresh handles POST /auth/refresh. The refresh cookie wins over a
// token in the body.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, err := refreshTokenFromRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.auth.Refresh(ctx, token)
	if err != nil {
		h.logFailure(ctx, "refresh failed", err)
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			h.cookies.Clear(w)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "session refreshed",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", result.User.ID,
		"status", result.User.VerificationStatus.String(),
	)
	h.writeSession(w, result)
}

// HandleLogout handles POST /auth/logout. It always clears the cookies and
// succeeds for unknown tokens.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, err := refreshTokenFromRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.auth.Revoke(ctx, token); err != nil {
		h.logFailure(ctx, "logout failed", err)
		httputil.WriteError(w, err)
		return
	}

	h.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeSession(w http.ResponseWriter, result *models.LoginResult) {
	h.cookies.Set(w, result.Credentials.AccessToken, result.Credentials.RefreshToken, result.Credentials.ExpiresIn)
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(result))
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}

func refreshTokenFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(httputil.RefreshTokenCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	req, err := httputil.DecodeJSON[models.RefreshRequest](r)
	if err != nil {
		return "", err
	}
	req.Normalize()
	return req.RefreshToken, nil
}
