package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"citizenportal/internal/verification/models"
	id "citizenportal/pkg/domain"
	dErrors "citizenportal/pkg/domain-errors"
	"citizenportal/pkg/platform/httputil"
	authmw "citizenportal/pkg/platform/middleware/auth"
	"citizenportal/pkg/requestcontext"
)

// Service defines the verification operations exposed over HTTP.
type Service interface {
	RegisterStep1(ctx context.Context, req *models.Step1Request) (*models.RegistrationResult, error)
	RegisterStep2(ctx context.Context, userID id.UserID, req *models.Step2Request) error
	RegisterStep3(ctx context.Context, userID id.UserID, req *models.Step3Request) (*models.SubmissionResult, error)
	PreviousApplication(ctx context.Context, userID id.UserID) (*models.Application, error)
	Reapply(ctx context.Context, userID id.UserID) (*models.SubmissionResult, error)
	ReapplyWithChanges(ctx context.Context, userID id.UserID, req *models.ReapplyChangesRequest) (*models.SubmissionResult, error)
	Queue(ctx context.Context) ([]models.ReviewItem, error)
	Application(ctx context.Context, appID id.ApplicationID) (*models.ReviewItem, error)
	Decide(ctx context.Context, req *models.DecisionRequest) (*models.DecisionResult, error)
	History(ctx context.Context, status string) ([]models.ReviewItem, error)
	Reopen(ctx context.Context, appID id.ApplicationID) (*models.DecisionResult, error)
}

// Handler wires registration, reapplication and validator endpoints to the
// verification service.
type Handler struct {
	service      Service
	logger       *slog.Logger
	cookies      httputil.SessionCookies
	jwtValidator authmw.JWTValidator
}

// New constructs a verification handler with its dependencies.
func New(service Service, logger *slog.Logger, cookies httputil.SessionCookies, jwtValidator authmw.JWTValidator) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		cookies:      cookies,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the verification endpoints. Step 1 is public; the rest of
// the citizen flow needs an access token and the validator routes also need
// a validator or admin role.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()

	router.Post("/register/step1", h.HandleStep1)

	router.Group(func(citizen chi.Router) {
		citizen.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
		citizen.Post("/register/step2", h.HandleStep2)
		citizen.Post("/register/step3", h.HandleStep3)
		citizen.Get("/register/previous-application", h.HandlePreviousApplication)
		citizen.Post("/register/reapply", h.HandleReapply)
		citizen.Post("/register/reapply-with-changes", h.HandleReapplyWithChanges)
	})

	router.Group(func(validator chi.Router) {
		validator.Use(authmw.RequireAuth(h.jwtValidator, h.logger))
		validator.Use(authmw.RequireRole(h.logger, models.RoleValidator.String(), models.RoleAdmin.String()))
		validator.Get("/validator/queue", h.HandleQueue)
		validator.Get("/validator/application/{id}", h.HandleApplication)
		validator.Post("/validator/application/{id}/reopen", h.HandleReopen)
		validator.Post("/validator/action", h.HandleDecide)
		validator.Get("/validator/history", h.HandleHistory)
	})

	r.Mount("/", router)
}

// HandleStep1 handles POST /register/step1.
func (h *Handler) HandleStep1(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, err := httputil.DecodeJSON[models.Step1Request](r)
	if err != nil {
		h.fail(ctx, w, "step 1 request rejected", err, "request_id", requestID)
		return
	}

	result, err := h.service.RegisterStep1(ctx, req)
	if err != nil {
		h.fail(ctx, w, "step 1 registration failed", err,
			"request_id", requestID,
			"email", req.Email,
		)
		return
	}

	h.logger.InfoContext(ctx, "step 1 registration completed",
		"request_id", requestID,
		"user_id", result.User.ID,
		"application_id", result.Application.ID,
		"reapplication", result.IsReapplication,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	message := "registration started"
	if result.IsReapplication {
		message = "reapplication started"
	}
	h.cookies.Set(w, result.Credentials.AccessToken, result.Credentials.RefreshToken, result.Credentials.ExpiresIn)
	httputil.WriteJSON(w, http.StatusCreated, registrationResponse{
		Message:         message,
		User:            toUserResponse(result.User),
		Token:           result.Credentials.AccessToken,
		IsReapplication: result.IsReapplication,
	})
}

// HandleStep2 handles POST /register/step2.
func (h *Handler) HandleStep2(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	req, err := httputil.DecodeJSON[models.Step2Request](r)
	if err != nil {
		h.fail(ctx, w, "step 2 request rejected", err, "request_id", requestID)
		return
	}

	if err := h.service.RegisterStep2(ctx, userID, req); err != nil {
		h.fail(ctx, w, "step 2 upload failed", err,
			"request_id", requestID,
			"user_id", userID,
		)
		return
	}

	h.logger.InfoContext(ctx, "id card images stored",
		"request_id", requestID,
		"user_id", userID,
	)
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "ID card images uploaded"})
}

// HandleStep3 handles POST /register/step3. The step forces the status to
// pending, so the session is reissued.
func (h *Handler) HandleStep3(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	req, err := httputil.DecodeJSON[models.Step3Request](r)
	if err != nil {
		h.fail(ctx, w, "step 3 request rejected", err, "request_id", requestID)
		return
	}

	result, err := h.service.RegisterStep3(ctx, userID, req)
	if err != nil {
		h.fail(ctx, w, "step 3 submission failed", err,
			"request_id", requestID,
			"user_id", userID,
		)
		return
	}

	h.logger.InfoContext(ctx, "application submitted for review",
		"request_id", requestID,
		"user_id", userID,
		"application_id", result.Application.ID,
	)
	h.cookies.Set(w, result.Credentials.AccessToken, result.Credentials.RefreshToken, result.Credentials.ExpiresIn)
	httputil.WriteJSON(w, http.StatusOK, messageResponse{Message: "application submitted for review"})
}

// HandlePreviousApplication handles GET /register/previous-application.
func (h *Handler) HandlePreviousApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	app, err := h.service.PreviousApplication(ctx, userID)
	if err != nil {
		h.fail(ctx, w, "previous application lookup failed", err,
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
		)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPreviousApplication(app))
}

// HandleReapply handles POST /register/reapply.
func (h *Handler) HandleReapply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	result, err := h.service.Reapply(ctx, userID)
	if err != nil {
		h.fail(ctx, w, "reapplication failed", err,
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
		)
		return
	}
	h.writeSubmission(ctx, w, "application resubmitted for review", result)
}

// HandleReapplyWithChanges handles POST /register/reapply-with-changes.
func (h *Handler) HandleReapplyWithChanges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	req, err := httputil.DecodeJSON[models.ReapplyChangesRequest](r)
	if err != nil {
		h.fail(ctx, w, "reapplication request rejected", err, "request_id", requestID)
		return
	}

	result, err := h.service.ReapplyWithChanges(ctx, userID, req)
	if err != nil {
		h.fail(ctx, w, "reapplication with changes failed", err,
			"request_id", requestID,
			"user_id", userID,
		)
		return
	}
	h.writeSubmission(ctx, w, "application updated and resubmitted for review", result)
}

func (h *Handler) writeSubmission(ctx context.Context, w http.ResponseWriter, message string, result *models.SubmissionResult) {
	h.logger.InfoContext(ctx, message,
		"request_id", requestcontext.RequestID(ctx),
		"user_id", result.User.ID,
		"application_id", result.Application.ID,
	)
	h.cookies.Set(w, result.Credentials.AccessToken, result.Credentials.RefreshToken, result.Credentials.ExpiresIn)
	httputil.WriteJSON(w, http.StatusOK, submissionResponse{
		Message:       message,
		ApplicationID: result.Application.ID,
		User:          toUserResponse(result.User),
		Token:         result.Credentials.AccessToken,
	})
}

// HandleQueue handles GET /validator/queue.
func (h *Handler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := h.service.Queue(ctx)
	if err != nil {
		h.fail(ctx, w, "queue lookup failed", err, "request_id", requestcontext.RequestID(ctx))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toQueue(items))
}

// HandleApplication handles GET /validator/application/{id}.
func (h *Handler) HandleApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	appID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "invalid application id", err, "request_id", requestID)
		return
	}

	item, err := h.service.Application(ctx, appID)
	if err != nil {
		h.fail(ctx, w, "application lookup failed", err,
			"request_id", requestID,
			"application_id", appID,
		)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApplicationDetail(item))
}

// HandleDecide handles POST /validator/action.
func (h *Handler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	reviewer := requestcontext.UserID(ctx)
	start := time.Now()

	req, err := httputil.DecodeJSON[models.DecisionRequest](r)
	if err != nil {
		h.fail(ctx, w, "decision request rejected", err, "request_id", requestID)
		return
	}

	result, err := h.service.Decide(ctx, req)
	if err != nil {
		h.fail(ctx, w, "decision failed", err,
			"request_id", requestID,
			"reviewer_id", reviewer,
			"application_id", req.ApplicationID,
			"action", req.Action,
		)
		return
	}

	h.logger.InfoContext(ctx, "application decided",
		"request_id", requestID,
		"reviewer_id", reviewer,
		"application_id", result.ApplicationID,
		"status", result.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, decisionResponse{
		Message:       "application " + decisionVerb(result.Status),
		ApplicationID: result.ApplicationID,
		Status:        result.Status.String(),
	})
}

// HandleHistory handles GET /validator/history?status=.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := r.URL.Query().Get("status")

	items, err := h.service.History(ctx, status)
	if err != nil {
		h.fail(ctx, w, "history lookup failed", err,
			"request_id", requestcontext.RequestID(ctx),
			"status", status,
		)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toHistory(items))
}

// HandleReopen handles POST /validator/application/{id}/reopen.
func (h *Handler) HandleReopen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	reviewer := requestcontext.UserID(ctx)

	appID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "invalid application id", err, "request_id", requestID)
		return
	}

	result, err := h.service.Reopen(ctx, appID)
	if err != nil {
		h.fail(ctx, w, "reopen failed", err,
			"request_id", requestID,
			"reviewer_id", reviewer,
			"application_id", appID,
		)
		return
	}

	h.logger.InfoContext(ctx, "application reopened",
		"request_id", requestID,
		"reviewer_id", reviewer,
		"application_id", result.ApplicationID,
	)
	httputil.WriteJSON(w, http.StatusOK, decisionResponse{
		Message:       "application reopened for review",
		ApplicationID: result.ApplicationID,
		Status:        result.Status.String(),
	})
}

// fail logs at error level only for internal failures; client mistakes are
// warnings.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, attrs ...any) {
	attrs = append(attrs, "error", err)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

func decisionVerb(status models.Status) string {
	switch status {
	case models.StatusApproved:
		return "approved"
	case models.StatusRejected:
		return "rejected"
	case models.StatusNeedsInfo:
		return "marked as needing more information"
	default:
		return "updated"
	}
}
