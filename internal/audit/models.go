package audit

import (
	"time"

	"github.com/google/uuid"

	id "citizenportal/pkg/domain"
)

// Event is emitted after a state change commits. Keep it transport-agnostic
// so stores and sinks can fan out.
type Event struct {
	ID            uuid.UUID
	Action        string
	UserID        id.UserID
	ActorID       id.UserID
	ApplicationID id.ApplicationID
	Status        string
	Reason        string
	RequestID     string
	Timestamp     time.Time
}

const (
	// Verification events
	EventRegistrationSubmitted  = "registration_submitted"
	EventReapplicationSubmitted = "reapplication_submitted"
	EventDocumentsSubmitted     = "documents_submitted"
	EventBiometricsSubmitted    = "biometrics_submitted"
	EventApplicationResubmitted = "application_resubmitted"
	EventApplicationDecided     = "application_decided"
	EventApplicationReopened    = "application_reopened"

	// Session events
	EventLoginSucceeded        = "login_succeeded"
	EventLoginFailed           = "login_failed"
	EventTokenRefreshed        = "token_refreshed"
	EventRefreshReplayDetected = "refresh_replay_detected"
	EventSessionRevoked        = "session_revoked"
)
