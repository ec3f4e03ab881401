package testutil

import (
	"net/http"
	"time"

	id "citizenportal/pkg/domain"
	"citizenportal/pkg/requestcontext"
)

// WithIdentity simulates what the auth middleware does for an authenticated
// request. An invalid userID leaves the request anonymous.
func WithIdentity(req *http.Request, userID, role, verificationStatus string) *http.Request {
	parsed, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	ctx := requestcontext.WithIdentity(req.Context(), parsed, role, verificationStatus, "")
	return req.WithContext(ctx)
}

// WithTime pins the request clock.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
