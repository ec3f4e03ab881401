// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them. Keeping the package free of
// net/http lets services depend on it without pulling in transport code.
//
// Usage in services:
//
//	userID := requestcontext.UserID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "Mozilla/5.0")
package requestcontext

import (
	"context"
	"time"

	id "citizenportal/pkg/domain"
)

type (
	userIDKey             struct{}
	roleKey               struct{}
	verificationStatusKey struct{}
	tokenIDKey            struct{}
	clientIPKey           struct{}
	userAgentKey          struct{}
	requestIDKey          struct{}
	requestTimeKey        struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyUserID             = userIDKey{}
	ContextKeyRole               = roleKey{}
	ContextKeyVerificationStatus = verificationStatusKey{}
	ContextKeyTokenID            = tokenIDKey{}
	ContextKeyClientIP           = clientIPKey{}
	ContextKeyUserAgent          = userAgentKey{}
	ContextKeyRequestID          = requestIDKey{}
	ContextKeyRequestTime        = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Identity (populated from access token claims)
// -----------------------------------------------------------------------------

// UserID retrieves the authenticated user ID. Returns the nil ID if unset.
func UserID(ctx context.Context) id.UserID {
	if userID, ok := ctx.Value(ContextKeyUserID).(id.UserID); ok {
		return userID
	}
	return id.UserID{}
}

// WithUserID injects a user ID into the context.
func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// Role retrieves the role claim of the authenticated caller.
func Role(ctx context.Context) string {
	if role, ok := ctx.Value(ContextKeyRole).(string); ok {
		return role
	}
	return ""
}

// VerificationStatus retrieves the verification status claim carried by the
// caller's access token. It reflects the last transition the token was issued
// for, not necessarily the current row.
func VerificationStatus(ctx context.Context) string {
	if status, ok := ctx.Value(ContextKeyVerificationStatus).(string); ok {
		return status
	}
	return ""
}

// TokenID retrieves the jti of the access token used for the request.
func TokenID(ctx context.Context) string {
	if jti, ok := ctx.Value(ContextKeyTokenID).(string); ok {
		return jti
	}
	return ""
}

// WithIdentity injects every identity claim in one call.
func WithIdentity(ctx context.Context, userID id.UserID, role, verificationStatus, tokenID string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyUserID, userID)
	ctx = context.WithValue(ctx, ContextKeyRole, role)
	ctx = context.WithValue(ctx, ContextKeyVerificationStatus, verificationStatus)
	ctx = context.WithValue(ctx, ContextKeyTokenID, tokenID)
	return ctx
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() outside HTTP requests (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
