// Package domain holds typed identifiers shared across modules. Typed IDs keep
// a user ID from being passed where a refresh session ID is expected.
package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	dErrors "citizenportal/pkg/domain-errors"
)

// UserID identifies a user account.
type UserID uuid.UUID

// SessionID identifies a refresh session.
type SessionID uuid.UUID

// ApplicationID identifies a verification application row. Applications use
// database sequence numbers rather than UUIDs.
type ApplicationID int64

func (u UserID) String() string    { return uuid.UUID(u).String() }
func (u UserID) IsNil() bool       { return uuid.UUID(u) == uuid.Nil }
func (s SessionID) String() string { return uuid.UUID(s).String() }
func (s SessionID) IsNil() bool    { return uuid.UUID(s) == uuid.Nil }

func (a ApplicationID) String() string { return strconv.FormatInt(int64(a), 10) }
func (a ApplicationID) IsZero() bool   { return a <= 0 }

// NewUserID returns a random user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewSessionID returns a random session ID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

func parseUUID(kind, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, kind+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid "+kind)
	}
	return parsed, nil
}

// ParseUserID parses a non-nil UUID user ID.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID("user id", raw)
	return UserID(parsed), err
}

// ParseSessionID parses a non-nil UUID session ID.
func ParseSessionID(raw string) (SessionID, error) {
	parsed, err := parseUUID("session id", raw)
	return SessionID(parsed), err
}

// ParseApplicationID parses a positive decimal application ID.
func ParseApplicationID(raw string) (ApplicationID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, dErrors.New(dErrors.CodeBadRequest, "application id is required")
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid application id")
	}
	return ApplicationID(n), nil
}
