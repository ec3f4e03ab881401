package sentinel

import "errors"

// Stores return these (optionally wrapped) so services can translate storage
// facts into domain errors without knowing which backend produced them.
//
// Validation failures never use sentinels; they are built with
// pkg/domain-errors directly in the service layer.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrAlreadyUsed = errors.New("already used")
	ErrRevoked     = errors.New("revoked")
	ErrUnavailable = errors.New("unavailable")
)
