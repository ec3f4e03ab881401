package models

import (
	dErrors "citizenportal/pkg/domain-errors"
)

// Status is the verification state shared by users and applications.
type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusNeedsInfo Status = "needs_info"
)

// transitions lists every legal forward move. Anything absent is illegal.
//
//	none       -> pending
//	pending    -> approved | rejected | needs_info
//	rejected   -> pending
//	needs_info -> pending | approved | rejected
var transitions = map[Status][]Status{
	StatusNone:      {StatusPending},
	StatusPending:   {StatusApproved, StatusRejected, StatusNeedsInfo},
	StatusRejected:  {StatusPending},
	StatusNeedsInfo: {StatusPending, StatusApproved, StatusRejected},
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown status: "+raw)
	}
	return s, nil
}

func (s Status) IsValid() bool {
	switch s {
	case StatusNone, StatusPending, StatusApproved, StatusRejected, StatusNeedsInfo:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// IsDecided reports whether a validator has ruled on the status.
func (s Status) IsDecided() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusNeedsInfo
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanReopen reports whether a validator may send a decided application back
// to the queue. This is the only way out of approved.
func (s Status) CanReopen() bool {
	return s.IsDecided()
}

// Role is the account role claim.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleValidator Role = "validator"
	RoleCitizen   Role = "citizen"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleValidator || r == RoleCitizen
}

func (r Role) String() string {
	return string(r)
}

// Action is a validator decision.
type Action string

const (
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionRequestInfo Action = "request_info"
)

// TargetStatus returns the status a decision moves an application to.
func (a Action) TargetStatus() (Status, bool) {
	switch a {
	case ActionApprove:
		return StatusApproved, true
	case ActionReject:
		return StatusRejected, true
	case ActionRequestInfo:
		return StatusNeedsInfo, true
	}
	return "", false
}
