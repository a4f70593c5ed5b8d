package models

import (
	"strings"

	dErrors "receiptledger/pkg/domain-errors"
)

// Status is the persisted lifecycle state of a receipt. The numeric values are
// stable and shared with storage and the event stream.
type Status uint8

const (
	StatusRequested Status = iota
	StatusApproved
	StatusRejected
	StatusVerified
	StatusDisputed
	StatusCancelled
	// StatusExpired is never stored; it is the read-time projection of a
	// Requested receipt whose deadline has passed.
	StatusExpired
)

var statusNames = map[Status]string{
	StatusRequested: "requested",
	StatusApproved:  "approved",
	StatusRejected:  "rejected",
	StatusVerified:  "verified",
	StatusDisputed:  "disputed",
	StatusCancelled: "cancelled",
	StatusExpired:   "expired",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseStatus accepts the lowercase names above.
func ParseStatus(s string) (Status, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for status, name := range statusNames {
		if name == s {
			return status, nil
		}
	}
	return 0, dErrors.New(dErrors.CodeInvalidInput, "unknown receipt status")
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IsTerminal reports states with no outgoing transitions.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusDisputed
}

// CanTransitionTo encodes the lifecycle graph:
//
//	Requested -> Approved | Rejected | Cancelled | Verified (direct issue)
//	Approved  -> Verified | Disputed
//	Verified  -> Disputed
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusRequested:
		return next == StatusApproved || next == StatusRejected || next == StatusCancelled || next == StatusVerified
	case StatusApproved:
		return next == StatusVerified || next == StatusDisputed
	case StatusVerified:
		return next == StatusDisputed
	default:
		return false
	}
}
