package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, caches and transports return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not rule violations:
// - ErrNotFound: entity does not exist in store
// - ErrAlreadyUsed: unique key (business owner, challenge nonce) already taken
// - ErrExpired: challenge or cached entry has expired
// - ErrInvalidState: stored state does not allow the requested write
// - ErrOutOfOrder: event stream delivered a sequence past the next expected one
// - ErrUnavailable: backing service temporarily unavailable
//
// For ledger rule violations (unauthorized, wrong state, bad input), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrOutOfOrder   = errors.New("out of order")
	ErrUnavailable  = errors.New("unavailable")
)
