package models

import (
	"time"

	"receiptledger/pkg/domain"
)

// MaxBusinessNameLength bounds registered business names.
const MaxBusinessNameLength = 128

// Business is a registered issuer profile keyed by its owner account.
//
// Invariants:
//   - Owner is immutable
//   - Name is non-empty and at most MaxBusinessNameLength characters
//   - businesses are never deleted; deactivation only clears IsActive
type Business struct {
	Owner        domain.Account `json:"owner"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	IsActive     bool           `json:"is_active"`
	IsVerified   bool           `json:"is_verified"`
	RegisteredAt time.Time      `json:"registered_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// CanIssue reports whether the business may issue or receive receipt requests.
func (b *Business) CanIssue() bool {
	return b != nil && b.IsActive
}

func (b *Business) Clone() *Business {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}
