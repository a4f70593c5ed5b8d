package models

import (
	"time"

	"receiptledger/pkg/domain"
)

// Origin records which flow created a receipt.
type Origin string

const (
	// OriginRequest is a customer-initiated request awaiting the issuer's decision.
	OriginRequest Origin = "request"
	// OriginDirect is a receipt issued by the business, awaiting the recipient's confirmation.
	OriginDirect Origin = "direct"
)

func (o Origin) IsValid() bool {
	return o == OriginRequest || o == OriginDirect
}

// Receipt is the aggregate root of the lifecycle.
//
// Invariants:
//   - Issuer != Recipient
//   - Amount > 0
//   - once Status leaves Requested it never returns
//   - RejectionReason is set iff Status == Rejected
//   - DisputeReason is set iff Status == Disputed
//   - receipts are never deleted
type Receipt struct {
	ID              domain.ReceiptID `json:"id"`
	Issuer          domain.Account   `json:"issuer"`
	Recipient       domain.Account   `json:"recipient"`
	VendorName      string           `json:"vendor_name"`
	Description     string           `json:"description"`
	Amount          domain.Amount    `json:"amount"`
	DocumentRef     string           `json:"document_ref,omitempty"`
	TransactionDate time.Time        `json:"transaction_date"`
	RequestedAt     time.Time        `json:"requested_at"`
	Deadline        time.Time        `json:"deadline"`
	Status          Status           `json:"status"`
	Origin          Origin           `json:"origin"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	DisputeReason   string           `json:"dispute_reason,omitempty"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// IsExpired reports whether a pending receipt has passed its deadline.
func (r *Receipt) IsExpired(now time.Time) bool {
	return r.Status == StatusRequested && now.After(r.Deadline)
}

// EffectiveStatus is the status a reader sees at now: Expired for a pending
// receipt past its deadline, the stored status otherwise.
func (r *Receipt) EffectiveStatus(now time.Time) Status {
	return EffectiveStatus(r.Status, r.Deadline, now)
}

// EffectiveStatus projects a stored status and deadline onto now.
func EffectiveStatus(stored Status, deadline, now time.Time) Status {
	if stored == StatusRequested && now.After(deadline) {
		return StatusExpired
	}
	return stored
}

// Originator is the party that created the record: the recipient for a
// request, the issuer for a direct issue.
func (r *Receipt) Originator() domain.Account {
	if r.Origin == OriginDirect {
		return r.Issuer
	}
	return r.Recipient
}

// IsParty reports whether a is the issuer or the recipient.
func (r *Receipt) IsParty(a domain.Account) bool {
	return a == r.Issuer || a == r.Recipient
}

// Clone returns a copy safe to mutate.
func (r *Receipt) Clone() *Receipt {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
