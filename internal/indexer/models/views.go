// Package models holds the read-side views the indexer builds from ledger events.
package models

import (
	"time"

	"github.com/google/uuid"

	ledger "receiptledger/internal/ledger/models"
	"receiptledger/pkg/domain"
)

// ReceiptView is the indexed state of one receipt. Status is the last stored
// status; the Expired projection is computed at query time.
type ReceiptView struct {
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
	Status          ledger.Status    `json:"status"`
	Origin          ledger.Origin    `json:"origin"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	DisputeReason   string           `json:"dispute_reason,omitempty"`
	LastActor       domain.Account   `json:"last_actor"`
	LastEventID     uuid.UUID        `json:"last_event_id"`
	LastSequence    uint64           `json:"last_sequence"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// EffectiveStatus projects Expired for a lapsed request.
func (v *ReceiptView) EffectiveStatus(now time.Time) ledger.Status {
	return ledger.EffectiveStatus(v.Status, v.Deadline, now)
}

func (v *ReceiptView) Clone() *ReceiptView {
	c := *v
	return &c
}

// BusinessView is the indexed business profile.
type BusinessView struct {
	Owner        domain.Account `json:"owner"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	IsActive     bool           `json:"is_active"`
	IsVerified   bool           `json:"is_verified"`
	RegisteredAt time.Time      `json:"registered_at"`
	LastSequence uint64         `json:"last_sequence"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (v *BusinessView) Clone() *BusinessView {
	c := *v
	return &c
}

// Activity is one indexed event. EventID is unique, so replays never add rows.
type Activity struct {
	EventID      uuid.UUID        `json:"event_id"`
	Sequence     uint64           `json:"sequence"`
	Kind         ledger.EventKind `json:"kind"`
	ReceiptID    domain.ReceiptID `json:"receipt_id,omitempty"`
	Business     domain.Account   `json:"business"`
	Actor        domain.Account   `json:"actor"`
	Counterparty domain.Account   `json:"counterparty"`
	Reason       string           `json:"reason,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

// Changes is everything one event does to the views. Stores apply it together
// with the checkpoint advance, or not at all.
type Changes struct {
	Sequence uint64
	Activity *Activity
	Receipt  *ReceiptView
	Business *BusinessView
}

// Summary counts a party's receipts by effective status.
type Summary struct {
	Account domain.Account        `json:"account"`
	Total   int                   `json:"total"`
	ByState map[ledger.Status]int `json:"by_status"`
}
