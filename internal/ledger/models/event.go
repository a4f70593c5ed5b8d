package models

import (
	"time"

	"github.com/google/uuid"

	"receiptledger/pkg/domain"
)

// EventKind names a domain event emitted by a successful transition.
type EventKind string

const (
	EventBusinessRegistered   EventKind = "BusinessRegistered"
	EventBusinessVerified     EventKind = "BusinessVerified"
	EventBusinessDeactivated  EventKind = "BusinessDeactivated"
	EventReceiptRequested     EventKind = "ReceiptRequested"
	EventReceiptCreated       EventKind = "ReceiptCreated"
	EventReceiptApproved      EventKind = "ReceiptApproved"
	EventReceiptRejected      EventKind = "ReceiptRejected"
	EventReceiptVerified      EventKind = "ReceiptVerified"
	EventReceiptDisputed      EventKind = "ReceiptDisputed"
	EventReceiptCancelled     EventKind = "ReceiptCancelled"
	EventOwnershipTransferred EventKind = "OwnershipTransferred"
	EventVerifierAdded        EventKind = "VerifierAdded"
	EventVerifierRemoved      EventKind = "VerifierRemoved"
)

// IsReceiptEvent reports kinds that carry a receipt id.
func (k EventKind) IsReceiptEvent() bool {
	switch k {
	case EventReceiptRequested, EventReceiptCreated, EventReceiptApproved, EventReceiptRejected,
		EventReceiptVerified, EventReceiptDisputed, EventReceiptCancelled:
		return true
	}
	return false
}

// Event is one entry of the append-only ledger log.
//
// ID is assigned when the event is built; Sequence is assigned by the log on
// append and is strictly increasing without gaps. Creation events carry a full
// receipt snapshot and registration events the business profile so consumers
// can build views from the log alone.
type Event struct {
	ID           uuid.UUID        `json:"id"`
	Sequence     uint64           `json:"sequence"`
	Kind         EventKind        `json:"kind"`
	Timestamp    time.Time        `json:"timestamp"`
	Actor        domain.Account   `json:"actor"`
	ReceiptID    domain.ReceiptID `json:"receipt_id,omitempty"`
	Business     domain.Account   `json:"business"`
	Counterparty domain.Account   `json:"counterparty"`
	Reason       string           `json:"reason,omitempty"`
	Receipt      *ReceiptSnapshot `json:"receipt,omitempty"`
	Profile      *BusinessProfile `json:"profile,omitempty"`
}

// ReceiptSnapshot is the receipt state at creation.
type ReceiptSnapshot struct {
	Issuer          domain.Account `json:"issuer"`
	Recipient       domain.Account `json:"recipient"`
	VendorName      string         `json:"vendor_name"`
	Description     string         `json:"description"`
	Amount          domain.Amount  `json:"amount"`
	DocumentRef     string         `json:"document_ref,omitempty"`
	TransactionDate time.Time      `json:"transaction_date"`
	RequestedAt     time.Time      `json:"requested_at"`
	Deadline        time.Time      `json:"deadline"`
	Origin          Origin         `json:"origin"`
}

// BusinessProfile is the registered profile carried by BusinessRegistered.
type BusinessProfile struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewEvent builds an event with a fresh id. Sequence is left for the log.
func NewEvent(kind EventKind, actor domain.Account, now time.Time) *Event {
	return &Event{
		ID:        uuid.New(),
		Kind:      kind,
		Timestamp: now,
		Actor:     actor,
	}
}

// SnapshotOf captures r for a creation event.
func SnapshotOf(r *Receipt) *ReceiptSnapshot {
	return &ReceiptSnapshot{
		Issuer:          r.Issuer,
		Recipient:       r.Recipient,
		VendorName:      r.VendorName,
		Description:     r.Description,
		Amount:          r.Amount,
		DocumentRef:     r.DocumentRef,
		TransactionDate: r.TransactionDate,
		RequestedAt:     r.RequestedAt,
		Deadline:        r.Deadline,
		Origin:          r.Origin,
	}
}
