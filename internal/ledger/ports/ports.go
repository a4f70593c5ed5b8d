// Package ports declares the storage boundary of the ledger. Services depend on
// these interfaces; internal/ledger/store provides the in-memory and Postgres
// implementations.
package ports

import (
	"context"

	"receiptledger/internal/ledger/models"
	"receiptledger/pkg/domain"
)

// BusinessStore persists business profiles keyed by owner account.
type BusinessStore interface {
	// Create returns sentinel.ErrAlreadyUsed when the owner already has a profile.
	Create(ctx context.Context, b *models.Business) error
	// FindByOwner returns sentinel.ErrNotFound when absent.
	FindByOwner(ctx context.Context, owner domain.Account) (*models.Business, error)
	Update(ctx context.Context, b *models.Business) error
}

// ReceiptStore persists receipts and answers the per-party index queries.
type ReceiptStore interface {
	// NextID returns the id the next Create must use. Ids start at 1 and are never reused.
	NextID(ctx context.Context) (domain.ReceiptID, error)
	Create(ctx context.Context, r *models.Receipt) error
	// FindByID returns sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, id domain.ReceiptID) (*models.Receipt, error)
	Update(ctx context.Context, r *models.Receipt) error
	// ListIDs returns ids where account is the given party, in creation order.
	ListIDs(ctx context.Context, party models.Party, account domain.Account) ([]domain.ReceiptID, error)
	// PendingIDs returns ids issued by issuer whose stored status is Requested, in creation order.
	PendingIDs(ctx context.Context, issuer domain.Account) ([]domain.ReceiptID, error)
	Count(ctx context.Context) (uint64, error)
}

// GovernanceStore holds the single governance record.
type GovernanceStore interface {
	Load(ctx context.Context) (*models.Governance, error)
	Save(ctx context.Context, g *models.Governance) error
}

// EventLog is the append-only ledger log. Append assigns the next sequence to ev.
type EventLog interface {
	Append(ctx context.Context, ev *models.Event) error
}

// Outbox is the consumer side of the event log used by the relay.
type Outbox interface {
	// Unpublished returns up to limit events not yet published, in sequence order.
	Unpublished(ctx context.Context, limit int) ([]*models.Event, error)
	// MarkPublished records that every event up to and including sequence was published.
	MarkPublished(ctx context.Context, through uint64) error
}

// Stores groups the stores visible to one unit of work.
type Stores struct {
	Businesses BusinessStore
	Receipts   ReceiptStore
	Governance GovernanceStore
	Events     EventLog
}

// LedgerTx is the single-writer boundary. fn sees a consistent view; when it
// returns an error nothing it wrote is kept.
type LedgerTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}
