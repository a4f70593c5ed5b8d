// Package store persists indexer views: in memory for single-process runs and
// in Postgres for durable deployments.
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"receiptledger/internal/indexer/models"
	ledger "receiptledger/internal/ledger/models"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
	"receiptledger/pkg/platform/sentinel"
)

// InMemory keeps every view in maps guarded by one lock.
type InMemory struct {
	mu          sync.RWMutex
	checkpoint  uint64
	receipts    map[domain.ReceiptID]*models.ReceiptView
	byRecipient map[domain.Account][]domain.ReceiptID
	byIssuer    map[domain.Account][]domain.ReceiptID
	businesses  map[domain.Account]*models.BusinessView
	activity    map[domain.ReceiptID][]*models.Activity
	seen        map[uuid.UUID]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		receipts:    make(map[domain.ReceiptID]*models.ReceiptView),
		byRecipient: make(map[domain.Account][]domain.ReceiptID),
		byIssuer:    make(map[domain.Account][]domain.ReceiptID),
		businesses:  make(map[domain.Account]*models.BusinessView),
		activity:    make(map[domain.ReceiptID][]*models.Activity),
		seen:        make(map[uuid.UUID]struct{}),
	}
}

func (s *InMemory) Checkpoint(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkpoint, nil
}

func (s *InMemory) Receipt(_ context.Context, id domain.ReceiptID) (*models.ReceiptView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.receipts[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return v.Clone(), nil
}

func (s *InMemory) Business(_ context.Context, owner domain.Account) (*models.BusinessView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.businesses[owner]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return v.Clone(), nil
}

// Commit applies c if it is the next sequence. Already applied sequences
// return sentinel.ErrAlreadyUsed and gaps return sentinel.ErrOutOfOrder.
func (s *InMemory) Commit(_ context.Context, c *models.Changes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Sequence <= s.checkpoint {
		return sentinel.ErrAlreadyUsed
	}
	if c.Sequence != s.checkpoint+1 {
		return sentinel.ErrOutOfOrder
	}

	if r := c.Receipt; r != nil {
		if _, exists := s.receipts[r.ID]; !exists {
			s.byRecipient[r.Recipient] = append(s.byRecipient[r.Recipient], r.ID)
			s.byIssuer[r.Issuer] = append(s.byIssuer[r.Issuer], r.ID)
		}
		s.receipts[r.ID] = r.Clone()
	}
	if b := c.Business; b != nil {
		s.businesses[b.Owner] = b.Clone()
	}
	if a := c.Activity; a != nil {
		if _, dup := s.seen[a.EventID]; !dup {
			s.seen[a.EventID] = struct{}{}
			c := *a
			s.activity[a.ReceiptID] = append(s.activity[a.ReceiptID], &c)
		}
	}
	s.checkpoint = c.Sequence
	return nil
}

// ReceiptsByParty lists views where account is the given party, in id order.
func (s *InMemory) ReceiptsByParty(_ context.Context, party ledger.Party, account domain.Account) ([]*models.ReceiptView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []domain.ReceiptID
	switch party {
	case ledger.PartyRecipient:
		ids = s.byRecipient[account]
	case ledger.PartyIssuer:
		ids = s.byIssuer[account]
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown party")
	}
	out := make([]*models.ReceiptView, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.receipts[id].Clone())
	}
	return out, nil
}

// ReceiptActivity lists the events indexed for a receipt, in sequence order.
func (s *InMemory) ReceiptActivity(_ context.Context, id domain.ReceiptID) ([]*models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Activity, 0, len(s.activity[id]))
	for _, a := range s.activity[id] {
		c := *a
		out = append(out, &c)
	}
	return out, nil
}
