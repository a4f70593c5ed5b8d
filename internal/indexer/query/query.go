// Package query answers dashboard reads from the indexer views. Effective
// status is projected at read time with the caller's clock.
package query

import (
	"context"
	"errors"
	"time"

	"receiptledger/internal/indexer/models"
	ledger "receiptledger/internal/ledger/models"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
	"receiptledger/pkg/platform/sentinel"
)

// Views is the read side of the view store.
type Views interface {
	Checkpoint(ctx context.Context) (uint64, error)
	Receipt(ctx context.Context, id domain.ReceiptID) (*models.ReceiptView, error)
	Business(ctx context.Context, owner domain.Account) (*models.BusinessView, error)
	ReceiptsByParty(ctx context.Context, party ledger.Party, account domain.Account) ([]*models.ReceiptView, error)
	ReceiptActivity(ctx context.Context, id domain.ReceiptID) ([]*models.Activity, error)
}

// ReceiptResult pairs a view with its status projected at query time.
type ReceiptResult struct {
	*models.ReceiptView
	EffectiveStatus ledger.Status `json:"effective_status"`
}

type Service struct {
	views Views
}

func New(views Views) *Service {
	return &Service{views: views}
}

func (s *Service) Receipt(ctx context.Context, id domain.ReceiptID, now time.Time) (*ReceiptResult, error) {
	v, err := s.views.Receipt(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "receipt not indexed")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load receipt view")
	}
	return &ReceiptResult{ReceiptView: v, EffectiveStatus: v.EffectiveStatus(now)}, nil
}

func (s *Service) Business(ctx context.Context, owner domain.Account) (*models.BusinessView, error) {
	b, err := s.views.Business(ctx, owner)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotRegistered, "business not indexed")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load business view")
	}
	return b, nil
}

// Receipts lists account's receipts as the given party. When status is set,
// only receipts whose effective status matches are returned.
func (s *Service) Receipts(ctx context.Context, party ledger.Party, account domain.Account, status *ledger.Status, now time.Time) ([]*ReceiptResult, error) {
	views, err := s.views.ReceiptsByParty(ctx, party, account)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list receipt views")
	}
	out := make([]*ReceiptResult, 0, len(views))
	for _, v := range views {
		effective := v.EffectiveStatus(now)
		if status != nil && effective != *status {
			continue
		}
		out = append(out, &ReceiptResult{ReceiptView: v, EffectiveStatus: effective})
	}
	return out, nil
}

// Pending lists issuer's requests that can still be answered.
func (s *Service) Pending(ctx context.Context, issuer domain.Account, now time.Time) ([]*ReceiptResult, error) {
	requested := ledger.StatusRequested
	return s.Receipts(ctx, ledger.PartyIssuer, issuer, &requested, now)
}

// Summary counts account's receipts by effective status.
func (s *Service) Summary(ctx context.Context, party ledger.Party, account domain.Account, now time.Time) (*models.Summary, error) {
	results, err := s.Receipts(ctx, party, account, nil, now)
	if err != nil {
		return nil, err
	}
	sum := &models.Summary{Account: account, ByState: make(map[ledger.Status]int)}
	for _, r := range results {
		sum.Total++
		sum.ByState[r.EffectiveStatus]++
	}
	return sum, nil
}

func (s *Service) Activity(ctx context.Context, id domain.ReceiptID) ([]*models.Activity, error) {
	activity, err := s.views.ReceiptActivity(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load activity")
	}
	return activity, nil
}

func (s *Service) Checkpoint(ctx context.Context) (uint64, error) {
	seq, err := s.views.Checkpoint(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read checkpoint")
	}
	return seq, nil
}
