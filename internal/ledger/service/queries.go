package service

import (
	"context"
	"errors"

	"receiptledger/internal/ledger/models"
	"receiptledger/internal/ledger/policy"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
	"receiptledger/pkg/platform/sentinel"
)

// GetReceipt returns the stored receipt. Callers project the effective status
// with Receipt.EffectiveStatus at read time.
func (s *Service) GetReceipt(ctx context.Context, id domain.ReceiptID) (*models.Receipt, error) {
	return loadReceipt(ctx, s.ledger.Stores(), id)
}

// GetBusiness returns account's business profile.
func (s *Service) GetBusiness(ctx context.Context, account domain.Account) (*models.Business, error) {
	b, err := s.ledger.Stores().Businesses.FindByOwner(ctx, account)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotRegistered, "business not registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load business")
	}
	return b, nil
}

// ReceiptsOf lists receipts where account is the recipient, in creation order.
func (s *Service) ReceiptsOf(ctx context.Context, account domain.Account) ([]domain.ReceiptID, error) {
	return s.listIDs(ctx, models.PartyRecipient, account)
}

// IssuedBy lists receipts issued by business, in creation order.
func (s *Service) IssuedBy(ctx context.Context, business domain.Account) ([]domain.ReceiptID, error) {
	return s.listIDs(ctx, models.PartyIssuer, business)
}

func (s *Service) listIDs(ctx context.Context, party models.Party, account domain.Account) ([]domain.ReceiptID, error) {
	ids, err := s.ledger.Stores().Receipts.ListIDs(ctx, party, account)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list receipts")
	}
	return nonNil(ids), nil
}

// PendingFor lists issuer's receipts whose stored status is Requested, in
// creation order. Lapsed requests stay listed until cancelled; callers that
// need the projection check EffectiveStatus per receipt.
func (s *Service) PendingFor(ctx context.Context, issuer domain.Account) ([]domain.ReceiptID, error) {
	ids, err := s.ledger.Stores().Receipts.PendingIDs(ctx, issuer)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending receipts")
	}
	return nonNil(ids), nil
}

// TotalReceipts returns how many receipts were ever created.
func (s *Service) TotalReceipts(ctx context.Context) (uint64, error) {
	n, err := s.ledger.Stores().Receipts.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count receipts")
	}
	return n, nil
}

// IsAuthorizedVerifier reports whether account is in the verifier set.
func (s *Service) IsAuthorizedVerifier(ctx context.Context, account domain.Account) (bool, error) {
	g, err := loadGovernance(ctx, s.ledger.Stores())
	if err != nil {
		return false, err
	}
	return policy.IsAuthorizedVerifier(g, account), nil
}

// Owner returns the current ledger owner.
func (s *Service) Owner(ctx context.Context) (domain.Account, error) {
	g, err := loadGovernance(ctx, s.ledger.Stores())
	if err != nil {
		return domain.Account{}, err
	}
	return g.Owner, nil
}

// Verifiers returns the verifier set in address order.
func (s *Service) Verifiers(ctx context.Context) ([]domain.Account, error) {
	g, err := loadGovernance(ctx, s.ledger.Stores())
	if err != nil {
		return nil, err
	}
	return g.VerifierList(), nil
}

func nonNil(ids []domain.ReceiptID) []domain.ReceiptID {
	if ids == nil {
		return []domain.ReceiptID{}
	}
	return ids
}
