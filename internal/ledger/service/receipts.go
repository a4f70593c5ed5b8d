package service

import (
	"context"
	"time"

	"receiptledger/internal/ledger/lifecycle"
	"receiptledger/internal/ledger/models"
	"receiptledger/internal/ledger/ports"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
)

// RequestReceipt records customer's request for a receipt from issuer. The
// issuer has the request window to approve or reject it.
func (s *Service) RequestReceipt(ctx context.Context, customer, issuer domain.Account, details models.ReceiptDetails) (*models.Receipt, error) {
	return s.create(ctx, "request_receipt", customer, issuer, func(b *models.Business, id domain.ReceiptID, now time.Time) (*models.Receipt, *models.Event, error) {
		return lifecycle.Request(b, issuer, customer, details, id, now, s.requestWindow)
	})
}

// IssueReceipt records a receipt the calling business issues to customer
// without a prior request. It awaits the customer's verification.
func (s *Service) IssueReceipt(ctx context.Context, issuer, customer domain.Account, details models.ReceiptDetails) (*models.Receipt, error) {
	return s.create(ctx, "issue_receipt", issuer, issuer, func(b *models.Business, id domain.ReceiptID, now time.Time) (*models.Receipt, *models.Event, error) {
		return lifecycle.IssueDirect(b, issuer, customer, details, id, now, s.requestWindow)
	})
}

type creation func(b *models.Business, id domain.ReceiptID, now time.Time) (*models.Receipt, *models.Event, error)

func (s *Service) create(ctx context.Context, operation string, caller, issuer domain.Account, build creation) (*models.Receipt, error) {
	var out *models.Receipt
	_, err := s.apply(ctx, operation, caller, func(ctx context.Context, stores ports.Stores, now time.Time) (*models.Event, error) {
		b, err := findBusiness(ctx, stores, issuer)
		if err != nil {
			return nil, err
		}
		id, err := stores.Receipts.NextID(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate receipt id")
		}
		r, ev, err := build(b, id, now)
		if err != nil {
			return nil, err
		}
		if err := stores.Receipts.Create(ctx, r); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create receipt")
		}
		out = r
		return ev, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Approve accepts a pending request. Issuer only.
func (s *Service) Approve(ctx context.Context, caller domain.Account, id domain.ReceiptID) (*models.Receipt, error) {
	return s.change(ctx, "approve_receipt", caller, id, func(_ *models.Governance, r *models.Receipt, now time.Time) (*models.Event, error) {
		return lifecycle.Approve(r, caller, now)
	})
}

// Reject declines a pending request with a reason. Issuer only.
func (s *Service) Reject(ctx context.Context, caller domain.Account, id domain.ReceiptID, reason string) (*models.Receipt, error) {
	return s.change(ctx, "reject_receipt", caller, id, func(_ *models.Governance, r *models.Receipt, now time.Time) (*models.Event, error) {
		return lifecycle.Reject(r, caller, reason, now)
	})
}

// Verify confirms a receipt. The recipient or an authorized verifier may verify.
func (s *Service) Verify(ctx context.Context, caller domain.Account, id domain.ReceiptID) (*models.Receipt, error) {
	return s.change(ctx, "verify_receipt", caller, id, func(g *models.Governance, r *models.Receipt, now time.Time) (*models.Event, error) {
		return lifecycle.Verify(g, r, caller, now)
	})
}

// Dispute contests an approved or verified receipt. Either party may dispute.
func (s *Service) Dispute(ctx context.Context, caller domain.Account, id domain.ReceiptID, reason string) (*models.Receipt, error) {
	return s.change(ctx, "dispute_receipt", caller, id, func(_ *models.Governance, r *models.Receipt, now time.Time) (*models.Event, error) {
		return lifecycle.Dispute(r, caller, reason, now)
	})
}

// Cancel withdraws a pending receipt. Originator only.
func (s *Service) Cancel(ctx context.Context, caller domain.Account, id domain.ReceiptID) (*models.Receipt, error) {
	return s.change(ctx, "cancel_receipt", caller, id, func(_ *models.Governance, r *models.Receipt, now time.Time) (*models.Event, error) {
		return lifecycle.Cancel(r, caller, now)
	})
}

type receiptChange func(g *models.Governance, r *models.Receipt, now time.Time) (*models.Event, error)

func (s *Service) change(ctx context.Context, operation string, caller domain.Account, id domain.ReceiptID, fn receiptChange) (*models.Receipt, error) {
	var out *models.Receipt
	_, err := s.apply(ctx, operation, caller, func(ctx context.Context, stores ports.Stores, now time.Time) (*models.Event, error) {
		g, err := loadGovernance(ctx, stores)
		if err != nil {
			return nil, err
		}
		r, err := loadReceipt(ctx, stores, id)
		if err != nil {
			return nil, err
		}
		ev, err := fn(g, r, now)
		if err != nil {
			return nil, err
		}
		if err := saveReceipt(ctx, stores, r); err != nil {
			return nil, err
		}
		out = r
		return ev, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
