package service

import (
	"context"
	"errors"
	"time"

	"receiptledger/internal/ledger/lifecycle"
	"receiptledger/internal/ledger/models"
	"receiptledger/internal/ledger/ports"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
	"receiptledger/pkg/platform/sentinel"
)

// RegisterBusiness creates the caller's business profile, active and unverified.
func (s *Service) RegisterBusiness(ctx context.Context, caller domain.Account, name, description string) (*models.Business, error) {
	var out *models.Business
	_, err := s.apply(ctx, "register_business", caller, func(ctx context.Context, stores ports.Stores, now time.Time) (*models.Event, error) {
		existing, err := findBusiness(ctx, stores, caller)
		if err != nil {
			return nil, err
		}
		b, ev, err := lifecycle.RegisterBusiness(existing, caller, name, description, now)
		if err != nil {
			return nil, err
		}
		if err := stores.Businesses.Create(ctx, b); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return nil, dErrors.New(dErrors.CodeAlreadyRegistered, "business already registered")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create business")
		}
		out = b
		return ev, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyBusiness marks target's profile verified. The caller must hold the
// verifier capability.
func (s *Service) VerifyBusiness(ctx context.Context, caller, target domain.Account) (*models.Business, error) {
	var out *models.Business
	_, err := s.apply(ctx, "verify_business", caller, func(ctx context.Context, stores ports.Stores, now time.Time) (*models.Event, error) {
		g, err := loadGovernance(ctx, stores)
		if err != nil {
			return nil, err
		}
		b, err := findBusiness(ctx, stores, target)
		if err != nil {
			return nil, err
		}
		ev, err := lifecycle.VerifyBusiness(g, b, caller, target, now)
		if err != nil {
			return nil, err
		}
		if err := saveBusiness(ctx, stores, b); err != nil {
			return nil, err
		}
		out = b
		return ev, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeactivateBusiness stops target from issuing new receipts. Owner only.
func (s *Service) DeactivateBusiness(ctx context.Context, caller, target domain.Account) (*models.Business, error) {
	var out *models.Business
	_, err := s.apply(ctx, "deactivate_business", caller, func(ctx context.Context, stores ports.Stores, now time.Time) (*models.Event, error) {
		g, err := loadGovernance(ctx, stores)
		if err != nil {
			return nil, err
		}
		b, err := findBusiness(ctx, stores, target)
		if err != nil {
			return nil, err
		}
		ev, err := lifecycle.DeactivateBusiness(g, b, caller, target, now)
		if err != nil {
			return nil, err
		}
		if err := saveBusiness(ctx, stores, b); err != nil {
			return nil, err
		}
		out = b
		return ev, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddVerifier grants the verifier capability to account. Owner only.
func (s *Service) AddVerifier(ctx context.Context, caller, account domain.Account) error {
	return s.governanceChange(ctx, "add_verifier", caller, func(g *models.Governance, now time.Time) (*models.Event, error) {
		return lifecycle.AddVerifier(g, caller, account, now)
	})
}

// RemoveVerifier revokes account's verifier grant. Owner only.
func (s *Service) RemoveVerifier(ctx context.Context, caller, account domain.Account) error {
	return s.governanceChange(ctx, "remove_verifier", caller, func(g *models.Governance, now time.Time) (*models.Event, error) {
		return lifecycle.RemoveVerifier(g, caller, account, now)
	})
}

// TransferOwnership hands the owner role to newOwner. Owner only.
func (s *Service) TransferOwnership(ctx context.Context, caller, newOwner domain.Account) error {
	return s.governanceChange(ctx, "transfer_ownership", caller, func(g *models.Governance, now time.Time) (*models.Event, error) {
		return lifecycle.TransferOwnership(g, caller, newOwner, now)
	})
}

func (s *Service) governanceChange(ctx context.Context, operation string, caller domain.Account, change func(*models.Governance, time.Time) (*models.Event, error)) error {
	_, err := s.apply(ctx, operation, caller, func(ctx context.Context, stores ports.Stores, now time.Time) (*models.Event, error) {
		g, err := loadGovernance(ctx, stores)
		if err != nil {
			return nil, err
		}
		ev, err := change(g, now)
		if err != nil {
			return nil, err
		}
		if err := saveGovernance(ctx, stores, g); err != nil {
			return nil, err
		}
		return ev, nil
	})
	return err
}
