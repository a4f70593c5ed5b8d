package lifecycle

import (
	"time"

	"receiptledger/internal/ledger/models"
	"receiptledger/internal/ledger/policy"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
)

// AddVerifier grants the verifier capability to account.
func AddVerifier(g *models.Governance, caller, account domain.Account, now time.Time) (*models.Event, error) {
	if !policy.CanManageVerifiers(g, caller) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the owner can manage verifiers")
	}
	if account.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "verifier account is required")
	}
	if g.HasVerifier(account) {
		return nil, dErrors.New(dErrors.CodeWrongState, "account is already a verifier")
	}

	g.Verifiers[account] = now
	g.UpdatedAt = now

	ev := models.NewEvent(models.EventVerifierAdded, caller, now)
	ev.Counterparty = account
	return ev, nil
}

// RemoveVerifier revokes an explicit verifier grant. The owner keeps the
// capability through ownership even after its own grant is removed.
func RemoveVerifier(g *models.Governance, caller, account domain.Account, now time.Time) (*models.Event, error) {
	if !policy.CanManageVerifiers(g, caller) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the owner can manage verifiers")
	}
	if account.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "verifier account is required")
	}
	if !g.HasVerifier(account) {
		return nil, dErrors.New(dErrors.CodeWrongState, "account is not a verifier")
	}

	delete(g.Verifiers, account)
	g.UpdatedAt = now

	ev := models.NewEvent(models.EventVerifierRemoved, caller, now)
	ev.Counterparty = account
	return ev, nil
}

// TransferOwnership hands the owner role to newOwner. The verifier set is untouched.
func TransferOwnership(g *models.Governance, caller, newOwner domain.Account, now time.Time) (*models.Event, error) {
	if !policy.CanTransferOwnership(g, caller) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the owner can transfer ownership")
	}
	if newOwner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "new owner is the zero address")
	}
	if newOwner == g.Owner {
		return nil, dErrors.New(dErrors.CodeWrongState, "account already owns the ledger")
	}

	previous := g.Owner
	g.Owner = newOwner
	g.UpdatedAt = now

	ev := models.NewEvent(models.EventOwnershipTransferred, previous, now)
	ev.Counterparty = newOwner
	return ev, nil
}
