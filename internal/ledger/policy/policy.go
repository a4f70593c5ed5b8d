// Package policy answers "may this account do this" over explicit ledger state.
// Every function is pure: no I/O, no mutation, same answer for the same inputs.
package policy

import (
	"receiptledger/internal/ledger/models"
	"receiptledger/pkg/domain"
)

// IsOwner reports whether a is the ledger owner.
func IsOwner(g *models.Governance, a domain.Account) bool {
	return g != nil && !a.IsZero() && g.Owner == a
}

// IsAuthorizedVerifier reports membership in the verifier set.
func IsAuthorizedVerifier(g *models.Governance, a domain.Account) bool {
	return g != nil && !a.IsZero() && g.HasVerifier(a)
}

// CanVerify is the single verifier capability check: the owner or an authorized verifier.
func CanVerify(g *models.Governance, a domain.Account) bool {
	return IsOwner(g, a) || IsAuthorizedVerifier(g, a)
}

// CanIssue reports whether b exists and is active.
func CanIssue(b *models.Business) bool {
	return b.CanIssue()
}

// CanApproveOrReject allows only the receipt's issuer.
func CanApproveOrReject(r *models.Receipt, a domain.Account) bool {
	return r.Issuer == a
}

// CanVerifyReceipt allows the recipient or anyone holding the verifier capability.
func CanVerifyReceipt(g *models.Governance, r *models.Receipt, a domain.Account) bool {
	return r.Recipient == a || CanVerify(g, a)
}

// CanDispute allows either party.
func CanDispute(r *models.Receipt, a domain.Account) bool {
	return r.IsParty(a)
}

// CanCancel allows the party that created the record.
func CanCancel(r *models.Receipt, a domain.Account) bool {
	return r.Originator() == a
}

// CanManageVerifiers allows the owner.
func CanManageVerifiers(g *models.Governance, a domain.Account) bool {
	return IsOwner(g, a)
}

// CanTransferOwnership allows the owner.
func CanTransferOwnership(g *models.Governance, a domain.Account) bool {
	return IsOwner(g, a)
}

// CanDeactivateBusiness allows the owner.
func CanDeactivateBusiness(g *models.Governance, a domain.Account) bool {
	return IsOwner(g, a)
}
