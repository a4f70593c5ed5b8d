package models

import (
	"sort"
	"time"

	"receiptledger/pkg/domain"
)

// Governance is the ledger-wide authority: the owner and the authorized verifier set.
// It is explicit state loaded per transaction, never a package-level singleton.
type Governance struct {
	Owner     domain.Account
	Verifiers map[domain.Account]time.Time
	UpdatedAt time.Time
}

// NewGovernance bootstraps governance with the owner as its first verifier.
func NewGovernance(owner domain.Account, now time.Time) *Governance {
	return &Governance{
		Owner:     owner,
		Verifiers: map[domain.Account]time.Time{owner: now},
		UpdatedAt: now,
	}
}

// HasVerifier reports explicit membership in the verifier set.
func (g *Governance) HasVerifier(a domain.Account) bool {
	_, ok := g.Verifiers[a]
	return ok
}

// VerifierList returns members in a stable order.
func (g *Governance) VerifierList() []domain.Account {
	out := make([]domain.Account, 0, len(g.Verifiers))
	for a := range g.Verifiers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func (g *Governance) Clone() *Governance {
	if g == nil {
		return nil
	}
	c := &Governance{Owner: g.Owner, UpdatedAt: g.UpdatedAt, Verifiers: make(map[domain.Account]time.Time, len(g.Verifiers))}
	for a, t := range g.Verifiers {
		c.Verifiers[a] = t
	}
	return c
}
