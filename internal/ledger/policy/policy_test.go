package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"receiptledger/internal/ledger/models"
	"receiptledger/pkg/domain"
)

var (
	owner    = domain.MustAccount("0x1000000000000000000000000000000000000001")
	verifier = domain.MustAccount("0x1000000000000000000000000000000000000002")
	issuer   = domain.MustAccount("0x1000000000000000000000000000000000000003")
	customer = domain.MustAccount("0x1000000000000000000000000000000000000004")
	stranger = domain.MustAccount("0x1000000000000000000000000000000000000005")
)

func governance() *models.Governance {
	g := models.NewGovernance(owner, time.Now())
	g.Verifiers[verifier] = time.Now()
	return g
}

func TestGovernanceCapabilities(t *testing.T) {
	g := governance()

	assert.True(t, IsOwner(g, owner))
	assert.False(t, IsOwner(g, verifier))
	assert.False(t, IsOwner(g, domain.Account{}))

	assert.True(t, IsAuthorizedVerifier(g, owner), "owner is seeded as a verifier")
	assert.True(t, IsAuthorizedVerifier(g, verifier))
	assert.False(t, IsAuthorizedVerifier(g, stranger))

	assert.True(t, CanVerify(g, owner))
	assert.True(t, CanVerify(g, verifier))
	assert.False(t, CanVerify(g, stranger))

	assert.True(t, CanManageVerifiers(g, owner))
	assert.False(t, CanManageVerifiers(g, verifier))
	assert.True(t, CanTransferOwnership(g, owner))
	assert.False(t, CanTransferOwnership(g, verifier))
	assert.False(t, CanDeactivateBusiness(g, verifier))
}

func TestOwnerKeepsVerifyCapabilityAfterRemoval(t *testing.T) {
	g := governance()
	delete(g.Verifiers, owner)

	assert.False(t, IsAuthorizedVerifier(g, owner))
	assert.True(t, CanVerify(g, owner))
}

func TestReceiptCapabilities(t *testing.T) {
	g := governance()
	requested := &models.Receipt{Issuer: issuer, Recipient: customer, Origin: models.OriginRequest}
	direct := &models.Receipt{Issuer: issuer, Recipient: customer, Origin: models.OriginDirect}

	cases := []struct {
		name  string
		check func(a domain.Account) bool
		allow []domain.Account
		deny  []domain.Account
	}{
		{
			name:  "approve or reject",
			check: func(a domain.Account) bool { return CanApproveOrReject(requested, a) },
			allow: []domain.Account{issuer},
			deny:  []domain.Account{customer, owner, verifier, stranger},
		},
		{
			name:  "verify receipt",
			check: func(a domain.Account) bool { return CanVerifyReceipt(g, requested, a) },
			allow: []domain.Account{customer, owner, verifier},
			deny:  []domain.Account{issuer, stranger},
		},
		{
			name:  "dispute",
			check: func(a domain.Account) bool { return CanDispute(requested, a) },
			allow: []domain.Account{issuer, customer},
			deny:  []domain.Account{owner, verifier, stranger},
		},
		{
			name:  "cancel request",
			check: func(a domain.Account) bool { return CanCancel(requested, a) },
			allow: []domain.Account{customer},
			deny:  []domain.Account{issuer, owner, stranger},
		},
		{
			name:  "cancel direct issue",
			check: func(a domain.Account) bool { return CanCancel(direct, a) },
			allow: []domain.Account{issuer},
			deny:  []domain.Account{customer, owner, stranger},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, a := range tc.allow {
				assert.True(t, tc.check(a), "expected %s to be allowed", a)
			}
			for _, a := range tc.deny {
				assert.False(t, tc.check(a), "expected %s to be denied", a)
			}
		})
	}
}

func TestCanIssue(t *testing.T) {
	assert.False(t, CanIssue(nil))
	assert.False(t, CanIssue(&models.Business{Owner: issuer, IsActive: false}))
	assert.True(t, CanIssue(&models.Business{Owner: issuer, IsActive: true}))
}
