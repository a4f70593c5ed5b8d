package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
	"receiptledger/pkg/requestcontext"
)

var (
	jwtService = NewJWTService("test-signing-key", "test-issuer", time.Hour)
	account    = domain.MustAccount("0xb000000000000000000000000000000000000001")
	issuedAt   = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
)

func at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func TestIssueAndValidate(t *testing.T) {
	tok, err := jwtService.Issue(account, issuedAt)
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(time.Hour), tok.ExpiresAt)

	got, err := jwtService.ValidateToken(at(issuedAt.Add(time.Minute)), tok.Token)
	require.NoError(t, err)
	assert.Equal(t, account, got)
}

func TestValidateToken_Expired(t *testing.T) {
	tok, err := jwtService.Issue(account, issuedAt)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(at(issuedAt.Add(2*time.Hour)), tok.Token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	assert.Contains(t, err.Error(), "expired")
}

func TestValidateToken_Rejects(t *testing.T) {
	other := NewJWTService("other-key", "test-issuer", time.Hour)
	foreign, err := other.Issue(account, issuedAt)
	require.NoError(t, err)

	wrongIssuer := NewJWTService("test-signing-key", "someone-else", time.Hour)
	misissued, err := wrongIssuer.Issue(account, issuedAt)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "invalid-token-string"},
		{"wrong key", foreign.Token},
		{"wrong issuer", misissued.Token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := jwtService.ValidateToken(at(issuedAt), tt.token)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated), "got %v", err)
		})
	}
}
