// Package models holds wallet sign-in records.
package models

import (
	"fmt"
	"time"

	"receiptledger/pkg/domain"
)

// Challenge is a single-use nonce an account signs to prove control of its key.
type Challenge struct {
	Account   domain.Account `json:"account"`
	Nonce     string         `json:"nonce"`
	IssuedAt  time.Time      `json:"issued_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Message is the exact text the wallet signs with personal_sign.
func (c *Challenge) Message() string {
	return fmt.Sprintf("Sign in to Receipt Ledger\n\nAccount: %s\nNonce: %s\nIssued At: %s\nExpires At: %s",
		c.Account.Hex(),
		c.Nonce,
		c.IssuedAt.UTC().Format(time.RFC3339),
		c.ExpiresAt.UTC().Format(time.RFC3339),
	)
}

func (c *Challenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// AccessToken is a signed bearer token for an account.
type AccessToken struct {
	Token     string
	Account   domain.Account
	ExpiresAt time.Time
}
