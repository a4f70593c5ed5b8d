package models

import (
	"time"

	"receiptledger/pkg/domain"
)

// ReceiptDetails are the caller-supplied fields of a new receipt.
type ReceiptDetails struct {
	VendorName      string
	Description     string
	Amount          domain.Amount
	DocumentRef     string
	TransactionDate time.Time
}

// Party lists the receipts an account takes part in, in creation order.
type Party string

const (
	PartyRecipient Party = "recipient"
	PartyIssuer    Party = "issuer"
)
