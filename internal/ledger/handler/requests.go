package handler

import (
	"strings"
	"time"

	"receiptledger/internal/ledger/models"
	"receiptledger/pkg/currency"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
)

// RegisterBusinessRequest is the body of POST /businesses.
type RegisterBusinessRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=1024"`
}

func (r *RegisterBusinessRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

// ReceiptBody carries the receipt fields shared by requests and direct issues.
// Exactly one of Amount (smallest unit) or AmountDisplay (decimal) is given.
type ReceiptBody struct {
	VendorName      string     `json:"vendor_name" validate:"max=128"`
	Description     string     `json:"description" validate:"max=1024"`
	Amount          string     `json:"amount" validate:"required_without=AmountDisplay,excluded_with=AmountDisplay"`
	AmountDisplay   string     `json:"amount_display"`
	DocumentRef     string     `json:"document_ref" validate:"max=256"`
	TransactionDate *time.Time `json:"transaction_date"`
}

func (b *ReceiptBody) normalize() {
	b.VendorName = strings.TrimSpace(b.VendorName)
	b.Description = strings.TrimSpace(b.Description)
	b.Amount = strings.TrimSpace(b.Amount)
	b.AmountDisplay = strings.TrimSpace(b.AmountDisplay)
	b.DocumentRef = strings.TrimSpace(b.DocumentRef)
}

// Details converts the body into lifecycle input, parsing the amount in
// whichever unit was supplied.
func (b *ReceiptBody) Details(conv currency.Converter) (models.ReceiptDetails, error) {
	var (
		amount domain.Amount
		err    error
	)
	if b.Amount != "" {
		amount, err = domain.ParseAmount(b.Amount)
	} else {
		amount, err = conv.Parse(b.AmountDisplay)
	}
	if err != nil {
		return models.ReceiptDetails{}, err
	}

	d := models.ReceiptDetails{
		VendorName:  b.VendorName,
		Description: b.Description,
		Amount:      amount,
		DocumentRef: b.DocumentRef,
	}
	if b.TransactionDate != nil {
		d.TransactionDate = b.TransactionDate.UTC()
	}
	return d, nil
}

// RequestReceiptRequest is the body of POST /receipts/requests.
type RequestReceiptRequest struct {
	Issuer string `json:"issuer" validate:"required"`
	ReceiptBody

	parsedIssuer domain.Account
}

func (r *RequestReceiptRequest) Normalize() {
	r.Issuer = strings.TrimSpace(r.Issuer)
	r.ReceiptBody.normalize()
}

// Validate parses the issuer account.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RequestReceiptRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	issuer, err := domain.ParseAccount(r.Issuer)
	if err != nil {
		return err
	}
	r.parsedIssuer = issuer
	return nil
}

func (r *RequestReceiptRequest) ParsedIssuer() domain.Account {
	return r.parsedIssuer
}

// IssueReceiptRequest is the body of POST /receipts.
type IssueReceiptRequest struct {
	Recipient string `json:"recipient" validate:"required"`
	ReceiptBody

	parsedRecipient domain.Account
}

func (r *IssueReceiptRequest) Normalize() {
	r.Recipient = strings.TrimSpace(r.Recipient)
	r.ReceiptBody.normalize()
}

// Validate parses the recipient account.
func (r *IssueReceiptRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	recipient, err := domain.ParseAccount(r.Recipient)
	if err != nil {
		return err
	}
	r.parsedRecipient = recipient
	return nil
}

func (r *IssueReceiptRequest) ParsedRecipient() domain.Account {
	return r.parsedRecipient
}

// ReasonRequest is the body of reject and dispute calls. An empty reason is
// left to the lifecycle, which reports it as invalid_input.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"max=512"`
}

func (r *ReasonRequest) Normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
}

// AccountRequest names the account a governance call acts on.
type AccountRequest struct {
	Account string `json:"account" validate:"required"`

	parsed domain.Account
}

func (r *AccountRequest) Normalize() {
	r.Account = strings.TrimSpace(r.Account)
}

func (r *AccountRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	a, err := domain.ParseAccount(r.Account)
	if err != nil {
		return err
	}
	r.parsed = a
	return nil
}

func (r *AccountRequest) ParsedAccount() domain.Account {
	return r.parsed
}
