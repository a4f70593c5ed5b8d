package handler

import (
	"time"

	"receiptledger/internal/ledger/models"
	"receiptledger/pkg/currency"
	"receiptledger/pkg/domain"
)

// ReceiptResponse is the wire form of a receipt. EffectiveStatus is projected
// at read time and reports Expired for lapsed requests.
type ReceiptResponse struct {
	ID              domain.ReceiptID `json:"id"`
	Issuer          domain.Account   `json:"issuer"`
	Recipient       domain.Account   `json:"recipient"`
	VendorName      string           `json:"vendor_name"`
	Description     string           `json:"description"`
	Amount          domain.Amount    `json:"amount"`
	AmountDisplay   string           `json:"amount_display"`
	DocumentRef     string           `json:"document_ref,omitempty"`
	TransactionDate time.Time        `json:"transaction_date"`
	RequestedAt     time.Time        `json:"requested_at"`
	Deadline        time.Time        `json:"deadline"`
	Status          models.Status    `json:"status"`
	EffectiveStatus models.Status    `json:"effective_status"`
	Origin          models.Origin    `json:"origin"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	DisputeReason   string           `json:"dispute_reason,omitempty"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func toReceiptResponse(r *models.Receipt, conv currency.Converter, now time.Time) *ReceiptResponse {
	return &ReceiptResponse{
		ID:              r.ID,
		Issuer:          r.Issuer,
		Recipient:       r.Recipient,
		VendorName:      r.VendorName,
		Description:     r.Description,
		Amount:          r.Amount,
		AmountDisplay:   conv.Format(r.Amount),
		DocumentRef:     r.DocumentRef,
		TransactionDate: r.TransactionDate,
		RequestedAt:     r.RequestedAt,
		Deadline:        r.Deadline,
		Status:          r.Status,
		EffectiveStatus: r.EffectiveStatus(now),
		Origin:          r.Origin,
		RejectionReason: r.RejectionReason,
		DisputeReason:   r.DisputeReason,
		UpdatedAt:       r.UpdatedAt,
	}
}

// ReceiptIDsResponse lists receipt ids in creation order.
type ReceiptIDsResponse struct {
	Account  domain.Account     `json:"account"`
	Receipts []domain.ReceiptID `json:"receipts"`
}

type CountResponse struct {
	Total uint64 `json:"total"`
}

type VerifierResponse struct {
	Account    domain.Account `json:"account"`
	Authorized bool           `json:"authorized"`
}

type OwnershipResponse struct {
	Owner     domain.Account   `json:"owner"`
	Verifiers []domain.Account `json:"verifiers"`
}
