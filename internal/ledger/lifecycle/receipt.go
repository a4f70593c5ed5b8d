// Package lifecycle holds the ledger's transition functions. Each function
// checks one operation's rules against explicit state, applies the change to the
// value it was given and returns the single event describing it. Nothing here
// performs I/O; callers pass clones and persist them only when no error is returned.
//
// Rules are checked in a fixed order: authorization, expiry of a pending
// receipt, state, then input.
package lifecycle

import (
	"strings"
	"time"

	"receiptledger/internal/ledger/models"
	"receiptledger/internal/ledger/policy"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
)

const (
	maxVendorNameLength  = 128
	maxDescriptionLength = 1024
	maxDocumentRefLength = 256
	maxReasonLength      = 512
)

// Request records a customer's receipt request against an issuing business.
// business is the issuer's profile, or nil when issuer is not registered.
func Request(business *models.Business, issuer, customer domain.Account, details models.ReceiptDetails, id domain.ReceiptID, now time.Time, window time.Duration) (*models.Receipt, *models.Event, error) {
	if !policy.CanIssue(business) {
		return nil, nil, dErrors.New(dErrors.CodeNotRegistered, "business not registered or inactive")
	}
	r, err := newReceipt(business, issuer, customer, details, id, models.OriginRequest, now, window)
	if err != nil {
		return nil, nil, err
	}

	ev := models.NewEvent(models.EventReceiptRequested, customer, now)
	ev.ReceiptID = id
	ev.Business = issuer
	ev.Counterparty = issuer
	ev.Receipt = models.SnapshotOf(r)
	return r, ev, nil
}

// IssueDirect records a receipt issued by the calling business to customer.
func IssueDirect(business *models.Business, issuer, customer domain.Account, details models.ReceiptDetails, id domain.ReceiptID, now time.Time, window time.Duration) (*models.Receipt, *models.Event, error) {
	if !policy.CanIssue(business) {
		return nil, nil, dErrors.New(dErrors.CodeNotRegistered, "business not registered or inactive")
	}
	if details.TransactionDate.IsZero() {
		details.TransactionDate = now
	}
	r, err := newReceipt(business, issuer, customer, details, id, models.OriginDirect, now, window)
	if err != nil {
		return nil, nil, err
	}

	ev := models.NewEvent(models.EventReceiptCreated, issuer, now)
	ev.ReceiptID = id
	ev.Business = issuer
	ev.Counterparty = customer
	ev.Receipt = models.SnapshotOf(r)
	return r, ev, nil
}

func newReceipt(business *models.Business, issuer, customer domain.Account, d models.ReceiptDetails, id domain.ReceiptID, origin models.Origin, now time.Time, window time.Duration) (*models.Receipt, error) {
	if customer.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "recipient account is required")
	}
	if customer == issuer {
		return nil, dErrors.New(dErrors.CodeSelfReceipt, "cannot create receipt for yourself")
	}
	if d.Amount.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "amount must be greater than zero")
	}
	if d.TransactionDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "transaction date is required")
	}
	if d.TransactionDate.After(now) {
		return nil, dErrors.New(dErrors.CodeFutureDate, "transaction date cannot be in the future")
	}

	vendor := strings.TrimSpace(d.VendorName)
	if vendor == "" {
		vendor = business.Name
	}
	description := strings.TrimSpace(d.Description)
	docRef := strings.TrimSpace(d.DocumentRef)
	switch {
	case len([]rune(vendor)) > maxVendorNameLength:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "vendor name must be 128 characters or less")
	case len([]rune(description)) > maxDescriptionLength:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "description must be 1024 characters or less")
	case len(docRef) > maxDocumentRefLength:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document reference must be 256 characters or less")
	}

	return &models.Receipt{
		ID:              id,
		Issuer:          issuer,
		Recipient:       customer,
		VendorName:      vendor,
		Description:     description,
		Amount:          d.Amount,
		DocumentRef:     docRef,
		TransactionDate: d.TransactionDate,
		RequestedAt:     now,
		Deadline:        now.Add(window),
		Status:          models.StatusRequested,
		Origin:          origin,
		UpdatedAt:       now,
	}, nil
}

// Approve accepts a pending customer request.
func Approve(r *models.Receipt, caller domain.Account, now time.Time) (*models.Event, error) {
	if !policy.CanApproveOrReject(r, caller) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the issuer can approve this receipt")
	}
	if err := checkDecidable(r, now); err != nil {
		return nil, err
	}

	r.Status = models.StatusApproved
	r.UpdatedAt = now
	return receiptEvent(models.EventReceiptApproved, r, caller, r.Recipient, "", now), nil
}

// Reject declines a pending customer request with a reason.
func Reject(r *models.Receipt, caller domain.Account, reason string, now time.Time) (*models.Event, error) {
	if !policy.CanApproveOrReject(r, caller) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the issuer can reject this receipt")
	}
	if err := checkDecidable(r, now); err != nil {
		return nil, err
	}
	reason, err := normalizeReason(reason, "rejection reason")
	if err != nil {
		return nil, err
	}

	r.Status = models.StatusRejected
	r.RejectionReason = reason
	r.UpdatedAt = now
	return receiptEvent(models.EventReceiptRejected, r, caller, r.Recipient, reason, now), nil
}

// Verify confirms a receipt: an approved request, or a pending direct issue.
func Verify(g *models.Governance, r *models.Receipt, caller domain.Account, now time.Time) (*models.Event, error) {
	if !policy.CanVerifyReceipt(g, r, caller) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the recipient or an authorized verifier can verify")
	}
	if err := checkNotExpired(r, now); err != nil {
		return nil, err
	}
	switch {
	case r.Status == models.StatusApproved:
	case r.Status == models.StatusRequested && r.Origin == models.OriginDirect:
	default:
		return nil, dErrors.New(dErrors.CodeWrongState, "receipt is not awaiting verification")
	}

	r.Status = models.StatusVerified
	r.UpdatedAt = now
	return receiptEvent(models.EventReceiptVerified, r, caller, r.Issuer, "", now), nil
}

// Dispute contests an approved or verified receipt.
func Dispute(r *models.Receipt, caller domain.Account, reason string, now time.Time) (*models.Event, error) {
	if !policy.CanDispute(r, caller) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only issuer or recipient can perform this action")
	}
	if err := checkNotExpired(r, now); err != nil {
		return nil, err
	}
	if r.Status != models.StatusApproved && r.Status != models.StatusVerified {
		return nil, dErrors.New(dErrors.CodeWrongState, "only approved or verified receipts can be disputed")
	}
	reason, err := normalizeReason(reason, "dispute reason")
	if err != nil {
		return nil, err
	}

	r.Status = models.StatusDisputed
	r.DisputeReason = reason
	r.UpdatedAt = now
	return receiptEvent(models.EventReceiptDisputed, r, caller, counterpartyOf(r, caller), reason, now), nil
}

// Cancel withdraws a pending receipt. Only its originator may cancel, and an
// expired request may still be cancelled to close it explicitly.
func Cancel(r *models.Receipt, caller domain.Account, now time.Time) (*models.Event, error) {
	if !policy.CanCancel(r, caller) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the originator can cancel this receipt")
	}
	if r.Status != models.StatusRequested {
		return nil, dErrors.New(dErrors.CodeWrongState, "can only cancel pending receipts")
	}

	r.Status = models.StatusCancelled
	r.UpdatedAt = now
	return receiptEvent(models.EventReceiptCancelled, r, caller, counterpartyOf(r, caller), "", now), nil
}

// checkDecidable gates approve and reject: a live customer request.
func checkDecidable(r *models.Receipt, now time.Time) error {
	if err := checkNotExpired(r, now); err != nil {
		return err
	}
	if r.Status != models.StatusRequested || r.Origin != models.OriginRequest {
		return dErrors.New(dErrors.CodeWrongState, "receipt is not in pending status")
	}
	return nil
}

func checkNotExpired(r *models.Receipt, now time.Time) error {
	if r.IsExpired(now) {
		return dErrors.New(dErrors.CodeExpired, "receipt request has expired")
	}
	return nil
}

func normalizeReason(reason, field string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if len([]rune(reason)) > maxReasonLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" must be 512 characters or less")
	}
	return reason, nil
}

func counterpartyOf(r *models.Receipt, caller domain.Account) domain.Account {
	if caller == r.Issuer {
		return r.Recipient
	}
	return r.Issuer
}

func receiptEvent(kind models.EventKind, r *models.Receipt, actor, counterparty domain.Account, reason string, now time.Time) *models.Event {
	ev := models.NewEvent(kind, actor, now)
	ev.ReceiptID = r.ID
	ev.Business = r.Issuer
	ev.Counterparty = counterparty
	ev.Reason = reason
	return ev
}
