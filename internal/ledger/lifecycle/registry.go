package lifecycle

import (
	"strings"
	"time"

	"receiptledger/internal/ledger/models"
	"receiptledger/internal/ledger/policy"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
)

const maxBusinessDescriptionLength = 1024

// RegisterBusiness creates the caller's business profile. existing is the
// caller's current profile, or nil.
func RegisterBusiness(existing *models.Business, caller domain.Account, name, description string, now time.Time) (*models.Business, *models.Event, error) {
	if existing != nil {
		return nil, nil, dErrors.New(dErrors.CodeAlreadyRegistered, "business already registered")
	}
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" {
		return nil, nil, dErrors.New(dErrors.CodeInvalidInput, "business name cannot be empty")
	}
	if len([]rune(name)) > models.MaxBusinessNameLength {
		return nil, nil, dErrors.New(dErrors.CodeInvalidInput, "business name must be 128 characters or less")
	}
	if len([]rune(description)) > maxBusinessDescriptionLength {
		return nil, nil, dErrors.New(dErrors.CodeInvalidInput, "business description must be 1024 characters or less")
	}

	b := &models.Business{
		Owner:        caller,
		Name:         name,
		Description:  description,
		IsActive:     true,
		IsVerified:   false,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	ev := models.NewEvent(models.EventBusinessRegistered, caller, now)
	ev.Business = caller
	ev.Profile = &models.BusinessProfile{Name: name, Description: description}
	return b, ev, nil
}

// VerifyBusiness marks b verified. b is nil when target has no profile.
func VerifyBusiness(g *models.Governance, b *models.Business, caller, target domain.Account, now time.Time) (*models.Event, error) {
	if !policy.CanVerify(g, caller) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not authorized to verify")
	}
	if b == nil {
		return nil, dErrors.New(dErrors.CodeNotRegistered, "business not registered")
	}
	if b.IsVerified {
		return nil, dErrors.New(dErrors.CodeWrongState, "business already verified")
	}

	b.IsVerified = true
	b.UpdatedAt = now

	ev := models.NewEvent(models.EventBusinessVerified, caller, now)
	ev.Business = target
	return ev, nil
}

// DeactivateBusiness clears b's active flag. Only the ledger owner may do this.
func DeactivateBusiness(g *models.Governance, b *models.Business, caller, target domain.Account, now time.Time) (*models.Event, error) {
	if !policy.CanDeactivateBusiness(g, caller) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the owner can deactivate businesses")
	}
	if b == nil {
		return nil, dErrors.New(dErrors.CodeNotRegistered, "business not registered")
	}
	if !b.IsActive {
		return nil, dErrors.New(dErrors.CodeWrongState, "business already inactive")
	}

	b.IsActive = false
	b.UpdatedAt = now

	ev := models.NewEvent(models.EventBusinessDeactivated, caller, now)
	ev.Business = target
	return ev, nil
}
