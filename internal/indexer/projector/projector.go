// Package projector applies ledger events to the indexer views, strictly in
// log order and idempotently under redelivery.
package projector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"receiptledger/internal/indexer/metrics"
	"receiptledger/internal/indexer/models"
	ledger "receiptledger/internal/ledger/models"
	"receiptledger/pkg/domain"
	"receiptledger/pkg/platform/sentinel"
)

// Store is the view store the projector writes to.
type Store interface {
	Checkpoint(ctx context.Context) (uint64, error)
	Receipt(ctx context.Context, id domain.ReceiptID) (*models.ReceiptView, error)
	Business(ctx context.Context, owner domain.Account) (*models.BusinessView, error)
	// Commit returns sentinel.ErrAlreadyUsed for applied sequences and
	// sentinel.ErrOutOfOrder for gaps.
	Commit(ctx context.Context, c *models.Changes) error
}

// Dedupe is an optional fast path for redelivered events.
type Dedupe interface {
	Seen(ctx context.Context, id uuid.UUID) (bool, error)
	Mark(ctx context.Context, id uuid.UUID) error
}

type Projector struct {
	store   Store
	dedupe  Dedupe
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Projector)

func WithDedupe(d Dedupe) Option {
	return func(p *Projector) {
		p.dedupe = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Projector) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Projector) {
		p.metrics = m
	}
}

func New(store Store, opts ...Option) *Projector {
	p := &Projector{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Apply projects ev. Events at or below the checkpoint are skipped and return
// nil. An event beyond checkpoint+1 returns sentinel.ErrOutOfOrder and changes
// nothing, so the transport redelivers from the gap.
func (p *Projector) Apply(ctx context.Context, ev *ledger.Event) error {
	start := time.Now()

	if p.seen(ctx, ev) {
		p.metrics.IncrementDuplicate("cache")
		return nil
	}

	checkpoint, err := p.store.Checkpoint(ctx)
	if err != nil {
		return err
	}
	if ev.Sequence <= checkpoint {
		p.metrics.IncrementDuplicate("checkpoint")
		p.logger.DebugContext(ctx, "skipping applied event",
			"sequence", ev.Sequence,
			"checkpoint", checkpoint,
		)
		return nil
	}
	if ev.Sequence != checkpoint+1 {
		p.metrics.IncrementGap()
		return fmt.Errorf("event %d after checkpoint %d: %w", ev.Sequence, checkpoint, sentinel.ErrOutOfOrder)
	}

	changes, err := p.changesFor(ctx, ev)
	if err != nil {
		return err
	}
	if err := p.store.Commit(ctx, changes); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			p.metrics.IncrementDuplicate("checkpoint")
			return nil
		}
		if errors.Is(err, sentinel.ErrOutOfOrder) {
			p.metrics.IncrementGap()
		}
		return fmt.Errorf("commit event %d: %w", ev.Sequence, err)
	}

	p.mark(ctx, ev)
	p.metrics.ObserveApplied(string(ev.Kind), ev.Sequence, time.Since(start))
	p.logger.DebugContext(ctx, "event applied",
		"sequence", ev.Sequence,
		"kind", string(ev.Kind),
		"event_id", ev.ID.String(),
	)
	return nil
}

func (p *Projector) seen(ctx context.Context, ev *ledger.Event) bool {
	if p.dedupe == nil {
		return false
	}
	ok, err := p.dedupe.Seen(ctx, ev.ID)
	if err != nil {
		p.logger.WarnContext(ctx, "dedupe lookup failed", "error", err)
		return false
	}
	return ok
}

func (p *Projector) mark(ctx context.Context, ev *ledger.Event) {
	if p.dedupe == nil {
		return
	}
	if err := p.dedupe.Mark(ctx, ev.ID); err != nil {
		p.logger.WarnContext(ctx, "dedupe mark failed", "error", err)
	}
}

func (p *Projector) changesFor(ctx context.Context, ev *ledger.Event) (*models.Changes, error) {
	c := &models.Changes{
		Sequence: ev.Sequence,
		Activity: &models.Activity{
			EventID:      ev.ID,
			Sequence:     ev.Sequence,
			Kind:         ev.Kind,
			ReceiptID:    ev.ReceiptID,
			Business:     ev.Business,
			Actor:        ev.Actor,
			Counterparty: ev.Counterparty,
			Reason:       ev.Reason,
			OccurredAt:   ev.Timestamp,
		},
	}

	switch ev.Kind {
	case ledger.EventBusinessRegistered:
		if ev.Profile == nil {
			return nil, fmt.Errorf("event %d: registration without profile", ev.Sequence)
		}
		c.Business = &models.BusinessView{
			Owner:        ev.Business,
			Name:         ev.Profile.Name,
			Description:  ev.Profile.Description,
			IsActive:     true,
			RegisteredAt: ev.Timestamp,
			LastSequence: ev.Sequence,
			UpdatedAt:    ev.Timestamp,
		}

	case ledger.EventBusinessVerified, ledger.EventBusinessDeactivated:
		b, err := p.store.Business(ctx, ev.Business)
		if err != nil {
			return nil, fmt.Errorf("event %d: load business %s: %w", ev.Sequence, ev.Business, err)
		}
		if ev.Kind == ledger.EventBusinessVerified {
			b.IsVerified = true
		} else {
			b.IsActive = false
		}
		b.LastSequence = ev.Sequence
		b.UpdatedAt = ev.Timestamp
		c.Business = b

	case ledger.EventReceiptRequested, ledger.EventReceiptCreated:
		snap := ev.Receipt
		if snap == nil {
			return nil, fmt.Errorf("event %d: creation without receipt snapshot", ev.Sequence)
		}
		c.Receipt = &models.ReceiptView{
			ID:              ev.ReceiptID,
			Issuer:          snap.Issuer,
			Recipient:       snap.Recipient,
			VendorName:      snap.VendorName,
			Description:     snap.Description,
			Amount:          snap.Amount,
			DocumentRef:     snap.DocumentRef,
			TransactionDate: snap.TransactionDate,
			RequestedAt:     snap.RequestedAt,
			Deadline:        snap.Deadline,
			Status:          ledger.StatusRequested,
			Origin:          snap.Origin,
			LastActor:       ev.Actor,
			LastEventID:     ev.ID,
			LastSequence:    ev.Sequence,
			UpdatedAt:       ev.Timestamp,
		}

	case ledger.EventReceiptApproved, ledger.EventReceiptRejected, ledger.EventReceiptVerified,
		ledger.EventReceiptDisputed, ledger.EventReceiptCancelled:
		r, err := p.store.Receipt(ctx, ev.ReceiptID)
		if err != nil {
			return nil, fmt.Errorf("event %d: load receipt %s: %w", ev.Sequence, ev.ReceiptID, err)
		}
		switch ev.Kind {
		case ledger.EventReceiptApproved:
			r.Status = ledger.StatusApproved
		case ledger.EventReceiptRejected:
			r.Status = ledger.StatusRejected
			r.RejectionReason = ev.Reason
		case ledger.EventReceiptVerified:
			r.Status = ledger.StatusVerified
		case ledger.EventReceiptDisputed:
			r.Status = ledger.StatusDisputed
			r.DisputeReason = ev.Reason
		case ledger.EventReceiptCancelled:
			r.Status = ledger.StatusCancelled
		}
		r.LastActor = ev.Actor
		r.LastEventID = ev.ID
		r.LastSequence = ev.Sequence
		r.UpdatedAt = ev.Timestamp
		c.Receipt = r

	case ledger.EventOwnershipTransferred, ledger.EventVerifierAdded, ledger.EventVerifierRemoved:
		// activity only

	default:
		p.logger.WarnContext(ctx, "unknown event kind recorded as activity only",
			"sequence", ev.Sequence,
			"kind", string(ev.Kind),
		)
	}
	return c, nil
}
