package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"receiptledger/internal/ledger/metrics"
	"receiptledger/internal/ledger/models"
	"receiptledger/internal/ledger/ports"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
	"receiptledger/pkg/platform/sentinel"
	"receiptledger/pkg/requestcontext"
)

// DefaultRequestWindow is how long a receipt request stays answerable.
const DefaultRequestWindow = 7 * 24 * time.Hour

var tracer = otel.Tracer("receiptledger/internal/ledger/service")

// Ledger is the storage the service runs on: a single-writer transaction
// boundary plus stores for reads outside it.
type Ledger interface {
	ports.LedgerTx
	Stores() ports.Stores
}

// Service orchestrates ledger transitions. Every mutating call runs one
// lifecycle function inside one ledger transaction and appends the event it
// returns to the log before the transaction commits.
type Service struct {
	ledger        Ledger
	logger        *slog.Logger
	metrics       *metrics.Metrics
	requestWindow time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRequestWindow overrides DefaultRequestWindow. Non-positive values are ignored.
func WithRequestWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.requestWindow = window
		}
	}
}

// New constructs a Service.
func New(ledger Ledger, opts ...Option) *Service {
	s := &Service{
		ledger:        ledger,
		requestWindow: DefaultRequestWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestWindow returns the configured answer window for new requests.
func (s *Service) RequestWindow() time.Duration {
	return s.requestWindow
}

// transition is one unit of ledger work. It returns the event to append.
type transition func(ctx context.Context, stores ports.Stores, now time.Time) (*models.Event, error)

// apply runs fn inside the ledger transaction, appends its event and records
// the outcome. On any error nothing fn wrote is kept and no event is emitted.
func (s *Service) apply(ctx context.Context, operation string, caller domain.Account, fn transition) (*models.Event, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "ledger."+operation)
	defer span.End()
	span.SetAttributes(attribute.String("ledger.caller", caller.Hex()))

	now := requestcontext.Now(ctx)
	var applied *models.Event
	err := s.ledger.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		ev, err := fn(ctx, stores, now)
		if err != nil {
			return err
		}
		if err := stores.Events.Append(ctx, ev); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append event")
		}
		applied = ev
		return nil
	})
	s.metrics.ObserveDuration(operation, time.Since(start))

	if err != nil {
		code := dErrors.CodeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
		s.metrics.IncrementRejection(operation, string(code))
		s.logRejection(ctx, operation, caller, code, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("ledger.event_kind", string(applied.Kind)),
		attribute.Int64("ledger.sequence", int64(applied.Sequence)),
	)
	s.logAudit(ctx, applied)
	s.metrics.IncrementTransition(string(applied.Kind))
	return applied, nil
}

func (s *Service) logAudit(ctx context.Context, ev *models.Event) {
	if s.logger == nil {
		return
	}
	args := []any{
		"event", string(ev.Kind),
		"log_type", "audit",
		"event_id", ev.ID.String(),
		"sequence", ev.Sequence,
		"actor", ev.Actor.Hex(),
	}
	if !ev.ReceiptID.IsNil() {
		args = append(args, "receipt_id", ev.ReceiptID.String())
	}
	if !ev.Business.IsZero() {
		args = append(args, "business", ev.Business.Hex())
	}
	if !ev.Counterparty.IsZero() {
		args = append(args, "counterparty", ev.Counterparty.Hex())
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, string(ev.Kind), args...)
}

func (s *Service) logRejection(ctx context.Context, operation string, caller domain.Account, code dErrors.Code, err error) {
	if s.logger == nil {
		return
	}
	args := []any{
		"operation", operation,
		"caller", caller.Hex(),
		"code", string(code),
		"error", err,
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	switch code {
	case dErrors.CodeInternal, dErrors.CodeTimeout:
		s.logger.ErrorContext(ctx, "ledger operation failed", args...)
	default:
		s.logger.DebugContext(ctx, "ledger operation refused", args...)
	}
}

func loadGovernance(ctx context.Context, stores ports.Stores) (*models.Governance, error) {
	g, err := stores.Governance.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load governance")
	}
	return g, nil
}

// findBusiness returns nil without error when owner has no profile.
func findBusiness(ctx context.Context, stores ports.Stores, owner domain.Account) (*models.Business, error) {
	b, err := stores.Businesses.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load business")
	}
	return b, nil
}

func loadReceipt(ctx context.Context, stores ports.Stores, id domain.ReceiptID) (*models.Receipt, error) {
	r, err := stores.Receipts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "receipt not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load receipt")
	}
	return r, nil
}

func saveReceipt(ctx context.Context, stores ports.Stores, r *models.Receipt) error {
	if err := stores.Receipts.Update(ctx, r); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save receipt")
	}
	return nil
}

func saveBusiness(ctx context.Context, stores ports.Stores, b *models.Business) error {
	if err := stores.Businesses.Update(ctx, b); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save business")
	}
	return nil
}

func saveGovernance(ctx context.Context, stores ports.Stores, g *models.Governance) error {
	if err := stores.Governance.Save(ctx, g); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save governance")
	}
	return nil
}
