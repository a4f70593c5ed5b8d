package eventlog

import (
	"context"
	"log/slog"
	"time"

	"receiptledger/internal/eventlog/metrics"
	"receiptledger/internal/ledger/models"
)

const (
	DefaultInterval  = time.Second
	DefaultBatchSize = 100
)

// Outbox is the read side of the ledger log.
type Outbox interface {
	Unpublished(ctx context.Context, limit int) ([]*models.Event, error)
	MarkPublished(ctx context.Context, through uint64) error
}

// Publisher delivers a batch of events in order. A nil return means every
// event in the batch was delivered.
type Publisher interface {
	Publish(ctx context.Context, events []*models.Event) error
}

// Relay polls the outbox and publishes new events. A batch is marked published
// only after the publisher accepted all of it, so a crash between the two
// causes redelivery, never loss.
type Relay struct {
	outbox    Outbox
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	batchSize int
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func NewRelay(outbox Outbox, publisher Publisher, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		publisher: publisher,
		logger:    slog.New(slog.DiscardHandler),
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run flushes on every tick until ctx is cancelled. Flush failures are logged
// and retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "outbox relay started",
		"interval", r.interval.String(),
		"batch_size", r.batchSize,
	)
	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			r.logger.WarnContext(ctx, "outbox flush failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Flush publishes batches until the outbox is drained and returns how many
// events were published.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	total := 0
	for {
		events, err := r.outbox.Unpublished(ctx, r.batchSize)
		if err != nil {
			return total, err
		}
		if len(events) == 0 {
			return total, nil
		}

		start := time.Now()
		if err := r.publisher.Publish(ctx, events); err != nil {
			r.metrics.IncrementFailures()
			return total, err
		}
		last := events[len(events)-1].Sequence
		if err := r.outbox.MarkPublished(ctx, last); err != nil {
			return total, err
		}
		r.metrics.ObservePublish(len(events), time.Since(start))
		r.metrics.SetLastSequence(last)

		total += len(events)
		r.logger.DebugContext(ctx, "outbox batch published",
			"events", len(events),
			"through_sequence", last,
		)
		if len(events) < r.batchSize {
			return total, nil
		}
	}
}
