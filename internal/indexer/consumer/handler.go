// Package consumer feeds ledger events from Kafka into the projector.
package consumer

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"receiptledger/internal/eventlog"
	ledger "receiptledger/internal/ledger/models"
	"receiptledger/internal/platform/kafka/consumer"
	"receiptledger/pkg/platform/sentinel"
)

var tracer = otel.Tracer("receiptledger/internal/indexer/consumer")

// Applier projects one event.
type Applier interface {
	Apply(ctx context.Context, ev *ledger.Event) error
}

// Handler decodes ledger event records. Malformed records are logged and
// committed; projection failures are returned so the record is redelivered.
type Handler struct {
	applier Applier
	logger  *slog.Logger
}

func NewHandler(applier Applier, logger *slog.Logger) *Handler {
	return &Handler{applier: applier, logger: logger}
}

func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	ctx, span := tracer.Start(ctx, "indexer.handle",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)
	defer span.End()

	ev, err := eventlog.Decode(msg.Value)
	if err != nil {
		h.logger.ErrorContext(ctx, "dropping malformed ledger event",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}

	span.SetAttributes(
		attribute.Int64("ledger.sequence", int64(ev.Sequence)),
		attribute.String("ledger.event", string(ev.Kind)),
	)
	if err := h.applier.Apply(ctx, ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		if errors.Is(err, sentinel.ErrOutOfOrder) {
			h.logger.WarnContext(ctx, "ledger event arrived ahead of its predecessor",
				"sequence", ev.Sequence,
				"offset", msg.Offset,
			)
		}
		return err
	}
	return nil
}
