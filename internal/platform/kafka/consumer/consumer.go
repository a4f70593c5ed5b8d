// Package consumer runs a Kafka consumer-group loop that hands each record to a
// Handler and commits offsets only after the handler succeeds.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the transport-neutral view of a consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes one message. Returning nil commits it; returning an error
// stops the loop so the record is redelivered from the last committed offset.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// Config selects brokers, group and topics.
type Config struct {
	Brokers []string
	Group   string
	Topics  []string
}

// Consumer is a single-goroutine consumer; records of one partition are handled in order.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// New creates a consumer-group member. Auto-commit is disabled.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.BlockRebalanceOnPoll(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// Run polls until ctx is cancelled or a handler fails.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			c.client.AllowRebalance()
			return ctx.Err()
		}
		for _, fe := range fetches.Errors() {
			c.logger.WarnContext(ctx, "kafka fetch error",
				"topic", fe.Topic,
				"partition", fe.Partition,
				"error", fe.Err,
			)
		}

		err := c.handleFetches(ctx, fetches)
		c.client.AllowRebalance()
		if err != nil {
			return err
		}
	}
}

func (c *Consumer) handleFetches(ctx context.Context, fetches kgo.Fetches) error {
	var handled []*kgo.Record
	var handleErr error

	iter := fetches.RecordIter()
	for !iter.Done() {
		rec := iter.Next()
		if err := c.handler.Handle(ctx, toMessage(rec)); err != nil {
			handleErr = fmt.Errorf("handle %s/%d@%d: %w", rec.Topic, rec.Partition, rec.Offset, err)
			break
		}
		handled = append(handled, rec)
	}

	if len(handled) > 0 {
		if err := c.client.CommitRecords(ctx, handled...); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.ErrorContext(ctx, "kafka commit failed",
				"records", len(handled),
				"error", err,
			)
			return fmt.Errorf("commit records: %w", err)
		}
	}
	return handleErr
}

func toMessage(rec *kgo.Record) *Message {
	msg := &Message{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       rec.Key,
		Value:     rec.Value,
		Timestamp: rec.Timestamp,
	}
	if len(rec.Headers) > 0 {
		msg.Headers = make(map[string]string, len(rec.Headers))
		for _, h := range rec.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}
	}
	return msg
}
