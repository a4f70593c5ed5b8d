// Package producer publishes keyed records to Kafka with synchronous acknowledgement.
package producer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Record is one message to publish. Records sharing a topic are produced in slice order.
type Record struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Producer wraps a franz-go client configured for ordered, fully acknowledged writes.
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
}

// New connects a producer to the given brokers.
func New(brokers []string, logger *slog.Logger) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.MaxBufferedRecords(10_000),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{client: client, logger: logger}, nil
}

// Produce writes records and waits for every acknowledgement. The first failure is returned.
func (p *Producer) Produce(ctx context.Context, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	krs := make([]*kgo.Record, 0, len(records))
	for _, r := range records {
		kr := &kgo.Record{Topic: r.Topic, Key: r.Key, Value: r.Value}
		for k, v := range r.Headers {
			kr.Headers = append(kr.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
		}
		krs = append(krs, kr)
	}
	if err := p.client.ProduceSync(ctx, krs...).FirstErr(); err != nil {
		p.logger.ErrorContext(ctx, "kafka produce failed",
			"records", len(krs),
			"error", err,
		)
		return fmt.Errorf("produce records: %w", err)
	}
	return nil
}

// Health pings the cluster.
func (p *Producer) Health(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes and closes the client.
func (p *Producer) Close() {
	p.client.Close()
}
