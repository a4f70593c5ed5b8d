package eventlog

import (
	"context"

	"receiptledger/internal/ledger/models"
	"receiptledger/internal/platform/kafka/producer"
)

// RecordProducer writes records to the broker and waits for acknowledgement.
type RecordProducer interface {
	Produce(ctx context.Context, records ...producer.Record) error
}

// KafkaPublisher writes events to a single-partition topic so consumers see
// them in log order.
type KafkaPublisher struct {
	producer RecordProducer
	topic    string
}

func NewKafkaPublisher(p RecordProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

// Publish produces one record per event, keyed by event id.
func (p *KafkaPublisher) Publish(ctx context.Context, events []*models.Event) error {
	records := make([]producer.Record, 0, len(events))
	for _, ev := range events {
		value, err := Encode(ev)
		if err != nil {
			return err
		}
		records = append(records, producer.Record{
			Topic: p.topic,
			Key:   []byte(ev.ID.String()),
			Value: value,
			Headers: map[string]string{
				HeaderKind:     string(ev.Kind),
				HeaderSequence: sequenceHeader(ev.Sequence),
			},
		})
	}
	return p.producer.Produce(ctx, records...)
}

// Applier consumes events in process.
type Applier interface {
	Apply(ctx context.Context, ev *models.Event) error
}

// LocalPublisher hands events straight to an in-process consumer. Used when no
// broker is configured.
type LocalPublisher struct {
	applier Applier
}

func NewLocalPublisher(a Applier) *LocalPublisher {
	return &LocalPublisher{applier: a}
}

// Publish applies events in order and stops at the first failure.
func (p *LocalPublisher) Publish(ctx context.Context, events []*models.Event) error {
	for _, ev := range events {
		if err := p.applier.Apply(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
