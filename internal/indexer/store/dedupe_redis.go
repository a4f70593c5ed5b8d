package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"receiptledger/internal/platform/redis"
	"receiptledger/pkg/platform/circuit"
)

const defaultDedupeTTL = 24 * time.Hour

// RedisDedupe remembers recently applied event ids so redeliveries are dropped
// before touching the view store. The view store checkpoint stays authoritative,
// so while Redis is failing the breaker opens and lookups report unseen.
type RedisDedupe struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *circuit.Breaker
}

func NewRedisDedupe(client *redis.Client, ttl time.Duration) *RedisDedupe {
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	return &RedisDedupe{
		client:  client,
		ttl:     ttl,
		breaker: circuit.New("indexer-dedupe"),
	}
}

func dedupeKey(id uuid.UUID) string {
	return redis.Key("indexer", "applied", id.String())
}

// Seen reports whether id was marked within the TTL.
func (d *RedisDedupe) Seen(ctx context.Context, id uuid.UUID) (bool, error) {
	if !d.breaker.Allow() {
		return false, nil
	}
	n, err := d.client.Exists(ctx, dedupeKey(id)).Result()
	if err != nil {
		d.breaker.RecordFailure()
		return false, fmt.Errorf("check applied event: %w", err)
	}
	d.breaker.RecordSuccess()
	return n > 0, nil
}

// Mark records id as applied.
func (d *RedisDedupe) Mark(ctx context.Context, id uuid.UUID) error {
	if !d.breaker.Allow() {
		return nil
	}
	if err := d.client.Set(ctx, dedupeKey(id), 1, d.ttl).Err(); err != nil {
		d.breaker.RecordFailure()
		return fmt.Errorf("mark applied event: %w", err)
	}
	d.breaker.RecordSuccess()
	return nil
}
