package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"receiptledger/internal/platform/redis"
	"receiptledger/internal/ratelimit/models"
)

// Redis keeps each window as a sorted set of request timestamps so every server
// instance shares one budget per client.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func windowKey(key string) string {
	return redis.Key("ratelimit", key)
}

// Allow records the request and then counts the window. A request that lands
// over the limit is removed again, so rejected calls never consume budget.
func (s *Redis) Allow(ctx context.Context, key string, limit models.Limit, now time.Time) (*models.Result, error) {
	k := windowKey(key)
	member := uuid.NewString()
	cutoff := now.Add(-limit.Window).UnixNano()

	var (
		card   *goredis.IntCmd
		oldest *goredis.ZSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(cutoff, 10))
		p.ZAdd(ctx, k, goredis.Z{Score: float64(now.UnixNano()), Member: member})
		card = p.ZCard(ctx, k)
		oldest = p.ZRangeWithScores(ctx, k, 0, 0)
		p.PExpire(ctx, k, limit.Window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record request: %w", err)
	}

	resetAt := now.Add(limit.Window)
	if zs := oldest.Val(); len(zs) > 0 {
		resetAt = time.Unix(0, int64(zs[0].Score)).Add(limit.Window)
	}

	count := int(card.Val())
	if count <= limit.Requests {
		return &models.Result{
			Allowed:   true,
			Limit:     limit.Requests,
			Remaining: limit.Requests - count,
			ResetAt:   resetAt,
		}, nil
	}

	if err := s.client.ZRem(ctx, k, member).Err(); err != nil {
		return nil, fmt.Errorf("release rejected request: %w", err)
	}
	return &models.Result{
		Allowed:    false,
		Limit:      limit.Requests,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retryAfter(resetAt, now),
	}, nil
}

// Reset forgets every request recorded for key.
func (s *Redis) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, windowKey(key)).Err(); err != nil {
		return fmt.Errorf("reset window: %w", err)
	}
	return nil
}
