package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"receiptledger/internal/identity/models"
	"receiptledger/internal/platform/redis"
	"receiptledger/pkg/domain"
	"receiptledger/pkg/platform/sentinel"
)

// Redis shares challenges between server instances. Keys expire with the challenge.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func challengeRedisKey(account domain.Account, nonce string) string {
	return redis.Key("identity", "challenge", account.Key(), nonce)
}

func (s *Redis) Save(ctx context.Context, c *models.Challenge) error {
	ttl := c.ExpiresAt.Sub(c.IssuedAt)
	if ttl <= 0 {
		return fmt.Errorf("challenge has no lifetime: %w", sentinel.ErrExpired)
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode challenge: %w", err)
	}
	ok, err := s.client.SetNX(ctx, challengeRedisKey(c.Account, c.Nonce), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("save challenge: %w", err)
	}
	if !ok {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

// Consume reads and deletes the challenge in one round trip.
func (s *Redis) Consume(ctx context.Context, account domain.Account, nonce string) (*models.Challenge, error) {
	raw, err := s.client.GetDel(ctx, challengeRedisKey(account, nonce)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume challenge: %w", err)
	}
	var c models.Challenge
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return &c, nil
}
