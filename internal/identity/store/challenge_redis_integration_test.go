//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"receiptledger/internal/identity/models"
	"receiptledger/internal/identity/store"
	"receiptledger/pkg/domain"
	"receiptledger/pkg/platform/sentinel"
	"receiptledger/pkg/testutil/containers"
)

type RedisChallengeSuite struct {
	suite.Suite
	redis   *containers.RedisContainer
	store   *store.Redis
	account domain.Account
}

func TestRedisChallengeSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisChallengeSuite))
}

func (s *RedisChallengeSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = store.NewRedis(s.redis.Platform())
	s.account = domain.MustAccount("0x9200000000000000000000000000000000000001")
}

func (s *RedisChallengeSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisChallengeSuite) challenge(nonce string, ttl time.Duration) *models.Challenge {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Challenge{Account: s.account, Nonce: nonce, IssuedAt: now, ExpiresAt: now.Add(ttl)}
}

func (s *RedisChallengeSuite) TestSaveAndConsumeOnce() {
	ctx := context.Background()
	c := s.challenge("0xaa", time.Minute)
	s.Require().NoError(s.store.Save(ctx, c))
	s.ErrorIs(s.store.Save(ctx, c), sentinel.ErrAlreadyUsed)

	got, err := s.store.Consume(ctx, s.account, "0xaa")
	s.Require().NoError(err)
	s.Equal(c.Message(), got.Message())

	_, err = s.store.Consume(ctx, s.account, "0xaa")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisChallengeSuite) TestConcurrentConsumeHasOneWinner() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.challenge("0xbb", time.Minute)))

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.Consume(ctx, s.account, "0xbb"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
}

func (s *RedisChallengeSuite) TestKeyExpiresWithChallenge() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.challenge("0xcc", 30*time.Second)))

	key := "receipt-ledger:identity:challenge:" + s.account.Key() + ":0xcc"
	ttl, err := s.redis.Client.TTL(ctx, key).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, 30*time.Second)
}
