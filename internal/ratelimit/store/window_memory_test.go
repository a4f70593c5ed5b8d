package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptledger/internal/ratelimit/models"
)

func TestInMemoryAllow(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	limit := models.Limit{Requests: 2, Window: time.Minute}

	t.Run("rejects once the window is full", func(t *testing.T) {
		s := NewInMemory()

		res, err := s.Allow(ctx, "auth:10.0.0.1", limit, t0)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1, res.Remaining)

		res, err = s.Allow(ctx, "auth:10.0.0.1", limit, t0.Add(time.Second))
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 0, res.Remaining)

		res, err = s.Allow(ctx, "auth:10.0.0.1", limit, t0.Add(2*time.Second))
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Equal(t, 2, res.Limit)
		assert.Equal(t, t0.Add(time.Minute), res.ResetAt)
		assert.Equal(t, 58, res.RetryAfter)
	})

	t.Run("window slides", func(t *testing.T) {
		s := NewInMemory()
		_, _ = s.Allow(ctx, "k", limit, t0)
		_, _ = s.Allow(ctx, "k", limit, t0.Add(30*time.Second))

		res, err := s.Allow(ctx, "k", limit, t0.Add(61*time.Second))
		require.NoError(t, err)
		assert.True(t, res.Allowed, "first request left the window")
		assert.Equal(t, 0, res.Remaining)

		res, err = s.Allow(ctx, "k", limit, t0.Add(62*time.Second))
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Equal(t, t0.Add(90*time.Second), res.ResetAt)
		assert.Equal(t, 28, res.RetryAfter)
	})

	t.Run("rejected requests do not consume budget", func(t *testing.T) {
		s := NewInMemory()
		one := models.Limit{Requests: 1, Window: time.Minute}
		_, _ = s.Allow(ctx, "k", one, t0)
		for i := 1; i <= 5; i++ {
			res, err := s.Allow(ctx, "k", one, t0.Add(time.Duration(i)*time.Second))
			require.NoError(t, err)
			assert.False(t, res.Allowed)
		}
		res, err := s.Allow(ctx, "k", one, t0.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})

	t.Run("keys are independent and resettable", func(t *testing.T) {
		s := NewInMemory()
		one := models.Limit{Requests: 1, Window: time.Minute}
		_, _ = s.Allow(ctx, "a", one, t0)

		res, err := s.Allow(ctx, "b", one, t0)
		require.NoError(t, err)
		assert.True(t, res.Allowed)

		require.NoError(t, s.Reset(ctx, "a"))
		res, err = s.Allow(ctx, "a", one, t0)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})
}

func TestKeySanitizesIdentifier(t *testing.T) {
	assert.Equal(t, "auth:__1", models.Key(models.ClassAuth, "::1"))
}
