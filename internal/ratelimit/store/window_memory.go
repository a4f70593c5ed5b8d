package store

import (
	"context"
	"math"
	"sync"
	"time"

	"receiptledger/internal/ratelimit/models"
)

// InMemory is a process-local sliding window store. It backs single-instance
// deployments and serves as the fallback while Redis is unavailable.
type InMemory struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
}

type slidingWindow struct {
	timestamps []time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{windows: make(map[string]*slidingWindow)}
}

// Allow records a request for key at now when the window has room.
func (s *InMemory) Allow(_ context.Context, key string, limit models.Limit, now time.Time) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw := s.windows[key]
	if sw == nil {
		sw = &slidingWindow{}
		s.windows[key] = sw
	}
	sw.cleanup(now, limit.Window)

	if len(sw.timestamps) < limit.Requests {
		sw.timestamps = append(sw.timestamps, now)
		return &models.Result{
			Allowed:   true,
			Limit:     limit.Requests,
			Remaining: limit.Requests - len(sw.timestamps),
			ResetAt:   sw.timestamps[0].Add(limit.Window),
		}, nil
	}

	resetAt := now.Add(limit.Window)
	if len(sw.timestamps) > 0 {
		resetAt = sw.timestamps[0].Add(limit.Window)
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
func (s *InMemory) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

func (sw *slidingWindow) cleanup(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

func retryAfter(resetAt, now time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
