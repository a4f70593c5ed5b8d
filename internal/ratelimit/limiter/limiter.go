// Package limiter applies per-class request budgets on top of a window store,
// switching to an in-memory store while the primary is failing.
package limiter

import (
	"context"
	"log/slog"
	"time"

	"receiptledger/internal/ratelimit/metrics"
	"receiptledger/internal/ratelimit/models"
	"receiptledger/pkg/platform/circuit"
)

// Store records requests in a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit models.Limit, now time.Time) (*models.Result, error)
}

type Limiter struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	limits   map[models.Class]models.Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// WithFallback serves decisions from store while the primary is failing.
func WithFallback(store Store, breaker *circuit.Breaker) Option {
	return func(l *Limiter) {
		l.fallback = store
		l.breaker = breaker
	}
}

func New(primary Store, limits map[models.Class]models.Limit, opts ...Option) *Limiter {
	l := &Limiter{
		primary: primary,
		limits:  limits,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.fallback != nil && l.breaker == nil {
		l.breaker = circuit.New("ratelimit")
	}
	return l
}

// Check records one request from identifier against the class budget. Classes
// without a budget are always allowed.
func (l *Limiter) Check(ctx context.Context, class models.Class, identifier string, now time.Time) (*models.Result, error) {
	limit, ok := l.limits[class]
	if !ok || limit.Requests <= 0 || limit.Window <= 0 {
		return &models.Result{Allowed: true}, nil
	}
	key := models.Key(class, identifier)

	res, err := l.allow(ctx, key, limit, now)
	if err != nil {
		return nil, err
	}
	if !res.Allowed {
		l.metrics.IncrementRejection(string(class))
	}
	return res, nil
}

func (l *Limiter) allow(ctx context.Context, key string, limit models.Limit, now time.Time) (*models.Result, error) {
	if l.fallback == nil {
		return l.primary.Allow(ctx, key, limit, now)
	}
	if !l.breaker.Allow() {
		return l.degraded(ctx, key, limit, now)
	}

	res, err := l.primary.Allow(ctx, key, limit, now)
	if err != nil {
		useFallback, change := l.breaker.RecordFailure()
		if change.Opened {
			l.logger.WarnContext(ctx, "rate limit store failing, using in-memory fallback", "error", err)
			l.metrics.SetFallback(true)
		}
		if useFallback {
			return l.degraded(ctx, key, limit, now)
		}
		return nil, err
	}

	if _, change := l.breaker.RecordSuccess(); change.Closed {
		l.logger.InfoContext(ctx, "rate limit store recovered")
		l.metrics.SetFallback(false)
	}
	return res, nil
}

func (l *Limiter) degraded(ctx context.Context, key string, limit models.Limit, now time.Time) (*models.Result, error) {
	res, err := l.fallback.Allow(ctx, key, limit, now)
	if err != nil {
		return nil, err
	}
	res.Degraded = true
	return res, nil
}
