// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them. Keeping the package free of
// net/http lets services and workers depend on it directly.
//
// Usage in services (read values):
//
//	caller := requestcontext.Account(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithAccount(ctx, caller)
package requestcontext

import (
	"context"
	"time"

	"receiptledger/pkg/domain"
)

type (
	accountKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyAccount     = accountKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Account retrieves the authenticated caller. Returns the zero account if not set.
func Account(ctx context.Context) domain.Account {
	if a, ok := ctx.Value(ContextKeyAccount).(domain.Account); ok {
		return a
	}
	return domain.Account{}
}

// WithAccount injects the authenticated caller into the context.
func WithAccount(ctx context.Context, account domain.Account) context.Context {
	return context.WithValue(ctx, ContextKeyAccount, account)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, consumers, CLI).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Used by the request-time middleware, by workers that need one clock per batch,
// and by tests that move the clock past a request deadline.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
