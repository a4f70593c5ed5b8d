package testutil

import (
	"net/http"
	"time"

	"receiptledger/pkg/requestcontext"
)

// WithTime pins the request clock, as the request-time middleware would.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// FixedClock is middleware that pins every request's clock to *now. Tests move
// time by assigning through the pointer.
func FixedClock(now *time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, WithTime(r, *now))
		})
	}
}
