package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
	"receiptledger/pkg/platform/httputil"
	"receiptledger/pkg/requestcontext"
)

// TokenValidator resolves a bearer token to the signed-in account.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (domain.Account, error)
}

// GetAccount retrieves the authenticated account from the context.
var GetAccount = requestcontext.Account

// RequireAccount rejects requests without a valid bearer token and stores the
// caller's account in the request context.
func RequireAccount(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthenticated access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Missing or invalid Authorization header"))
				return
			}

			account, err := validator.ValidateToken(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthenticated access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithAccount(ctx, account)))
		})
	}
}
