// Package token issues and validates HS256 access tokens whose subject is the
// signed-in account.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"receiptledger/internal/identity/models"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
	"receiptledger/pkg/requestcontext"
)

// Claims are the access token claims. Subject holds the account address.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTService signs and checks access tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

func NewJWTService(signingKey, issuer string, ttl time.Duration) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
	}
}

// Issue signs a token for account valid from now for the configured TTL.
func (s *JWTService) Issue(account domain.Account, now time.Time) (*models.AccessToken, error) {
	expiresAt := now.Add(s.ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.Hex(),
			Issuer:    s.issuer,
			Audience:  []string{s.issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	})

	signed, err := t.SignedString(s.signingKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign access token")
	}
	return &models.AccessToken{Token: signed, Account: account, ExpiresAt: expiresAt}, nil
}

// ValidateToken checks the signature, issuer and expiry against the request
// clock and returns the token's account.
func (s *JWTService) ValidateToken(ctx context.Context, tokenString string) (domain.Account, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return requestcontext.Now(ctx) }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Account{}, dErrors.New(dErrors.CodeUnauthenticated, "token has expired")
		}
		return domain.Account{}, dErrors.New(dErrors.CodeUnauthenticated, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Account{}, dErrors.New(dErrors.CodeUnauthenticated, "invalid token claims")
	}
	account, err := domain.ParseAccount(claims.Subject)
	if err != nil {
		return domain.Account{}, dErrors.New(dErrors.CodeUnauthenticated, "invalid token subject")
	}
	return account, nil
}
