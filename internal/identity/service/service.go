// Package service implements wallet sign-in: an account asks for a challenge,
// signs its message with personal_sign, and trades the signature for an
// access token.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"receiptledger/internal/identity/models"
	"receiptledger/internal/identity/signature"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
	"receiptledger/pkg/platform/sentinel"
	"receiptledger/pkg/requestcontext"
)

// DefaultChallengeTTL bounds how long a nonce can be signed.
const DefaultChallengeTTL = 5 * time.Minute

const nonceBytes = 16

// ChallengeStore keeps outstanding challenges. Consume must return each
// challenge at most once.
type ChallengeStore interface {
	Save(ctx context.Context, c *models.Challenge) error
	Consume(ctx context.Context, account domain.Account, nonce string) (*models.Challenge, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(account domain.Account, now time.Time) (*models.AccessToken, error)
}

type Service struct {
	challenges   ChallengeStore
	tokens       TokenIssuer
	logger       *slog.Logger
	challengeTTL time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithChallengeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.challengeTTL = ttl
		}
	}
}

func New(challenges ChallengeStore, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		challenges:   challenges,
		tokens:       tokens,
		challengeTTL: DefaultChallengeTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Challenge issues a fresh nonce for account.
func (s *Service) Challenge(ctx context.Context, account domain.Account) (*models.Challenge, error) {
	if account.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "account is required")
	}
	nonce, err := newNonce()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate nonce")
	}

	now := requestcontext.Now(ctx)
	c := &models.Challenge{
		Account:   account,
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.challengeTTL),
	}
	if err := s.challenges.Save(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save challenge")
	}
	return c, nil
}

// SignIn consumes the challenge and, when sig recovers to account, issues an
// access token. A consumed challenge cannot be retried, whatever the outcome.
func (s *Service) SignIn(ctx context.Context, account domain.Account, nonce, sig string) (*models.AccessToken, error) {
	c, err := s.challenges.Consume(ctx, account, nonce)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logFailure(ctx, account, "unknown challenge")
			return nil, dErrors.New(dErrors.CodeUnauthenticated, "unknown or used challenge")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load challenge")
	}

	now := requestcontext.Now(ctx)
	if c.IsExpired(now) {
		s.logFailure(ctx, account, "challenge expired")
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "challenge has expired")
	}

	signer, err := signature.Recover(c.Message(), sig)
	if err != nil {
		s.logFailure(ctx, account, "unrecoverable signature")
		return nil, err
	}
	if signer != account {
		s.logFailure(ctx, account, "signer mismatch")
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "signature does not match account")
	}

	tok, err := s.tokens.Issue(account, now)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "signed_in", account)
	return tok, nil
}

func newNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hexutil.Encode(b), nil
}

func (s *Service) logAudit(ctx context.Context, event string, account domain.Account) {
	if s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, event,
		"event", event,
		"log_type", "audit",
		"account", account.Hex(),
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) logFailure(ctx context.Context, account domain.Account, reason string) {
	if s.logger == nil {
		return
	}
	s.logger.WarnContext(ctx, "sign-in refused",
		"account", account.Hex(),
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
}
