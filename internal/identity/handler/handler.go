package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"receiptledger/internal/identity/models"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
	"receiptledger/pkg/platform/httputil"
	"receiptledger/pkg/requestcontext"
)

// Service is the wallet sign-in flow.
type Service interface {
	Challenge(ctx context.Context, account domain.Account) (*models.Challenge, error)
	SignIn(ctx context.Context, account domain.Account, nonce, sig string) (*models.AccessToken, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/challenge", h.handleChallenge)
	r.Post("/auth/token", h.handleToken)
}

type ChallengeRequest struct {
	Account string `json:"account" validate:"required"`

	parsed domain.Account
}

func (r *ChallengeRequest) Normalize() {
	r.Account = strings.TrimSpace(r.Account)
}

func (r *ChallengeRequest) Validate() error {
	a, err := domain.ParseAccount(r.Account)
	if err != nil {
		return err
	}
	r.parsed = a
	return nil
}

type TokenRequest struct {
	Account   string `json:"account" validate:"required"`
	Nonce     string `json:"nonce" validate:"required,max=66"`
	Signature string `json:"signature" validate:"required,max=140"`

	parsed domain.Account
}

func (r *TokenRequest) Normalize() {
	r.Account = strings.TrimSpace(r.Account)
	r.Nonce = strings.TrimSpace(r.Nonce)
	r.Signature = strings.TrimSpace(r.Signature)
}

func (r *TokenRequest) Validate() error {
	a, err := domain.ParseAccount(r.Account)
	if err != nil {
		return err
	}
	r.parsed = a
	return nil
}

type ChallengeResponse struct {
	Account   domain.Account `json:"account"`
	Nonce     string         `json:"nonce"`
	Message   string         `json:"message"`
	ExpiresAt time.Time      `json:"expires_at"`
}

type TokenResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	Account     domain.Account `json:"account"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

func (h *Handler) handleChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[ChallengeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.service.Challenge(ctx, req.parsed)
	if err != nil {
		h.fail(ctx, w, "failed to issue challenge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ChallengeResponse{
		Account:   c.Account,
		Nonce:     c.Nonce,
		Message:   c.Message(),
		ExpiresAt: c.ExpiresAt,
	})
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[TokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tok, err := h.service.SignIn(ctx, req.parsed, req.Nonce, req.Signature)
	if err != nil {
		h.fail(ctx, w, "sign-in failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken: tok.Token,
		TokenType:   "Bearer",
		Account:     tok.Account,
		ExpiresAt:   tok.ExpiresAt,
	})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
