package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"receiptledger/internal/indexer/models"
	"receiptledger/internal/indexer/query"
	ledger "receiptledger/internal/ledger/models"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
	"receiptledger/pkg/platform/httputil"
	"receiptledger/pkg/requestcontext"
)

// Service defines the indexer reads exposed over HTTP.
type Service interface {
	Receipt(ctx context.Context, id domain.ReceiptID, now time.Time) (*query.ReceiptResult, error)
	Business(ctx context.Context, owner domain.Account) (*models.BusinessView, error)
	Receipts(ctx context.Context, party ledger.Party, account domain.Account, status *ledger.Status, now time.Time) ([]*query.ReceiptResult, error)
	Pending(ctx context.Context, issuer domain.Account, now time.Time) ([]*query.ReceiptResult, error)
	Summary(ctx context.Context, party ledger.Party, account domain.Account, now time.Time) (*models.Summary, error)
	Activity(ctx context.Context, id domain.ReceiptID) ([]*models.Activity, error)
	Checkpoint(ctx context.Context) (uint64, error)
}

// Handler serves dashboard views built by the indexer.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the view endpoints under /views.
func (h *Handler) Register(r chi.Router) {
	r.Route("/views", func(r chi.Router) {
		r.Get("/checkpoint", h.handleCheckpoint)
		r.Get("/receipts/{id}", h.handleReceipt)
		r.Get("/receipts/{id}/activity", h.handleActivity)
		r.Get("/accounts/{account}/receipts", h.handleReceipts(ledger.PartyRecipient))
		r.Get("/accounts/{account}/summary", h.handleSummary(ledger.PartyRecipient))
		r.Get("/businesses/{account}", h.handleBusiness)
		r.Get("/businesses/{account}/receipts", h.handleReceipts(ledger.PartyIssuer))
		r.Get("/businesses/{account}/summary", h.handleSummary(ledger.PartyIssuer))
		r.Get("/businesses/{account}/pending", h.handlePending)
	})
}

type listResponse struct {
	Account  domain.Account         `json:"account"`
	Receipts []*query.ReceiptResult `json:"receipts"`
}

type checkpointResponse struct {
	Sequence uint64 `json:"sequence"`
}

func (h *Handler) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	seq, err := h.service.Checkpoint(r.Context())
	if err != nil {
		h.fail(w, r, "failed to read checkpoint", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, checkpointResponse{Sequence: seq})
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseReceiptID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.service.Receipt(r.Context(), id, requestcontext.Now(r.Context()))
	if err != nil {
		h.fail(w, r, "failed to load receipt view", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseReceiptID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	activity, err := h.service.Activity(r.Context(), id)
	if err != nil {
		h.fail(w, r, "failed to load activity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, activity)
}

func (h *Handler) handleBusiness(w http.ResponseWriter, r *http.Request) {
	account, err := domain.ParseAccount(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	b, err := h.service.Business(r.Context(), account)
	if err != nil {
		h.fail(w, r, "failed to load business view", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

// handleReceipts accepts an optional ?status= filter on the effective status.
func (h *Handler) handleReceipts(party ledger.Party) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := domain.ParseAccount(chi.URLParam(r, "account"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		var filter *ledger.Status
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := ledger.ParseStatus(raw)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			filter = &status
		}

		ctx := r.Context()
		results, err := h.service.Receipts(ctx, party, account, filter, requestcontext.Now(ctx))
		if err != nil {
			h.fail(w, r, "failed to list receipt views", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, listResponse{Account: account, Receipts: results})
	}
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	account, err := domain.ParseAccount(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ctx := r.Context()
	results, err := h.service.Pending(ctx, account, requestcontext.Now(ctx))
	if err != nil {
		h.fail(w, r, "failed to list pending views", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Account: account, Receipts: results})
}

func (h *Handler) handleSummary(party ledger.Party) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := domain.ParseAccount(chi.URLParam(r, "account"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		ctx := r.Context()
		sum, err := h.service.Summary(ctx, party, account, requestcontext.Now(ctx))
		if err != nil {
			h.fail(w, r, "failed to summarize receipts", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, sum)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), msg,
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
