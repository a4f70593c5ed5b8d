package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"receiptledger/internal/ledger/models"
	"receiptledger/pkg/currency"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
	"receiptledger/pkg/platform/httputil"
	"receiptledger/pkg/requestcontext"
)

// Service defines the ledger operations exposed over HTTP.
type Service interface {
	RegisterBusiness(ctx context.Context, caller domain.Account, name, description string) (*models.Business, error)
	VerifyBusiness(ctx context.Context, caller, target domain.Account) (*models.Business, error)
	DeactivateBusiness(ctx context.Context, caller, target domain.Account) (*models.Business, error)
	AddVerifier(ctx context.Context, caller, account domain.Account) error
	RemoveVerifier(ctx context.Context, caller, account domain.Account) error
	TransferOwnership(ctx context.Context, caller, newOwner domain.Account) error

	RequestReceipt(ctx context.Context, customer, issuer domain.Account, details models.ReceiptDetails) (*models.Receipt, error)
	IssueReceipt(ctx context.Context, issuer, customer domain.Account, details models.ReceiptDetails) (*models.Receipt, error)
	Approve(ctx context.Context, caller domain.Account, id domain.ReceiptID) (*models.Receipt, error)
	Reject(ctx context.Context, caller domain.Account, id domain.ReceiptID, reason string) (*models.Receipt, error)
	Verify(ctx context.Context, caller domain.Account, id domain.ReceiptID) (*models.Receipt, error)
	Dispute(ctx context.Context, caller domain.Account, id domain.ReceiptID, reason string) (*models.Receipt, error)
	Cancel(ctx context.Context, caller domain.Account, id domain.ReceiptID) (*models.Receipt, error)

	GetReceipt(ctx context.Context, id domain.ReceiptID) (*models.Receipt, error)
	GetBusiness(ctx context.Context, account domain.Account) (*models.Business, error)
	ReceiptsOf(ctx context.Context, account domain.Account) ([]domain.ReceiptID, error)
	IssuedBy(ctx context.Context, business domain.Account) ([]domain.ReceiptID, error)
	PendingFor(ctx context.Context, issuer domain.Account) ([]domain.ReceiptID, error)
	TotalReceipts(ctx context.Context) (uint64, error)
	IsAuthorizedVerifier(ctx context.Context, account domain.Account) (bool, error)
	Owner(ctx context.Context) (domain.Account, error)
	Verifiers(ctx context.Context) ([]domain.Account, error)
}

// Handler wires ledger endpoints to the ledger service.
type Handler struct {
	service        Service
	logger         *slog.Logger
	converter      currency.Converter
	requireAccount func(http.Handler) http.Handler
}

// New constructs a ledger handler. requireAccount guards every mutating route.
func New(service Service, logger *slog.Logger, converter currency.Converter, requireAccount func(http.Handler) http.Handler) *Handler {
	return &Handler{
		service:        service,
		logger:         logger,
		converter:      converter,
		requireAccount: requireAccount,
	}
}

// Register mounts ledger endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/businesses/{account}", h.handleGetBusiness)
	r.Get("/businesses/{account}/receipts", h.handleIssuedBy)
	r.Get("/businesses/{account}/pending", h.handlePending)
	r.Get("/accounts/{account}/receipts", h.handleReceiptsOf)
	r.Get("/receipts/count", h.handleCount)
	r.Get("/receipts/{id}", h.handleGetReceipt)
	r.Get("/verifiers/{account}", h.handleIsVerifier)
	r.Get("/ownership", h.handleOwnership)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAccount)

		r.Post("/businesses", h.handleRegisterBusiness)
		r.Post("/businesses/{account}/verify", h.handleVerifyBusiness)
		r.Post("/businesses/{account}/deactivate", h.handleDeactivateBusiness)
		r.Post("/verifiers", h.handleAddVerifier)
		r.Delete("/verifiers/{account}", h.handleRemoveVerifier)
		r.Post("/ownership/transfer", h.handleTransferOwnership)

		r.Post("/receipts/requests", h.handleRequestReceipt)
		r.Post("/receipts", h.handleIssueReceipt)
		r.Post("/receipts/{id}/approve", h.handleApprove)
		r.Post("/receipts/{id}/reject", h.handleReject)
		r.Post("/receipts/{id}/verify", h.handleVerify)
		r.Post("/receipts/{id}/dispute", h.handleDispute)
		r.Post("/receipts/{id}/cancel", h.handleCancel)
	})
}

func (h *Handler) handleRegisterBusiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[RegisterBusinessRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	b, err := h.service.RegisterBusiness(ctx, caller, req.Name, req.Description)
	if err != nil {
		h.fail(w, r, "failed to register business", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, b)
}

func (h *Handler) handleVerifyBusiness(w http.ResponseWriter, r *http.Request) {
	h.businessChange(w, r, "failed to verify business", h.service.VerifyBusiness)
}

func (h *Handler) handleDeactivateBusiness(w http.ResponseWriter, r *http.Request) {
	h.businessChange(w, r, "failed to deactivate business", h.service.DeactivateBusiness)
}

func (h *Handler) businessChange(w http.ResponseWriter, r *http.Request, failure string, fn func(context.Context, domain.Account, domain.Account) (*models.Business, error)) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	target, ok := h.accountParam(w, r)
	if !ok {
		return
	}

	b, err := fn(r.Context(), caller, target)
	if err != nil {
		h.fail(w, r, failure, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) handleAddVerifier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AccountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	account := req.ParsedAccount()
	if err := h.service.AddVerifier(ctx, caller, account); err != nil {
		h.fail(w, r, "failed to add verifier", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifierResponse{Account: account, Authorized: true})
}

func (h *Handler) handleRemoveVerifier(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	account, ok := h.accountParam(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveVerifier(r.Context(), caller, account); err != nil {
		h.fail(w, r, "failed to remove verifier", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifierResponse{Account: account, Authorized: false})
}

func (h *Handler) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AccountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	if err := h.service.TransferOwnership(ctx, caller, req.ParsedAccount()); err != nil {
		h.fail(w, r, "failed to transfer ownership", err)
		return
	}
	h.writeOwnership(w, r)
}

func (h *Handler) handleRequestReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RequestReceiptRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	details, err := req.Details(h.converter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	receipt, err := h.service.RequestReceipt(ctx, caller, req.ParsedIssuer(), details)
	if err != nil {
		h.fail(w, r, "failed to request receipt", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toReceiptResponse(receipt, h.converter, requestcontext.Now(ctx)))
}

func (h *Handler) handleIssueReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[IssueReceiptRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	details, err := req.Details(h.converter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	receipt, err := h.service.IssueReceipt(ctx, caller, req.ParsedRecipient(), details)
	if err != nil {
		h.fail(w, r, "failed to issue receipt", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toReceiptResponse(receipt, h.converter, requestcontext.Now(ctx)))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.receiptChange(w, r, "failed to approve receipt", h.service.Approve)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	h.receiptChange(w, r, "failed to verify receipt", h.service.Verify)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.receiptChange(w, r, "failed to cancel receipt", h.service.Cancel)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.receiptChangeWithReason(w, r, "failed to reject receipt", h.service.Reject)
}

func (h *Handler) handleDispute(w http.ResponseWriter, r *http.Request) {
	h.receiptChangeWithReason(w, r, "failed to dispute receipt", h.service.Dispute)
}

type receiptFn func(ctx context.Context, caller domain.Account, id domain.ReceiptID) (*models.Receipt, error)

type reasonFn func(ctx context.Context, caller domain.Account, id domain.ReceiptID, reason string) (*models.Receipt, error)

func (h *Handler) receiptChange(w http.ResponseWriter, r *http.Request, failure string, fn receiptFn) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.receiptIDParam(w, r)
	if !ok {
		return
	}

	receipt, err := fn(r.Context(), caller, id)
	if err != nil {
		h.fail(w, r, failure, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toReceiptResponse(receipt, h.converter, requestcontext.Now(r.Context())))
}

func (h *Handler) receiptChangeWithReason(w http.ResponseWriter, r *http.Request, failure string, fn reasonFn) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.receiptIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReasonRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	receipt, err := fn(ctx, caller, id, req.Reason)
	if err != nil {
		h.fail(w, r, failure, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toReceiptResponse(receipt, h.converter, requestcontext.Now(ctx)))
}

func (h *Handler) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.receiptIDParam(w, r)
	if !ok {
		return
	}
	receipt, err := h.service.GetReceipt(r.Context(), id)
	if err != nil {
		h.fail(w, r, "failed to load receipt", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toReceiptResponse(receipt, h.converter, requestcontext.Now(r.Context())))
}

func (h *Handler) handleGetBusiness(w http.ResponseWriter, r *http.Request) {
	account, ok := h.accountParam(w, r)
	if !ok {
		return
	}
	b, err := h.service.GetBusiness(r.Context(), account)
	if err != nil {
		h.fail(w, r, "failed to load business", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) handleReceiptsOf(w http.ResponseWriter, r *http.Request) {
	h.listIDs(w, r, h.service.ReceiptsOf)
}

func (h *Handler) handleIssuedBy(w http.ResponseWriter, r *http.Request) {
	h.listIDs(w, r, h.service.IssuedBy)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	h.listIDs(w, r, h.service.PendingFor)
}

func (h *Handler) listIDs(w http.ResponseWriter, r *http.Request, fn func(context.Context, domain.Account) ([]domain.ReceiptID, error)) {
	account, ok := h.accountParam(w, r)
	if !ok {
		return
	}
	ids, err := fn(r.Context(), account)
	if err != nil {
		h.fail(w, r, "failed to list receipts", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ReceiptIDsResponse{Account: account, Receipts: ids})
}

func (h *Handler) handleCount(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.TotalReceipts(r.Context())
	if err != nil {
		h.fail(w, r, "failed to count receipts", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CountResponse{Total: total})
}

func (h *Handler) handleIsVerifier(w http.ResponseWriter, r *http.Request) {
	account, ok := h.accountParam(w, r)
	if !ok {
		return
	}
	authorized, err := h.service.IsAuthorizedVerifier(r.Context(), account)
	if err != nil {
		h.fail(w, r, "failed to check verifier", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifierResponse{Account: account, Authorized: authorized})
}

func (h *Handler) handleOwnership(w http.ResponseWriter, r *http.Request) {
	h.writeOwnership(w, r)
}

func (h *Handler) writeOwnership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := h.service.Owner(ctx)
	if err != nil {
		h.fail(w, r, "failed to load owner", err)
		return
	}
	verifiers, err := h.service.Verifiers(ctx)
	if err != nil {
		h.fail(w, r, "failed to load verifiers", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OwnershipResponse{Owner: owner, Verifiers: verifiers})
}

// caller returns the authenticated account or writes 401.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.Account, bool) {
	caller := requestcontext.Account(r.Context())
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "authentication required"))
		return domain.Account{}, false
	}
	return caller, true
}

func (h *Handler) accountParam(w http.ResponseWriter, r *http.Request) (domain.Account, bool) {
	account, err := domain.ParseAccount(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.Account{}, false
	}
	return account, true
}

func (h *Handler) receiptIDParam(w http.ResponseWriter, r *http.Request) (domain.ReceiptID, bool) {
	id, err := domain.ParseReceiptID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return id, true
}

// fail writes err. Internal failures are logged at error level; refused
// operations are the caller's problem and only logged at debug.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	args := []any{
		"request_id", requestcontext.RequestID(ctx),
		"caller", requestcontext.Account(ctx).Hex(),
		"error", err,
	}
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, args...)
	} else {
		h.logger.DebugContext(ctx, msg, args...)
	}
	httputil.WriteError(w, err)
}
