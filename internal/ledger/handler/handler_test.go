package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"receiptledger/internal/ledger/service"
	"receiptledger/internal/ledger/store"
	"receiptledger/internal/platform/middleware"
	"receiptledger/pkg/currency"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
	"receiptledger/pkg/testutil"
)

var (
	owner      = domain.MustAccount("0xc000000000000000000000000000000000000001")
	restaurant = domain.MustAccount("0xc000000000000000000000000000000000000002")
	customer   = domain.MustAccount("0xc000000000000000000000000000000000000003")
)

// accountTokens treats the bearer token as the caller's address.
type accountTokens struct{}

func (accountTokens) ValidateToken(_ context.Context, token string) (domain.Account, error) {
	return domain.ParseAccount(token)
}

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	now    time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := store.NewInMemory(owner, s.now)
	svc := service.New(ledger, service.WithLogger(logger))

	h := New(svc, logger, currency.New(2), middleware.RequireAccount(accountTokens{}, logger))
	r := chi.NewRouter()
	r.Use(testutil.FixedClock(&s.now))
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path string, caller *domain.Account, body any) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req.Header.Set("Authorization", "Bearer "+caller.Hex())
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (s *HandlerSuite) register() {
	rec := s.do(http.MethodPost, "/businesses", &restaurant, map[string]string{"name": "Test Restaurant"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *HandlerSuite) TestMutationsRequireToken() {
	rec := s.do(http.MethodPost, "/businesses", nil, map[string]string{"name": "Anon"})
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestRequestApproveVerify() {
	s.register()

	rec := s.do(http.MethodPost, "/receipts/requests", &customer, map[string]any{
		"issuer":           restaurant.Hex(),
		"amount_display":   "12.50",
		"description":      "Dinner",
		"transaction_date": s.now.Add(-time.Hour),
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var created ReceiptResponse
	s.decode(rec, &created)
	s.Equal(domain.ReceiptID(1), created.ID)
	s.Equal("1250", created.Amount.String())
	s.Equal("12.5", created.AmountDisplay)
	s.Equal("Test Restaurant", created.VendorName)

	rec = s.do(http.MethodPost, "/receipts/1/approve", &restaurant, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(http.MethodPost, "/receipts/1/verify", &customer, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/receipts/1", nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var got map[string]any
	s.decode(rec, &got)
	s.Equal("verified", got["status"])
	s.Equal("verified", got["effective_status"])

	rec = s.do(http.MethodGet, "/accounts/"+customer.Hex()+"/receipts", nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var list ReceiptIDsResponse
	s.decode(rec, &list)
	s.Equal([]domain.ReceiptID{1}, list.Receipts)

	rec = s.do(http.MethodGet, "/receipts/count", nil, nil)
	var count CountResponse
	s.decode(rec, &count)
	s.Equal(uint64(1), count.Total)
}

func (s *HandlerSuite) TestErrorStatuses() {
	s.register()
	rec := s.do(http.MethodPost, "/receipts/requests", &customer, map[string]any{
		"issuer":           restaurant.Hex(),
		"amount":           "40",
		"transaction_date": s.now.Add(-time.Hour),
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	tests := []struct {
		name   string
		method string
		path   string
		caller *domain.Account
		body   any
		status int
		code   dErrors.Code
	}{
		{"unauthorized approve", http.MethodPost, "/receipts/1/approve", &customer, nil, http.StatusForbidden, dErrors.CodeUnauthorized},
		{"missing reason", http.MethodPost, "/receipts/1/reject", &restaurant, map[string]string{"reason": " "}, http.StatusBadRequest, dErrors.CodeInvalidInput},
		{"absent reason", http.MethodPost, "/receipts/1/reject", &restaurant, map[string]string{}, http.StatusBadRequest, dErrors.CodeInvalidInput},
		{"overlong reason", http.MethodPost, "/receipts/1/reject", &restaurant, map[string]string{"reason": strings.Repeat("x", 513)}, http.StatusBadRequest, dErrors.CodeValidation},
		{"unknown receipt", http.MethodGet, "/receipts/7", nil, nil, http.StatusNotFound, dErrors.CodeNotFound},
		{"bad receipt id", http.MethodGet, "/receipts/abc", nil, nil, http.StatusBadRequest, dErrors.CodeInvalidInput},
		{"unregistered business", http.MethodGet, "/businesses/" + customer.Hex(), nil, nil, http.StatusNotFound, dErrors.CodeNotRegistered},
		{"self receipt", http.MethodPost, "/receipts", &restaurant, map[string]any{"recipient": restaurant.Hex(), "amount": "1"}, http.StatusUnprocessableEntity, dErrors.CodeSelfReceipt},
		{"both amounts", http.MethodPost, "/receipts", &restaurant, map[string]any{"recipient": customer.Hex(), "amount": "1", "amount_display": "1"}, http.StatusBadRequest, dErrors.CodeValidation},
		{"unknown field", http.MethodPost, "/verifiers", &owner, map[string]any{"account": customer.Hex(), "extra": true}, http.StatusBadRequest, dErrors.CodeBadRequest},
		{"already registered", http.MethodPost, "/businesses", &restaurant, map[string]string{"name": "Again"}, http.StatusConflict, dErrors.CodeAlreadyRegistered},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := s.do(tt.method, tt.path, tt.caller, tt.body)
			s.Equal(tt.status, rec.Code, rec.Body.String())
			var body struct {
				Error string `json:"error"`
			}
			s.decode(rec, &body)
			s.Equal(string(tt.code), body.Error)
		})
	}
}

func (s *HandlerSuite) TestGovernanceRoutes() {
	rec := s.do(http.MethodPost, "/verifiers", &owner, map[string]string{"account": customer.Hex()})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/verifiers/"+customer.Hex(), nil, nil)
	var v VerifierResponse
	s.decode(rec, &v)
	s.True(v.Authorized)

	rec = s.do(http.MethodDelete, "/verifiers/"+customer.Hex(), &owner, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/ownership/transfer", &owner, map[string]string{"account": restaurant.Hex()})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var o OwnershipResponse
	s.decode(rec, &o)
	s.Equal(restaurant, o.Owner)
	s.Contains(o.Verifiers, owner)
}
