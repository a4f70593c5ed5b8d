package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"receiptledger/internal/indexer/projector"
	"receiptledger/internal/indexer/query"
	"receiptledger/internal/indexer/store"
	ledger "receiptledger/internal/ledger/models"
	"receiptledger/internal/ledger/service"
	ledgerstore "receiptledger/internal/ledger/store"
	"receiptledger/pkg/domain"
	"receiptledger/pkg/requestcontext"
	"receiptledger/pkg/testutil"
)

var (
	owner      = domain.MustAccount("0xd000000000000000000000000000000000000001")
	restaurant = domain.MustAccount("0xd000000000000000000000000000000000000002")
	customer   = domain.MustAccount("0xd000000000000000000000000000000000000003")
)

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	now    time.Time
	clock  time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

// SetupTest indexes a verified receipt and an open request.
func (s *HandlerSuite) SetupTest() {
	s.now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	s.clock = s.now
	ctx := requestcontext.WithTime(context.Background(), s.now)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	l := ledgerstore.NewInMemory(owner, s.now)
	svc := service.New(l, service.WithRequestWindow(24*time.Hour))
	details := ledger.ReceiptDetails{
		Description:     "Coffee",
		Amount:          domain.NewAmount(350),
		TransactionDate: s.now.Add(-time.Hour),
	}
	_, err := svc.RegisterBusiness(ctx, restaurant, "Corner Cafe", "")
	s.Require().NoError(err)
	first, err := svc.RequestReceipt(ctx, customer, restaurant, details)
	s.Require().NoError(err)
	_, err = svc.Approve(ctx, restaurant, first.ID)
	s.Require().NoError(err)
	_, err = svc.Verify(ctx, customer, first.ID)
	s.Require().NoError(err)
	_, err = svc.RequestReceipt(ctx, customer, restaurant, details)
	s.Require().NoError(err)

	views := store.NewInMemory()
	p := projector.New(views)
	events, err := l.Unpublished(ctx, 0)
	s.Require().NoError(err)
	for _, ev := range events {
		s.Require().NoError(p.Apply(ctx, ev))
	}

	r := chi.NewRouter()
	r.Use(testutil.FixedClock(&s.clock))
	New(query.New(views), logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) get(path string, v any) int {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	if v != nil {
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
	}
	return rec.Code
}

func (s *HandlerSuite) TestReceiptView() {
	var got map[string]any
	s.Require().Equal(http.StatusOK, s.get("/views/receipts/1", &got))
	s.Equal("verified", got["status"])
	s.Equal("verified", got["effective_status"])
	s.Equal("Corner Cafe", got["vendor_name"])
	s.Equal("350", got["amount"])

	var activity []map[string]any
	s.Require().Equal(http.StatusOK, s.get("/views/receipts/1/activity", &activity))
	s.Len(activity, 3)
	s.Equal("ReceiptVerified", activity[2]["kind"])
}

func (s *HandlerSuite) TestStatusFilterUsesRequestClock() {
	var list struct {
		Receipts []map[string]any `json:"receipts"`
	}
	path := "/views/accounts/" + customer.Hex() + "/receipts?status=requested"
	s.Require().Equal(http.StatusOK, s.get(path, &list))
	s.Len(list.Receipts, 1)

	s.clock = s.now.Add(25 * time.Hour)
	s.Require().Equal(http.StatusOK, s.get(path, &list))
	s.Empty(list.Receipts)

	s.Require().Equal(http.StatusOK, s.get("/views/accounts/"+customer.Hex()+"/receipts?status=expired", &list))
	s.Require().Len(list.Receipts, 1)
	s.Equal("expired", list.Receipts[0]["effective_status"])
	s.Equal("requested", list.Receipts[0]["status"])
}

func (s *HandlerSuite) TestBusinessViews() {
	var b map[string]any
	s.Require().Equal(http.StatusOK, s.get("/views/businesses/"+restaurant.Hex(), &b))
	s.Equal("Corner Cafe", b["name"])

	var pending struct {
		Receipts []map[string]any `json:"receipts"`
	}
	s.Require().Equal(http.StatusOK, s.get("/views/businesses/"+restaurant.Hex()+"/pending", &pending))
	s.Require().Len(pending.Receipts, 1)
	s.EqualValues(2, pending.Receipts[0]["id"])

	var sum struct {
		Total    int            `json:"total"`
		ByStatus map[string]int `json:"by_status"`
	}
	s.Require().Equal(http.StatusOK, s.get("/views/businesses/"+restaurant.Hex()+"/summary", &sum))
	s.Equal(2, sum.Total)
	s.Equal(map[string]int{"verified": 1, "requested": 1}, sum.ByStatus)

	var cp checkpointResponse
	s.Require().Equal(http.StatusOK, s.get("/views/checkpoint", &cp))
	s.Equal(uint64(5), cp.Sequence)
}

func (s *HandlerSuite) TestErrors() {
	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"bad id", "/views/receipts/x", http.StatusBadRequest},
		{"unknown receipt", "/views/receipts/9", http.StatusNotFound},
		{"bad account", "/views/accounts/nope/receipts", http.StatusBadRequest},
		{"bad status", "/views/accounts/" + customer.Hex() + "/receipts?status=lost", http.StatusBadRequest},
		{"unknown business", "/views/businesses/" + customer.Hex(), http.StatusNotFound},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.status, s.get(tt.path, nil))
		})
	}
}
