//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"receiptledger/internal/ledger/models"
	"receiptledger/internal/ledger/ports"
	"receiptledger/internal/ledger/service"
	"receiptledger/internal/ledger/store"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
	"receiptledger/pkg/requestcontext"
	"receiptledger/pkg/testutil/containers"
)

var (
	owner      = domain.MustAccount("0x9000000000000000000000000000000000000001")
	restaurant = domain.MustAccount("0x9000000000000000000000000000000000000002")
	customer   = domain.MustAccount("0x9000000000000000000000000000000000000003")
)

type PostgresStoreSuite struct {
	suite.Suite
	pg      *containers.PostgresContainer
	store   *store.Postgres
	service *service.Service
	ctx     context.Context
	now     time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background()))
	s.now = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.store = store.NewPostgres(s.pg.DB)
	s.Require().NoError(s.store.Bootstrap(s.ctx, owner, s.now))
	s.service = service.New(s.store)
}

func (s *PostgresStoreSuite) details() models.ReceiptDetails {
	return models.ReceiptDetails{
		Description:     "Team lunch",
		Amount:          domain.NewAmount(4200),
		DocumentRef:     "ipfs://receipt",
		TransactionDate: s.now.Add(-time.Hour),
	}
}

func (s *PostgresStoreSuite) TestBootstrapIsIdempotent() {
	s.Require().NoError(s.store.Bootstrap(s.ctx, restaurant, s.now))

	gov, err := s.store.Stores().Governance.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(owner, gov.Owner)
	s.True(gov.HasVerifier(owner))
}

func (s *PostgresStoreSuite) TestLifecycleRoundTrip() {
	_, err := s.service.RegisterBusiness(s.ctx, restaurant, "Bistro", "Dinner only")
	s.Require().NoError(err)
	r, err := s.service.RequestReceipt(s.ctx, customer, restaurant, s.details())
	s.Require().NoError(err)
	s.Equal(domain.ReceiptID(1), r.ID)
	_, err = s.service.Approve(s.ctx, restaurant, r.ID)
	s.Require().NoError(err)
	_, err = s.service.Verify(s.ctx, customer, r.ID)
	s.Require().NoError(err)

	got, err := s.service.GetReceipt(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, got.Status)
	s.Equal("4200", got.Amount.String())
	s.Equal("Bistro", got.VendorName)
	s.True(got.Deadline.Equal(s.now.Add(service.DefaultRequestWindow)))

	ids, err := s.service.ReceiptsOf(s.ctx, customer)
	s.Require().NoError(err)
	s.Equal([]domain.ReceiptID{1}, ids)

	events, err := s.store.Unpublished(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(events, 4)
	for i, ev := range events {
		s.Equal(uint64(i+1), ev.Sequence)
	}
	s.Equal(models.EventReceiptVerified, events[3].Kind)
}

func (s *PostgresStoreSuite) TestRefusedTransitionWritesNothing() {
	_, err := s.service.RegisterBusiness(s.ctx, restaurant, "Bistro", "")
	s.Require().NoError(err)
	r, err := s.service.RequestReceipt(s.ctx, customer, restaurant, s.details())
	s.Require().NoError(err)

	_, err = s.service.Approve(s.ctx, customer, r.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	got, err := s.service.GetReceipt(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRequested, got.Status)

	events, err := s.store.Unpublished(s.ctx, 0)
	s.Require().NoError(err)
	s.Len(events, 2)
}

func (s *PostgresStoreSuite) TestRollbackDiscardsEvent() {
	boom := errors.New("boom")
	err := s.store.RunInTx(s.ctx, func(ctx context.Context, st ports.Stores) error {
		ev := models.NewEvent(models.EventVerifierAdded, owner, s.now)
		ev.Counterparty = customer
		if err := st.Events.Append(ctx, ev); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	events, err := s.store.Unpublished(s.ctx, 0)
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *PostgresStoreSuite) TestOutboxCursor() {
	_, err := s.service.RegisterBusiness(s.ctx, restaurant, "Bistro", "")
	s.Require().NoError(err)
	s.Require().NoError(s.service.AddVerifier(s.ctx, owner, customer))
	s.Require().NoError(s.service.RemoveVerifier(s.ctx, owner, customer))

	batch, err := s.store.Unpublished(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(batch, 2)
	s.Require().NoError(s.store.MarkPublished(s.ctx, batch[1].Sequence))

	rest, err := s.store.Unpublished(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(rest, 1)
	s.Equal(uint64(3), rest[0].Sequence)
	s.Equal(models.EventVerifierRemoved, rest[0].Kind)
}

func (s *PostgresStoreSuite) TestConcurrentRequestsGetDistinctIDs() {
	_, err := s.service.RegisterBusiness(s.ctx, restaurant, "Bistro", "")
	s.Require().NoError(err)

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.RequestReceipt(s.ctx, customer, restaurant, s.details())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	total, err := s.service.TotalReceipts(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(writers), total)

	events, err := s.store.Unpublished(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(events, writers+1)
	for i, ev := range events {
		s.Equal(uint64(i+1), ev.Sequence)
	}
}
