//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"receiptledger/internal/indexer/models"
	"receiptledger/internal/indexer/projector"
	"receiptledger/internal/indexer/store"
	ledger "receiptledger/internal/ledger/models"
	"receiptledger/internal/ledger/service"
	ledgerstore "receiptledger/internal/ledger/store"
	"receiptledger/pkg/domain"
	"receiptledger/pkg/platform/sentinel"
	"receiptledger/pkg/requestcontext"
	"receiptledger/pkg/testutil/containers"
)

var (
	owner      = domain.MustAccount("0x9100000000000000000000000000000000000001")
	restaurant = domain.MustAccount("0x9100000000000000000000000000000000000002")
	customer   = domain.MustAccount("0x9100000000000000000000000000000000000003")
)

type PostgresViewsSuite struct {
	suite.Suite
	pg     *containers.PostgresContainer
	views  *store.Postgres
	ctx    context.Context
	now    time.Time
	events []*ledger.Event
}

func TestPostgresViewsSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresViewsSuite))
}

func (s *PostgresViewsSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
}

func (s *PostgresViewsSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background()))
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.views = store.NewPostgres(s.pg.DB)

	l := ledgerstore.NewInMemory(owner, s.now)
	svc := service.New(l)
	details := ledger.ReceiptDetails{
		Description:     "Groceries",
		Amount:          domain.NewAmount(1999),
		TransactionDate: s.now.Add(-time.Hour),
	}
	_, err := svc.RegisterBusiness(s.ctx, restaurant, "Market", "")
	s.Require().NoError(err)
	first, err := svc.RequestReceipt(s.ctx, customer, restaurant, details)
	s.Require().NoError(err)
	_, err = svc.Reject(s.ctx, restaurant, first.ID, "not ours")
	s.Require().NoError(err)
	_, err = svc.IssueReceipt(s.ctx, restaurant, customer, details)
	s.Require().NoError(err)
	_, err = svc.DeactivateBusiness(s.ctx, owner, restaurant)
	s.Require().NoError(err)

	s.events, err = l.Unpublished(context.Background(), 0)
	s.Require().NoError(err)
	s.Require().Len(s.events, 5)
}

func (s *PostgresViewsSuite) apply(p *projector.Projector) {
	for _, ev := range s.events {
		s.Require().NoError(p.Apply(s.ctx, ev))
	}
}

func (s *PostgresViewsSuite) TestProjectsAndReplays() {
	p := projector.New(s.views)
	s.apply(p)
	s.apply(p)

	checkpoint, err := s.views.Checkpoint(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(5), checkpoint)

	rejected, err := s.views.Receipt(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(ledger.StatusRejected, rejected.Status)
	s.Equal("not ours", rejected.RejectionReason)
	s.Equal("1999", rejected.Amount.String())

	direct, err := s.views.Receipt(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal(ledger.OriginDirect, direct.Origin)
	s.Equal("Market", direct.VendorName)

	b, err := s.views.Business(s.ctx, restaurant)
	s.Require().NoError(err)
	s.False(b.IsActive)

	byRecipient, err := s.views.ReceiptsByParty(s.ctx, ledger.PartyRecipient, customer)
	s.Require().NoError(err)
	s.Len(byRecipient, 2)

	activity, err := s.views.ReceiptActivity(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(activity, 2)
}

func (s *PostgresViewsSuite) TestCommitOrdering() {
	err := s.views.Commit(s.ctx, &models.Changes{Sequence: 2})
	s.ErrorIs(err, sentinel.ErrOutOfOrder)

	s.Require().NoError(s.views.Commit(s.ctx, &models.Changes{Sequence: 1}))
	err = s.views.Commit(s.ctx, &models.Changes{Sequence: 1})
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	checkpoint, err := s.views.Checkpoint(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(1), checkpoint)
}

type RedisDedupeSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	dedupe *store.RedisDedupe
}

func TestRedisDedupeSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisDedupeSuite))
}

func (s *RedisDedupeSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.dedupe = store.NewRedisDedupe(s.redis.Platform(), time.Minute)
}

func (s *RedisDedupeSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisDedupeSuite) TestSeenAfterMark() {
	ctx := context.Background()
	ev := ledger.NewEvent(ledger.EventVerifierAdded, owner, time.Now())

	seen, err := s.dedupe.Seen(ctx, ev.ID)
	s.Require().NoError(err)
	s.False(seen)

	s.Require().NoError(s.dedupe.Mark(ctx, ev.ID))
	seen, err = s.dedupe.Seen(ctx, ev.ID)
	s.Require().NoError(err)
	s.True(seen)

	ttl, err := s.redis.Client.TTL(ctx, "receipt-ledger:indexer:applied:"+ev.ID.String()).Result()
	s.Require().NoError(err)
	s.InDelta(time.Minute.Seconds(), ttl.Seconds(), 5)
}
