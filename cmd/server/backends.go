package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"receiptledger/internal/eventlog"
	identityservice "receiptledger/internal/identity/service"
	identitystore "receiptledger/internal/identity/store"
	"receiptledger/internal/indexer/projector"
	"receiptledger/internal/indexer/query"
	indexerstore "receiptledger/internal/indexer/store"
	ledgerservice "receiptledger/internal/ledger/service"
	ledgerstore "receiptledger/internal/ledger/store"
	"receiptledger/internal/platform/config"
	"receiptledger/internal/platform/postgres"
	"receiptledger/internal/platform/redis"
	"receiptledger/internal/ratelimit/limiter"
	ratelimitstore "receiptledger/internal/ratelimit/store"
)

// ledgerBackend is the write store plus the outbox the relay drains.
type ledgerBackend interface {
	ledgerservice.Ledger
	eventlog.Outbox
}

// viewBackend is the indexer's view store.
type viewBackend interface {
	projector.Store
	query.Views
}

type backends struct {
	db         *sql.DB
	redis      *redis.Client
	ledger     ledgerBackend
	views      viewBackend
	challenges identityservice.ChallengeStore
	dedupe     projector.Dedupe
	windows    limiter.Store
	// fallback is set when windows lives in Redis.
	fallback   limiter.Store
}

// openBackends selects Postgres and Redis when configured and in-memory
// stores otherwise.
func openBackends(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backends, error) {
	b := &backends{}
	now := time.Now()

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		pg := ledgerstore.NewPostgres(db)
		if err := pg.Bootstrap(ctx, cfg.Ledger.Owner, now); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap governance: %w", err)
		}
		b.db = db
		b.ledger = pg
		b.views = indexerstore.NewPostgres(db)
		log.Info("using postgres storage")
	} else {
		b.ledger = ledgerstore.NewInMemory(cfg.Ledger.Owner, now)
		b.views = indexerstore.NewInMemory()
		log.Info("using in-memory storage")
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		b.Close()
		return nil, err
	}
	if client != nil {
		b.redis = client
		b.challenges = identitystore.NewRedis(client)
		b.dedupe = indexerstore.NewRedisDedupe(client, 0)
		b.windows = ratelimitstore.NewRedis(client)
		b.fallback = ratelimitstore.NewInMemory()
		log.Info("using redis for sign-in challenges, event dedupe and rate limits")
	} else {
		b.challenges = identitystore.NewInMemory()
		b.windows = ratelimitstore.NewInMemory()
	}
	return b, nil
}

// Health pings every configured backend.
func (b *backends) Health(ctx context.Context) error {
	if b.db != nil {
		if err := b.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if b.redis != nil {
		if err := b.redis.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (b *backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
}
