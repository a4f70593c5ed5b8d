package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"receiptledger/internal/eventlog"
	eventlogmetrics "receiptledger/internal/eventlog/metrics"
	identityhandler "receiptledger/internal/identity/handler"
	identityservice "receiptledger/internal/identity/service"
	"receiptledger/internal/identity/token"
	indexerconsumer "receiptledger/internal/indexer/consumer"
	indexerhandler "receiptledger/internal/indexer/handler"
	indexermetrics "receiptledger/internal/indexer/metrics"
	"receiptledger/internal/indexer/projector"
	"receiptledger/internal/indexer/query"
	ledgerhandler "receiptledger/internal/ledger/handler"
	ledgermetrics "receiptledger/internal/ledger/metrics"
	ledgerservice "receiptledger/internal/ledger/service"
	"receiptledger/internal/platform/config"
	"receiptledger/internal/platform/httpserver"
	"receiptledger/internal/platform/kafka/admin"
	"receiptledger/internal/platform/kafka/consumer"
	"receiptledger/internal/platform/kafka/producer"
	"receiptledger/internal/platform/logger"
	"receiptledger/internal/platform/metrics"
	"receiptledger/internal/platform/middleware"
	"receiptledger/internal/ratelimit/limiter"
	ratelimitmetrics "receiptledger/internal/ratelimit/metrics"
	ratelimitmw "receiptledger/internal/ratelimit/middleware"
	ratelimitmodels "receiptledger/internal/ratelimit/models"
	"receiptledger/pkg/currency"
	"receiptledger/pkg/platform/circuit"
	"receiptledger/pkg/platform/httputil"
)

const consumerRestartDelay = 2 * time.Second

// main wires the ledger, the event relay, the indexer and the HTTP surface,
// then runs them until SIGINT or SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	ledger := ledgerservice.New(b.ledger,
		ledgerservice.WithLogger(log),
		ledgerservice.WithMetrics(ledgermetrics.New()),
		ledgerservice.WithRequestWindow(cfg.Ledger.RequestWindow),
	)
	proj := projector.New(b.views,
		projector.WithDedupe(b.dedupe),
		projector.WithLogger(log),
		projector.WithMetrics(indexermetrics.New()),
	)
	tokens := token.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)
	identity := identityservice.New(b.challenges, tokens,
		identityservice.WithLogger(log),
		identityservice.WithChallengeTTL(cfg.Auth.ChallengeTTL),
	)

	g, gctx := errgroup.WithContext(ctx)

	var publisher eventlog.Publisher
	if cfg.Kafka.Enabled() {
		if err := admin.EnsureTopics(ctx, cfg.Kafka.Brokers, admin.TopicSpec{
			Name:              cfg.Kafka.Topic,
			Partitions:        1,
			ReplicationFactor: -1,
		}); err != nil {
			return err
		}
		p, err := producer.New(cfg.Kafka.Brokers, log)
		if err != nil {
			return err
		}
		defer p.Close()
		publisher = eventlog.NewKafkaPublisher(p, cfg.Kafka.Topic)

		handler := indexerconsumer.NewHandler(proj, log)
		g.Go(func() error {
			return superviseConsumer(gctx, cfg.Kafka, handler, log)
		})
		log.Info("publishing ledger events to kafka", "topic", cfg.Kafka.Topic)
	} else {
		publisher = eventlog.NewLocalPublisher(proj)
		log.Info("applying ledger events in process")
	}

	relay := eventlog.NewRelay(b.ledger, publisher,
		eventlog.WithLogger(log),
		eventlog.WithMetrics(eventlogmetrics.New()),
		eventlog.WithInterval(cfg.Kafka.RelayInterval),
		eventlog.WithBatchSize(cfg.Kafka.RelayBatch),
	)
	g.Go(func() error {
		return relay.Run(gctx)
	})

	router := newRouter(log, b, cfg.Server, newRateLimiter(cfg.RateLimit, b, log),
		route{ratelimitmodels.ClassAPI, ledgerhandler.New(ledger, log, currency.New(cfg.Display.Decimals), middleware.RequireAccount(tokens, log))},
		route{ratelimitmodels.ClassAPI, indexerhandler.New(query.New(b.views), log)},
		route{ratelimitmodels.ClassAuth, identityhandler.New(identity, log)},
	)
	srv := httpserver.New(cfg.Server.Addr, router)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})

	return g.Wait()
}

type registrar interface {
	Register(r chi.Router)
}

// route mounts a handler under the request budget of its class.
type route struct {
	class   ratelimitmodels.Class
	handler registrar
}

func newRateLimiter(cfg config.RateLimit, b *backends, log *slog.Logger) *ratelimitmw.Middleware {
	limits := map[ratelimitmodels.Class]ratelimitmodels.Limit{
		ratelimitmodels.ClassAuth: {Requests: cfg.AuthRequests, Window: cfg.AuthWindow},
		ratelimitmodels.ClassAPI:  {Requests: cfg.APIRequests, Window: cfg.APIWindow},
	}
	opts := []limiter.Option{
		limiter.WithLogger(log),
		limiter.WithMetrics(ratelimitmetrics.New()),
	}
	if b.fallback != nil {
		opts = append(opts, limiter.WithFallback(b.fallback, circuit.New("ratelimit")))
	}
	return ratelimitmw.New(limiter.New(b.windows, limits, opts...), log, ratelimitmw.WithDisabled(cfg.Disabled))
}

func newRouter(log *slog.Logger, b *backends, cfg config.Server, limits *ratelimitmw.Middleware, routes ...route) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(log, metrics.New()))

	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := b.Health(ctx); err != nil {
			log.WarnContext(ctx, "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
		r.Use(middleware.ContentTypeJSON)
		for _, rt := range routes {
			r.Group(func(r chi.Router) {
				r.Use(limits.RateLimit(rt.class))
				rt.handler.Register(r)
			})
		}
	})
	return r
}

// superviseConsumer restarts the indexer consumer after a handler failure so
// the failed record is redelivered from the last committed offset.
func superviseConsumer(ctx context.Context, cfg config.Kafka, handler consumer.Handler, log *slog.Logger) error {
	for {
		c, err := consumer.New(consumer.Config{
			Brokers: cfg.Brokers,
			Group:   cfg.ConsumerGroup,
			Topics:  []string{cfg.Topic},
		}, handler, log)
		if err != nil {
			return err
		}
		err = c.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		log.WarnContext(ctx, "indexer consumer stopped, restarting",
			"error", err,
			"delay", consumerRestartDelay.String(),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(consumerRestartDelay):
		}
	}
}
