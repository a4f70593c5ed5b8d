package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"receiptledger/pkg/domain"
	platformstrings "receiptledger/pkg/platform/strings"
)

// Config is the process configuration assembled from environment variables.
type Config struct {
	Server    Server
	Ledger    Ledger
	Database  Database
	Redis     RedisConfig
	Kafka     Kafka
	Auth      Auth
	RateLimit RateLimit
	Display   Display
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// TrustProxy takes the client address from X-Forwarded-For and X-Real-IP.
	TrustProxy      bool
}

// IsProduction reports whether JSON logging and strict secrets apply.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// Ledger holds the ledger's governance bootstrap and lifecycle parameters.
type Ledger struct {
	Owner         domain.Account
	RequestWindow time.Duration
}

// Database configures the Postgres backend. An empty URL selects the in-memory backend.
type Database struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the optional Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the event relay and indexer consumer. No brokers selects in-process delivery.
type Kafka struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	RelayInterval time.Duration
	RelayBatch    int
}

func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

// Auth configures wallet sign-in and access tokens.
type Auth struct {
	JWTSigningKey string
	JWTIssuer     string
	TokenTTL      time.Duration
	ChallengeTTL  time.Duration
}

// RateLimit sets per-client request budgets. A zero request count leaves the
// class unlimited.
type RateLimit struct {
	Disabled     bool
	AuthRequests int
	AuthWindow   time.Duration
	APIRequests  int
	APIWindow    time.Duration
}

// Display configures amount formatting in read models.
type Display struct {
	Decimals int
}

const (
	defaultRequestWindow = 7 * 24 * time.Hour
	devSigningKey        = "dev-secret-key-change-in-production"
	// Hardhat's first default account; only used outside production.
	devOwner = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

// FromEnv builds the Config from environment variables so main stays lean.
func FromEnv() (*Config, error) {
	env := getEnv("LEDGER_ENV", "development")

	ownerRaw := os.Getenv("LEDGER_OWNER")
	if ownerRaw == "" {
		if env == "production" {
			return nil, fmt.Errorf("LEDGER_OWNER is required in production")
		}
		ownerRaw = devOwner
	}
	owner, err := domain.ParseAccount(ownerRaw)
	if err != nil {
		return nil, fmt.Errorf("LEDGER_OWNER: %w", err)
	}

	signingKey := os.Getenv("JWT_SIGNING_KEY")
	if signingKey == "" {
		if env == "production" {
			return nil, fmt.Errorf("JWT_SIGNING_KEY is required in production")
		}
		// Use a default for development - should be overridden in production
		signingKey = devSigningKey
	}

	cfg := &Config{
		Server: Server{
			Addr:            getEnv("LEDGER_ADDR", ":8080"),
			Environment:     env,
			RequestTimeout:  getDuration("LEDGER_REQUEST_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getDuration("LEDGER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TrustProxy:      getBool("LEDGER_TRUST_PROXY", false),
		},
		Ledger: Ledger{
			Owner:         owner,
			RequestWindow: getDuration("LEDGER_REQUEST_WINDOW", defaultRequestWindow),
		},
		Database: Database{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:       platformstrings.SplitList(os.Getenv("KAFKA_BROKERS"), ","),
			Topic:         getEnv("KAFKA_LEDGER_TOPIC", "receipt-ledger.events"),
			ConsumerGroup: getEnv("KAFKA_INDEXER_GROUP", "receipt-ledger-indexer"),
			RelayInterval: getDuration("OUTBOX_RELAY_INTERVAL", 500*time.Millisecond),
			RelayBatch:    getInt("OUTBOX_RELAY_BATCH", 100),
		},
		Auth: Auth{
			JWTSigningKey: signingKey,
			JWTIssuer:     getEnv("JWT_ISSUER", "receipt-ledger"),
			TokenTTL:      getDuration("JWT_TTL", time.Hour),
			ChallengeTTL:  getDuration("AUTH_CHALLENGE_TTL", 5*time.Minute),
		},
		RateLimit: RateLimit{
			Disabled:     getBool("RATELIMIT_DISABLED", false),
			AuthRequests: getInt("RATELIMIT_AUTH_REQUESTS", 20),
			AuthWindow:   getDuration("RATELIMIT_AUTH_WINDOW", time.Minute),
			APIRequests:  getInt("RATELIMIT_API_REQUESTS", 600),
			APIWindow:    getDuration("RATELIMIT_API_WINDOW", time.Minute),
		},
		Display: Display{
			Decimals: getInt("DISPLAY_DECIMALS", 18),
		},
	}

	if cfg.Ledger.RequestWindow <= 0 {
		return nil, fmt.Errorf("LEDGER_REQUEST_WINDOW must be positive")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
