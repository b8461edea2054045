package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment. Values
// have development defaults so a bare `go run ./cmd/server` works against the
// in-memory backends.
type Config struct {
	Addr string

	// DatabaseURL selects the Postgres-backed stores when set; empty keeps
	// the in-memory stores.
	DatabaseURL string

	// RedisURL enables the Redis rate-limit store, cache stamp and pub/sub
	// broadcast sink when set.
	RedisURL string

	// KafkaBrokers enables the Kafka broadcast sink when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	// BroadcastChannel is the shared pub/sub topic audit events are pushed to.
	BroadcastChannel string

	// Assignment mutations retry this many times on stale concurrency tokens
	// before surfacing concurrency_exhausted.
	RetryAttempts int

	// Rate limiting for the catch-up poller. Both knobs are deployment
	// dependent, so they stay configurable rather than hard-coded.
	RateLimitWindow time.Duration
	RateLimitMax    int

	// CatchupWindow is how far back /audit/events looks when the caller
	// supplies no cursor.
	CatchupWindow time.Duration

	AuthEnabled   bool
	JWTSigningKey string
	JWTIssuer     string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:             envOr("AIMS_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("AIMS_DATABASE_URL"),
		RedisURL:         os.Getenv("AIMS_REDIS_URL"),
		KafkaTopic:       envOr("AIMS_KAFKA_TOPIC", "aims.audit"),
		BroadcastChannel: envOr("AIMS_BROADCAST_CHANNEL", "aims:audit"),
		RetryAttempts:    envInt("AIMS_RETRY_ATTEMPTS", 3),
		RateLimitWindow:  envDuration("AIMS_RATE_LIMIT_WINDOW", time.Minute),
		RateLimitMax:     envInt("AIMS_RATE_LIMIT_MAX", 60),
		CatchupWindow:    envDuration("AIMS_CATCHUP_WINDOW", 24*time.Hour),
		AuthEnabled:      os.Getenv("AIMS_AUTH_ENABLED") == "true",
		JWTIssuer:        envOr("AIMS_JWT_ISSUER", "aims"),
	}

	if brokers := os.Getenv("AIMS_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	cfg.JWTSigningKey = os.Getenv("AIMS_JWT_SIGNING_KEY")
	if cfg.JWTSigningKey == "" {
		// Development fallback; override in any deployment with auth enabled.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
