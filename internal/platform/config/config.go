// Package config builds runtime configuration from environment variables so
// main stays lean. Every knob has a development default; production overrides
// come from the deployment environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the top-level runtime configuration.
type Config struct {
	Server   Server
	Auth     Auth
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	RequestTimeout time.Duration
}

// Auth configures the JWT seam. Token issuance/verification is the only
// credential-adjacent concern this service owns.
type Auth struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
}

// Postgres configures the POD persistence backend. Empty DSN means the
// in-memory stores are used (development, tests).
type Postgres struct {
	DSN string
}

// Redis configures the token revocation list backend. Empty URL disables
// Redis; revocations then live in process memory.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the audit publisher. No brokers means audit events are
// drained by the in-process worker into the memory sink.
type Kafka struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:           getenv("PODBROKER_ADDR", ":8080"),
			RequestTimeout: getduration("PODBROKER_REQUEST_TIMEOUT", 30*time.Second),
		},
		Auth: Auth{
			// Development default; must be overridden in production.
			JWTSigningKey: getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        getenv("JWT_ISSUER", "podbroker"),
			Audience:      getenv("JWT_AUDIENCE", "podbroker-api"),
			AccessTTL:     getduration("JWT_ACCESS_TTL", time.Hour),
		},
		Postgres: Postgres{
			DSN: os.Getenv("POSTGRES_DSN"),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getint("REDIS_POOL_SIZE", 10),
			MinIdleConns: getint("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getduration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getduration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getduration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: getlist("KAFKA_BROKERS"),
			Topic:   getenv("KAFKA_AUDIT_TOPIC", "podbroker.audit"),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getlist(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
