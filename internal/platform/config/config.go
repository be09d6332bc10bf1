package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
}

// PostgresConfig configures the optional Postgres-backed stores. An empty
// URL selects the in-memory stores.
type PostgresConfig struct {
	URL            string
	MaxConns       int32
	ConnectTimeout time.Duration
}

// RedisConfig configures the optional Redis-backed asset engine and role
// cache. An empty URL disables both.
type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional audit event stream. Empty brokers
// select the in-memory audit store.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("SCRIP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("SCRIP_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("SCRIP_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		Postgres: PostgresConfig{
			URL:            os.Getenv("SCRIP_POSTGRES_URL"),
			MaxConns:       int32(envInt("SCRIP_POSTGRES_MAX_CONNS", 10)),
			ConnectTimeout: envDuration("SCRIP_POSTGRES_CONNECT_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("SCRIP_REDIS_URL"),
			PoolSize:     envInt("SCRIP_REDIS_POOL_SIZE", 10),
			DialTimeout:  envDuration("SCRIP_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("SCRIP_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("SCRIP_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   os.Getenv("SCRIP_KAFKA_AUDIT_TOPIC"),
		},
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
	}
	return fallback
}
