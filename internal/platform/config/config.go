package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates process configuration. FromEnv keeps main lean; every
// external dependency is optional except the record store so local runs can
// start with a subset of services.
type Config struct {
	Addr          string
	JWTSigningKey string

	Postgres PostgresConfig
	Redis    RedisConfig
	Chain    ChainConfig
	Pinning  PinningConfig
	Kafka    KafkaConfig
}

// PostgresConfig points at the off-chain record store.
type PostgresConfig struct {
	DSN string
}

// RedisConfig configures the optional per-DID lock backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ChainConfig wires the on-chain identity registry client.
type ChainConfig struct {
	RPCURL          string
	ContractAddress string
	PrivateKeyHex   string
	ChainID         int64
	ConfirmTimeout  time.Duration
	PollInterval    time.Duration
}

// PinningConfig wires the content-addressed metadata store.
type PinningConfig struct {
	APIBaseURL string
	GatewayURL string
	JWT        string
	Timeout    time.Duration
}

// KafkaConfig configures the optional audit event publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:          envOr("CAMPUSID_ADDR", ":8080"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Postgres: PostgresConfig{
			DSN: os.Getenv("POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Chain: ChainConfig{
			RPCURL:          os.Getenv("CHAIN_RPC_URL"),
			ContractAddress: os.Getenv("CHAIN_REGISTRY_ADDRESS"),
			PrivateKeyHex:   os.Getenv("CHAIN_SIGNER_KEY"),
			ChainID:         int64(envInt("CHAIN_ID", 11155111)),
			ConfirmTimeout:  envDuration("CHAIN_CONFIRM_TIMEOUT", 45*time.Second),
			PollInterval:    envDuration("CHAIN_POLL_INTERVAL", 2*time.Second),
		},
		Pinning: PinningConfig{
			APIBaseURL: envOr("PINNING_API_URL", "https://api.pinata.cloud"),
			GatewayURL: envOr("PINNING_GATEWAY_URL", "https://gateway.pinata.cloud"),
			JWT:        os.Getenv("PINNING_JWT"),
			Timeout:    envDuration("PINNING_TIMEOUT", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_AUDIT_TOPIC", "campusid.audit"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
