package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP API
	HTTPHost string
	HTTPPort int

	// Order store
	StoreDriver string // "sqlite" or "postgres"
	SQLitePath  string
	PostgresDSN string

	// Redis (job queue backend)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Queue
	QueueConcurrency int
	QueueMaxRetries  int
	QueueBackoffBase time.Duration
	QueueRateMax     int           // jobs admitted per window
	QueueRateWindow  time.Duration // e.g. 1m

	// Monitoring phase: 0 means monitor indefinitely via redelivery.
	MonitorTimeout time.Duration

	// Venues
	RaydiumBaseURL string
	MeteoraBaseURL string
	SolanaCluster  string // "mainnet" or "devnet"
	InputMint      string

	// Local known-pools registry (checked before on-chain lookups)
	PoolRegistryPath string

	// Telemetry
	LogLevel string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPHost: envStr("HTTP_HOST", "0.0.0.0"),
		HTTPPort: envInt("HTTP_PORT", 3000),

		StoreDriver: envStr("STORE_DRIVER", "sqlite"),
		SQLitePath:  envStr("SQLITE_PATH", "data/orders.db"),
		PostgresDSN: envStr("POSTGRES_DSN", ""),

		RedisAddr:     envStr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: envStr("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		QueueConcurrency: envInt("QUEUE_CONCURRENCY", 10),
		QueueMaxRetries:  envInt("MAX_RETRY_ATTEMPTS", 3),
		QueueBackoffBase: envDur("QUEUE_BACKOFF_BASE", 2*time.Second),
		QueueRateMax:     envInt("QUEUE_RATE_MAX", 100),
		QueueRateWindow:  envDur("QUEUE_RATE_WINDOW", time.Minute),

		MonitorTimeout: envDur("MONITOR_TIMEOUT", 0),

		RaydiumBaseURL: envStr("RAYDIUM_BASE_URL", "https://api-v3.raydium.io"),
		MeteoraBaseURL: envStr("METEORA_BASE_URL", "https://amm-v2.meteora.ag"),
		SolanaCluster:  envStr("SOLANA_CLUSTER", "devnet"),
		// Wrapped SOL: every order buys the target token with SOL.
		InputMint: envStr("INPUT_MINT", "So11111111111111111111111111111111111111112"),

		PoolRegistryPath: envStr("POOL_REGISTRY_PATH", "internal/config/known_pools.yaml"),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
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

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
