package app

import (
	"os"
	"strconv"
	"time"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	KafkaBrokers string

	RedisAddr string

	InventoryBaseURL     string
	UserDirectoryBaseURL string
	ClientTimeout        time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает настройки по умолчанию: REST на :8080,
// метрики на :9090, in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		ClientTimeout:               5 * time.Second,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            100 * time.Millisecond,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// LoadConfig читает настройки из переменных окружения поверх значений
// по умолчанию. Нераспознанные значения числовых переменных игнорируются.
func LoadConfig() Config {
	cfg := DefaultConfig()

	cfg.HTTPAddr = envString("HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("METRICS_ADDR", cfg.MetricsAddr)
	cfg.StorageDriver = envString("STORAGE_DRIVER", cfg.StorageDriver)
	cfg.PostgresDSN = envString("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresAutoMigrate = envBool("POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)
	cfg.KafkaBrokers = envString("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.RedisAddr = envString("REDIS_ADDR", cfg.RedisAddr)
	cfg.InventoryBaseURL = envString("INVENTORY_BASE_URL", cfg.InventoryBaseURL)
	cfg.UserDirectoryBaseURL = envString("USER_DIRECTORY_BASE_URL", cfg.UserDirectoryBaseURL)
	cfg.ClientTimeout = envDuration("CLIENT_TIMEOUT", cfg.ClientTimeout)
	cfg.OutboxPollInterval = envDuration("OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt("OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = envDuration("OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)
	cfg.IdempotencyCleanupInterval = envDuration("IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval)
	cfg.IdempotencyCleanupBatchSize = envInt("IDEMPOTENCY_CLEANUP_BATCH_SIZE", cfg.IdempotencyCleanupBatchSize)

	return cfg
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
