package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/marketplace-oms/internal/health"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/service/inventory"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/service/users"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/storage/memory"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/storage/postgres"
)

// runtimeDependencies — набор репозиториев, собранный под выбранный
// драйвер хранилища.
type runtimeDependencies struct {
	repo            domain.OrderRepository
	cartRepo        domain.CartRepository
	outboxRepo      domain.OutboxRepository
	timelineRepo    domain.TimelineRepository
	idempotencyRepo domain.IdempotencyRepository
	storageChecker  healthcheck.Checker
	closeFn         func() error
}

// initRuntimeDependencies создаёт репозитории для заданного драйвера.
// Для postgres подключается к базе и при включённом автомиграторе
// прогоняет миграции.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		return runtimeDependencies{
			repo:            memory.NewOrderRepository(),
			cartRepo:        memory.NewCartRepository(),
			outboxRepo:      memory.NewOutboxRepository(),
			timelineRepo:    memory.NewTimelineRepository(),
			idempotencyRepo: memory.NewIdempotencyRepository(),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return runtimeDependencies{}, errors.New("postgres dsn is required for postgres storage driver")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return runtimeDependencies{}, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("run postgres migrations: %w", err)
			}
			logger.Info("postgres миграции применены")
		}
		return runtimeDependencies{
			repo:            postgres.NewOrderRepository(store),
			cartRepo:        postgres.NewCartRepository(store),
			outboxRepo:      postgres.NewOutboxRepository(store),
			timelineRepo:    postgres.NewTimelineRepository(store),
			idempotencyRepo: postgres.NewIdempotencyRepository(store),
			storageChecker: healthcheck.NewSimpleChecker("postgres", func() error {
				pingCtx, cancel := context.WithTimeout(context.Background(), cfg.ClientTimeout)
				defer cancel()
				return store.Ping(pingCtx)
			}),
			closeFn: store.Close,
		}, nil

	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver: %q", cfg.StorageDriver)
	}
}

// initInventoryClient создаёт клиент склада. Без базового URL используется
// локальный in-memory клиент.
func initInventoryClient(cfg Config, logger *log.Entry) domain.InventoryClient {
	if cfg.InventoryBaseURL == "" {
		logger.Info("inventory base url не задан, используется in-memory клиент склада")
		return inventory.NewMockClient()
	}
	client := inventory.NewClient(cfg.InventoryBaseURL, cfg.ClientTimeout, logger)
	breaker := inventory.NewCircuitBreaker(5, 30*time.Second, logger)
	return inventory.NewResilientClient(client, inventory.DefaultRetryConfig(), breaker, logger)
}

// initUserDirectory создаёт справочник пользователей. При заданном адресе
// Redis ответы справочника кешируются.
func initUserDirectory(cfg Config, logger *log.Entry) (domain.UserDirectory, *redis.Client) {
	if cfg.UserDirectoryBaseURL == "" {
		logger.Info("user directory base url не задан, используется in-memory справочник")
		return users.NewMockDirectory(), nil
	}

	var cache users.Cache
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cache = users.NewRedisCache(redisClient, logger)
		logger.WithField("addr", cfg.RedisAddr).Info("подключен redis-кеш справочника пользователей")
	}
	return users.NewClient(cfg.UserDirectoryBaseURL, cfg.ClientTimeout, cache, logger), redisClient
}
