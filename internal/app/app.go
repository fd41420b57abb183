package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/marketplace-oms/internal/health"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/service/idempotency"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/service/outbox"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/version"
)

// Run собирает приложение и блокируется до отмены контекста или
// фатальной ошибки HTTP-сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage(deps, logger)

	// Kafka опциональна: без брокеров события остаются в outbox.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	inventoryClient := initInventoryClient(cfg, logger)
	userDirectory, redisClient := initUserDirectory(cfg, logger)
	defer closeRedis(redisClient, logger)

	engine := createEngine(deps, inventoryClient, userDirectory, kafkaProducer, logger)

	handler := httpapi.NewHandler(engine, deps.idempotencyRepo, logger.WithField("layer", "http"))
	router := httpapi.NewRouter(handler)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.storageChecker != nil {
		healthHandler.RegisterChecker("storage", deps.storageChecker)
	}
	if redisClient != nil {
		// Кеш справочника пользователей некритичен: без него сервис работает,
		// просто ходит в справочник напрямую.
		healthHandler.RegisterOptionalChecker("redis", healthcheck.NewSimpleChecker("redis", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), cfg.ClientTimeout)
			defer cancel()
			return redisClient.Ping(pingCtx).Err()
		}))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	startOutboxWorker(ctx, cfg, deps, kafkaProducer, logger)
	startIdempotencyCleanup(ctx, cfg, deps, logger)

	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startOutboxWorker запускает фоновую публикацию outbox-сообщений в Kafka.
// Без producer воркер не запускается: сообщения остаются pending до
// появления брокеров.
func startOutboxWorker(ctx context.Context, cfg Config, deps runtimeDependencies, producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		logger.Info("kafka не настроена, outbox worker не запущен")
		return
	}

	publisher := kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents)
	worker := outbox.NewWorker(deps.outboxRepo, publisher,
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithDeadLetter(producer, kafka.TopicDeadLetterQueue),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
	go worker.Run(ctx)
}

// startIdempotencyCleanup запускает периодическую чистку истёкших
// idempotency-ключей.
func startIdempotencyCleanup(ctx context.Context, cfg Config, deps runtimeDependencies, logger *log.Entry) {
	worker := idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	go worker.Run(ctx)
}

func closeStorage(deps runtimeDependencies, logger *log.Entry) {
	if deps.closeFn == nil {
		return
	}
	if err := deps.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}

func closeRedis(client *redis.Client, logger *log.Entry) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		logger.WithError(err).Warn("failed to close redis client")
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus
// вместе с health-пробами.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
