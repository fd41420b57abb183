package inventory

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
)

// RetryConfig задаёт параметры повторов обращений к товарному сервису.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию повторов по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// CircuitState — состояние circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// ErrCircuitOpen возвращается, пока breaker блокирует обращения.
var ErrCircuitOpen = domain.NewDependencyError("inventory circuit breaker is open", "", nil)

// CircuitBreaker защищает товарный сервис от шторма запросов при его отказе.
type CircuitBreaker struct {
	mu           sync.Mutex
	maxFailures  int
	resetTimeout time.Duration

	failures    int
	lastFailure time.Time
	state       CircuitState
	logger      *log.Entry
}

// NewCircuitBreaker создаёт circuit breaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if logger == nil {
		logger = log.WithField("component", "inventory-circuit-breaker")
	}

	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        CircuitClosed,
		logger:       logger,
	}
}

// State возвращает текущее состояние breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute выполняет операцию через circuit breaker. Бизнес-ошибки
// (not found, validation) не считаются отказами сервиса.
func (cb *CircuitBreaker) Execute(operation string, fn func() error) error {
	if err := cb.allow(operation); err != nil {
		return err
	}

	err := fn()
	cb.observe(operation, err)
	return err
}

func (cb *CircuitBreaker) allow(operation string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitOpen {
		return nil
	}
	if time.Since(cb.lastFailure) > cb.resetTimeout {
		cb.state = CircuitHalfOpen
		cb.logger.WithField("operation", operation).Info("inventory circuit breaker half-open")
		return nil
	}
	return ErrCircuitOpen
}

func (cb *CircuitBreaker) observe(operation string, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && domain.IsDependency(err) {
		cb.failures++
		cb.lastFailure = time.Now()

		if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
			cb.state = CircuitOpen
			cb.logger.WithFields(log.Fields{
				"operation": operation,
				"failures":  cb.failures,
			}).Warn("inventory circuit breaker opened")
		}
		return
	}

	if cb.state == CircuitHalfOpen {
		cb.logger.WithField("operation", operation).Info("inventory circuit breaker closed")
	}
	cb.state = CircuitClosed
	cb.failures = 0
}

var _ domain.InventoryClient = (*ResilientClient)(nil)

// ResilientClient оборачивает клиента товарного сервиса повторами с
// экспоненциальным backoff и circuit breaker. Повторяются только
// dependency-ошибки: not found и прочие бизнес-ошибки отдаются сразу.
type ResilientClient struct {
	inner   domain.InventoryClient
	config  RetryConfig
	breaker *CircuitBreaker
	logger  *log.Entry
}

// NewResilientClient создаёт отказоустойчивую обёртку клиента.
// Nil breaker отключает circuit breaker, остаются только повторы.
func NewResilientClient(inner domain.InventoryClient, config RetryConfig, breaker *CircuitBreaker, logger *log.Entry) *ResilientClient {
	if logger == nil {
		logger = log.WithField("component", "inventory-resilient-client")
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultRetryConfig().MaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = DefaultRetryConfig().InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultRetryConfig().MaxDelay
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = DefaultRetryConfig().BackoffFactor
	}

	return &ResilientClient{
		inner:   inner,
		config:  config,
		breaker: breaker,
		logger:  logger,
	}
}

// GetProduct возвращает снимок товара, повторяя временные сбои.
func (c *ResilientClient) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	var product domain.Product
	err := c.execute(ctx, "get_product", func() error {
		var callErr error
		product, callErr = c.inner.GetProduct(ctx, productID)
		return callErr
	})
	return product, err
}

// GetProductsByIds возвращает снимки товаров, повторяя временные сбои.
func (c *ResilientClient) GetProductsByIds(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	var products map[string]domain.Product
	err := c.execute(ctx, "get_products_by_ids", func() error {
		var callErr error
		products, callErr = c.inner.GetProductsByIds(ctx, productIDs)
		return callErr
	})
	return products, err
}

// SetQuantity перезаписывает количество товара, повторяя временные сбои.
func (c *ResilientClient) SetQuantity(ctx context.Context, productID string, quantity int32) error {
	return c.execute(ctx, "set_quantity", func() error {
		return c.inner.SetQuantity(ctx, productID, quantity)
	})
}

func (c *ResilientClient) execute(ctx context.Context, operation string, fn func() error) error {
	call := fn
	if c.breaker != nil {
		call = func() error {
			return c.breaker.Execute(operation, fn)
		}
	}

	var lastErr error
	delay := c.config.InitialDelay

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		err := call()
		if err == nil {
			if attempt > 1 {
				c.logger.WithFields(log.Fields{
					"operation": operation,
					"attempt":   attempt,
				}).Info("inventory call succeeded after retry")
			}
			return nil
		}

		if !domain.IsDependency(err) {
			return err
		}
		lastErr = err

		if attempt == c.config.MaxAttempts {
			break
		}

		c.logger.WithFields(log.Fields{
			"operation": operation,
			"attempt":   attempt,
			"delay":     delay.String(),
		}).WithError(err).Warn("inventory call failed, retrying")

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * c.config.BackoffFactor)
		if delay > c.config.MaxDelay {
			delay = c.config.MaxDelay
		}
	}

	c.logger.WithFields(log.Fields{
		"operation":    operation,
		"max_attempts": c.config.MaxAttempts,
	}).WithError(lastErr).Error("inventory call failed after all retry attempts")

	return lastErr
}
