package domain

import (
	"context"
	"time"
)

// InventoryClient описывает взаимодействие с внешним товарным сервисом.
type InventoryClient interface {
	// GetProduct возвращает снимок товара или ErrProductNotFound.
	GetProduct(ctx context.Context, productID string) (Product, error)
	// GetProductsByIds возвращает снимки по списку идентификаторов;
	// отсутствующие товары просто не попадают в результат.
	GetProductsByIds(ctx context.Context, productIDs []string) (map[string]Product, error)
	// SetQuantity атомарно перезаписывает доступное количество товара.
	SetQuantity(ctx context.Context, productID string, quantity int32) error
}

// UserDirectory описывает взаимодействие со справочником пользователей.
type UserDirectory interface {
	// GetUsersByIds возвращает пользователей по списку идентификаторов;
	// отсутствующие просто не попадают в результат.
	GetUsersByIds(ctx context.Context, userIDs []string) (map[string]User, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
