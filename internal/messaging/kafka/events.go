package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderCreated   EventType = "order.created"
	EventTypeOrderUpdated   EventType = "order.updated"
	EventTypeOrderSubmitted EventType = "order.submitted"
	EventTypeOrderAccepted  EventType = "order.accepted"
	EventTypeOrderRejected  EventType = "order.rejected"

	// Позиции заказа
	EventTypeDetailAccepted EventType = "order.detail.accepted"
	EventTypeDetailRejected EventType = "order.detail.rejected"

	// Корзина
	EventTypeCartItemAdded   EventType = "cart.item.added"
	EventTypeCartItemRemoved EventType = "cart.item.removed"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "marketplace.order.events"
	TopicCartEvents      = "marketplace.cart.events"
	TopicDeadLetterQueue = "marketplace.oms.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType      EventType              `json:"event_type"`
	OrderID        string                 `json:"order_id"`
	RetailerID     string                 `json:"retailer_id"`
	ManufacturerID string                 `json:"manufacturer_id"`
	Status         string                 `json:"status"`
	Timestamp      time.Time              `json:"timestamp"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// CartEvent представляет событие корзины
type CartEvent struct {
	EventType  EventType `json:"event_type"`
	CartID     string    `json:"cart_id"`
	RetailerID string    `json:"retailer_id"`
	ProductID  string    `json:"product_id"`
	Qty        int32     `json:"qty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, retailerID, manufacturerID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:      eventType,
		OrderID:        orderID,
		RetailerID:     retailerID,
		ManufacturerID: manufacturerID,
		Status:         status,
		Timestamp:      time.Now(),
		Metadata:       metadata,
	}
}

// NewCartEvent создает новое событие корзины
func NewCartEvent(eventType EventType, cartID, retailerID, productID string, qty int32) *CartEvent {
	return &CartEvent{
		EventType:  eventType,
		CartID:     cartID,
		RetailerID: retailerID,
		ProductID:  productID,
		Qty:        qty,
		Timestamp:  time.Now(),
	}
}
