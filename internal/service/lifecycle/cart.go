package lifecycle

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/messaging/kafka"
)

// AddCartItemRequest описывает добавление товара в корзину ритейлера.
type AddCartItemRequest struct {
	RetailerID     string
	ProductID      string
	ManufacturerID string
	Qty            int32
	PriceMinor     int64
	CreatedBy      string
}

// AddCartItem откладывает товар в корзину.
func (e *Engine) AddCartItem(ctx context.Context, req AddCartItemRequest) (domain.ShoppingCart, error) {
	start := time.Now()
	defer e.observeOperation("add_cart_item", start)

	now := time.Now().UTC()
	cart := domain.ShoppingCart{
		ID:             uuid.NewString(),
		RetailerID:     req.RetailerID,
		ProductID:      req.ProductID,
		ManufacturerID: req.ManufacturerID,
		Qty:            req.Qty,
		PriceMinor:     req.PriceMinor,
		Status:         domain.CartStatusSave,
		IsActive:       true,
		CreatedOn:      now,
		CreatedBy:      req.CreatedBy,
		UpdatedOn:      now,
		UpdatedBy:      req.CreatedBy,
	}

	if errs := cart.Validate(); len(errs) > 0 {
		return domain.ShoppingCart{}, domain.NewValidationError(joinErrors(errs))
	}

	if err := e.carts.Insert(ctx, cart); err != nil {
		return domain.ShoppingCart{}, classifyCartErr(err, cart.ID)
	}

	e.emitCartEvent(cart, kafka.EventTypeCartItemAdded)
	return cart, nil
}

// GetCartItem возвращает запись корзины по идентификатору.
func (e *Engine) GetCartItem(ctx context.Context, cartID string) (domain.ShoppingCart, error) {
	if cartID == "" {
		return domain.ShoppingCart{}, domain.NewValidationError("cart id is required")
	}

	cart, err := e.carts.GetByID(ctx, cartID)
	if err != nil {
		return domain.ShoppingCart{}, classifyCartErr(err, cartID)
	}
	return cart, nil
}

// ListCartItems возвращает активные записи корзины ритейлера.
func (e *Engine) ListCartItems(ctx context.Context, retailerID string) ([]domain.ShoppingCart, error) {
	if retailerID == "" {
		return nil, domain.NewValidationError(domain.ErrRetailerRequired.Error())
	}

	carts, err := e.carts.ListByRetailer(ctx, retailerID)
	if err != nil {
		return nil, classifyCartErr(err, "")
	}
	return carts, nil
}

// RemoveCartItem мягко деактивирует запись корзины. Физическое удаление
// не выполняется никогда.
func (e *Engine) RemoveCartItem(ctx context.Context, cartID, actor string) error {
	start := time.Now()
	defer e.observeOperation("remove_cart_item", start)

	if cartID == "" {
		return domain.NewValidationError("cart id is required")
	}

	cart, err := e.carts.GetByID(ctx, cartID)
	if err != nil {
		return classifyCartErr(err, cartID)
	}

	cart.IsActive = false
	cart.UpdatedOn = time.Now().UTC()
	cart.UpdatedBy = actor
	if err := e.carts.Update(ctx, cart); err != nil {
		return classifyCartErr(err, cartID)
	}

	e.emitCartEvent(cart, kafka.EventTypeCartItemRemoved)
	return nil
}

// emitCartEvent пишет событие корзины в outbox, опционально дублируя в Kafka.
func (e *Engine) emitCartEvent(cart domain.ShoppingCart, eventType kafka.EventType) {
	payload, err := json.Marshal(map[string]interface{}{
		"cart_id":     cart.ID,
		"retailer_id": cart.RetailerID,
		"product_id":  cart.ProductID,
		"qty":         cart.Qty,
	})
	if err != nil {
		e.logger.WithError(err).WithField("cart_id", cart.ID).Error("marshal cart event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "cart",
		AggregateID:   cart.ID,
		EventType:     string(eventType),
		Payload:       payload,
	}
	if _, err := e.outbox.Enqueue(msg); err != nil {
		e.logger.WithError(err).WithFields(log.Fields{
			"cart_id": cart.ID,
			"event":   eventType,
		}).Error("enqueue cart event failed")
	} else if e.metrics != nil {
		e.metrics.RecordOutboxEvent()
	}

	if e.producer != nil {
		event := kafka.NewCartEvent(eventType, cart.ID, cart.RetailerID, cart.ProductID, cart.Qty)
		if err := e.producer.PublishEvent(kafka.TopicCartEvents, cart.ID, event); err != nil {
			e.logger.WithError(err).WithFields(log.Fields{
				"cart_id": cart.ID,
				"event":   eventType,
			}).Warn("failed to publish cart event to kafka")
		}
	}
}
