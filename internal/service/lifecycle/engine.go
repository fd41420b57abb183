package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/metrics"
)

// Engine — движок жизненного цикла заказа: создание заказа из корзины,
// изменение статусов, workflow принятия/отклонения со сверкой стока
// и фильтрованный поиск. Движок не знает о транспортном слое и возвращает
// классифицированные ошибки domain.Error.
type Engine struct {
	orders    domain.OrderRepository
	carts     domain.CartRepository
	outbox    domain.OutboxRepository
	timeline  domain.TimelineRepository
	inventory domain.InventoryClient
	users     domain.UserDirectory
	logger    *log.Entry
	metrics   *metrics.LifecycleMetrics
	producer  *kafka.Producer // опциональный Kafka producer, nil = отключён

	reviewLocks *keyedMutex
}

// NewEngine создаёт рабочий экземпляр движка.
func NewEngine(
	orders domain.OrderRepository,
	carts domain.CartRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	inventory domain.InventoryClient,
	users domain.UserDirectory,
	logger *log.Entry,
) *Engine {
	if logger == nil {
		logger = log.New().WithField("component", "lifecycle")
	}
	return &Engine{
		orders:      orders,
		carts:       carts,
		outbox:      outbox,
		timeline:    timeline,
		inventory:   inventory,
		users:       users,
		logger:      logger,
		metrics:     metrics.NewLifecycleMetrics(),
		reviewLocks: newKeyedMutex(),
	}
}

// NewEngineWithKafka создаёт движок, дублирующий события напрямую в Kafka.
func NewEngineWithKafka(
	orders domain.OrderRepository,
	carts domain.CartRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	inventory domain.InventoryClient,
	users domain.UserDirectory,
	producer *kafka.Producer,
	logger *log.Entry,
) *Engine {
	engine := NewEngine(orders, carts, outbox, timeline, inventory, users, logger)
	engine.producer = producer
	return engine
}

// NewEngineWithoutMetrics создаёт движок без метрик (для тестов).
func NewEngineWithoutMetrics(
	orders domain.OrderRepository,
	carts domain.CartRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	inventory domain.InventoryClient,
	users domain.UserDirectory,
	logger *log.Entry,
) *Engine {
	engine := NewEngine(orders, carts, outbox, timeline, inventory, users, logger)
	engine.metrics = nil
	return engine
}

// OrderLineRequest описывает одну запрашиваемую позицию заказа.
// CartID задаётся, если позиция пришла из корзины: запись корзины
// деактивируется после создания заказа.
type OrderLineRequest struct {
	ProductID      string
	ManufacturerID string
	Qty            int32
	PriceMinor     int64
	CartID         string
}

// CreateOrderRequest описывает запрос на создание заказа.
type CreateOrderRequest struct {
	RetailerID        string
	ManufacturerID    string
	CreatedBy         string
	PaymentMode       domain.PaymentMode
	PaymentCurrency   string
	ShippingCostMinor int64
	ShippingCurrency  string
	ShippingAddress   string
	Lines             []OrderLineRequest
}

// CreateOrder создаёт заказ с позициями и деактивирует использованные записи
// корзины. Сток при создании не трогается. Заказ и позиции вставляются
// последовательно: при сбое вставки позиции заказ не откатывается.
func (e *Engine) CreateOrder(ctx context.Context, req CreateOrderRequest) (domain.Order, error) {
	start := time.Now()
	defer e.observeOperation("create_order", start)

	if req.RetailerID == "" {
		return domain.Order{}, domain.NewValidationError(domain.ErrRetailerRequired.Error())
	}
	if len(req.Lines) == 0 {
		return domain.Order{}, domain.NewValidationError(domain.ErrDetailsRequired.Error())
	}
	if req.PaymentMode == "" {
		req.PaymentMode = domain.PaymentModeCash
	}
	if !req.PaymentMode.Valid() {
		return domain.Order{}, domain.NewValidationError("unsupported payment mode")
	}

	if err := e.resolveRetailer(ctx, req.RetailerID); err != nil {
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:                uuid.NewString(),
		RetailerID:        req.RetailerID,
		ManufacturerID:    req.ManufacturerID,
		Status:            domain.OrderStatusNew,
		PaymentMode:       req.PaymentMode,
		PaymentCurrency:   req.PaymentCurrency,
		ShippingCostMinor: req.ShippingCostMinor,
		ShippingCurrency:  req.ShippingCurrency,
		ShippingAddress:   req.ShippingAddress,
		IsActive:          true,
		CreatedOn:         now,
		CreatedBy:         req.CreatedBy,
		UpdatedOn:         now,
		UpdatedBy:         req.CreatedBy,
	}

	for i, line := range req.Lines {
		manufacturerID := line.ManufacturerID
		if manufacturerID == "" {
			manufacturerID = req.ManufacturerID
		}
		// Хранилища сортируют позиции по (CreatedOn, ID); сдвиг на номер
		// строки сохраняет порядок строк запроса при перечитывании.
		lineCreatedOn := now.Add(time.Duration(i) * time.Microsecond)
		order.Details = append(order.Details, domain.OrderDetail{
			ID:             uuid.NewString(),
			OrderID:        order.ID,
			ProductID:      line.ProductID,
			ManufacturerID: manufacturerID,
			Qty:            line.Qty,
			PriceMinor:     line.PriceMinor,
			ItemStatus:     domain.OrderStatusNew,
			IsActive:       true,
			CreatedOn:      lineCreatedOn,
			CreatedBy:      req.CreatedBy,
			UpdatedOn:      lineCreatedOn,
			UpdatedBy:      req.CreatedBy,
		})
		order.TotalPriceMinor += int64(line.Qty) * line.PriceMinor
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, domain.NewValidationError(joinErrors(errs))
	}

	if err := e.orders.InsertOrder(ctx, order); err != nil {
		e.logger.WithError(err).WithField("order_id", order.ID).Error("order insert failed")
		return domain.Order{}, err
	}
	for _, detail := range order.Details {
		if err := e.orders.InsertDetail(ctx, detail); err != nil {
			// Заказ уже сохранён и назад не откатывается.
			e.logger.WithError(err).WithFields(log.Fields{
				"order_id":  order.ID,
				"detail_id": detail.ID,
			}).Error("order detail insert failed")
			return domain.Order{}, err
		}
	}

	if err := e.consumeCarts(ctx, req.Lines, req.CreatedBy, now); err != nil {
		return domain.Order{}, err
	}

	if e.metrics != nil {
		e.metrics.RecordOrderCreated()
	}
	e.emitOrderEvent(&order, kafka.EventTypeOrderCreated, map[string]interface{}{
		"retailer_id":       order.RetailerID,
		"total_price_minor": order.TotalPriceMinor,
		"lines":             len(order.Details),
	})

	return order, nil
}

// UpdateOrderRequest описывает запрос на изменение изменяемых полей заказа.
// Статус передаётся отображаемым именем; неизвестное имя трактуется как
// Submitted, совместимо с прежними клиентами.
type UpdateOrderRequest struct {
	OrderID             string
	StatusDisplayName   string
	DeliveryPersonnelID string
	UpdatedBy           string
}

// UpdateOrder меняет статус и курьера заказа. Неизменяемые поля
// (стороны сделки, сумма, отметки создания) не трогаются.
func (e *Engine) UpdateOrder(ctx context.Context, req UpdateOrderRequest) (domain.Order, error) {
	start := time.Now()
	defer e.observeOperation("update_order", start)

	if req.OrderID == "" {
		return domain.Order{}, domain.NewValidationError("order id is required")
	}
	if req.StatusDisplayName == "" {
		return domain.Order{}, domain.NewValidationError("order status is required")
	}

	order, err := e.loadOrder(ctx, req.OrderID)
	if err != nil {
		return domain.Order{}, err
	}

	order.Status = domain.ParseOrderStatusDisplayName(req.StatusDisplayName)
	if req.DeliveryPersonnelID != "" {
		order.DeliveryPersonnelID = req.DeliveryPersonnelID
	}
	order.UpdatedOn = time.Now().UTC()
	order.UpdatedBy = req.UpdatedBy

	if err := e.orders.UpdateMutableFields(ctx, order); err != nil {
		return domain.Order{}, classifyOrderErr(err, req.OrderID)
	}

	e.emitOrderEvent(&order, kafka.EventTypeOrderUpdated, map[string]interface{}{
		"status":                string(order.Status),
		"delivery_personnel_id": order.DeliveryPersonnelID,
	})

	return order, nil
}

// GetOrder возвращает заказ с позициями.
func (e *Engine) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, domain.NewValidationError("order id is required")
	}
	return e.loadOrder(ctx, orderID)
}

// ListOrdersByManufacturer возвращает заказы, содержащие позиции производителя.
// Отсутствие заказов — не ошибка, возвращается пустой срез.
func (e *Engine) ListOrdersByManufacturer(ctx context.Context, manufacturerID string) ([]domain.Order, error) {
	if manufacturerID == "" {
		return nil, domain.NewValidationError(domain.ErrManufacturerRequired.Error())
	}

	orders, err := e.orders.ListByManufacturer(ctx, manufacturerID)
	if err != nil {
		if domain.KindOf(err) != "" {
			return nil, err
		}
		return nil, domain.NewPersistenceError("list orders by manufacturer", err)
	}
	return orders, nil
}

func (e *Engine) loadOrder(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := e.orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, classifyOrderErr(err, orderID)
	}
	return order, nil
}

// resolveRetailer проверяет, что ритейлер существует в справочнике пользователей.
func (e *Engine) resolveRetailer(ctx context.Context, retailerID string) error {
	found, err := e.users.GetUsersByIds(ctx, []string{retailerID})
	if err != nil {
		if domain.KindOf(err) != "" {
			return err
		}
		return domain.NewDependencyError("user directory lookup failed", retailerID, err)
	}
	if _, ok := found[retailerID]; !ok {
		return domain.NewNotFoundError("retailer not found", retailerID, domain.ErrUserNotFound)
	}
	return nil
}

// consumeCarts деактивирует записи корзины, на которые ссылаются позиции.
// Заказ к этому моменту уже сохранён и назад не откатывается.
func (e *Engine) consumeCarts(ctx context.Context, lines []OrderLineRequest, actor string, now time.Time) error {
	for _, line := range lines {
		if line.CartID == "" {
			continue
		}

		cart, err := e.carts.GetByID(ctx, line.CartID)
		if err != nil {
			return classifyCartErr(err, line.CartID)
		}

		cart.Status = domain.CartStatusConverted
		cart.IsActive = false
		cart.UpdatedOn = now
		cart.UpdatedBy = actor
		if err := e.carts.Update(ctx, cart); err != nil {
			return classifyCartErr(err, line.CartID)
		}
	}
	return nil
}

// emitOrderEvent пишет событие в outbox и timeline, опционально дублируя в Kafka.
func (e *Engine) emitOrderEvent(order *domain.Order, eventType kafka.EventType, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID

	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       data,
	}
	if _, err := e.outbox.Enqueue(msg); err != nil {
		e.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
	} else if e.metrics != nil {
		e.metrics.RecordOutboxEvent()
	}

	if e.timeline != nil {
		var reason string
		if r, ok := payload["reason"].(string); ok {
			reason = r
		}
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     string(eventType),
			Reason:   reason,
			Occurred: time.Now().UTC(),
		}
		if err := e.timeline.Append(event); err != nil {
			e.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Warn("append timeline event failed")
		} else if e.metrics != nil {
			e.metrics.RecordTimelineEvent()
		}
	}

	if e.producer != nil {
		event := kafka.NewOrderEvent(eventType, order.ID, order.RetailerID, order.ManufacturerID, string(order.Status), payload)
		if err := e.producer.PublishEvent(kafka.TopicOrderEvents, order.ID, event); err != nil {
			// Kafka опциональна: outbox остаётся источником истины.
			e.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Warn("failed to publish order event to kafka")
		}
	}
}

func (e *Engine) observeOperation(operation string, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordOperationDuration(operation, time.Since(start))
	}
}

// classifyOrderErr переводит ошибки хранилища заказов в классифицированные.
func classifyOrderErr(err error, orderID string) error {
	if domain.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, domain.ErrOrderNotFound) {
		return domain.NewNotFoundError("order not found", orderID, domain.ErrOrderNotFound)
	}
	if errors.Is(err, domain.ErrOrderDetailNotFound) {
		return domain.NewNotFoundError("order detail not found", orderID, domain.ErrOrderDetailNotFound)
	}
	return domain.NewPersistenceError("order store failed", err)
}

// classifyCartErr переводит ошибки хранилища корзины в классифицированные.
func classifyCartErr(err error, cartID string) error {
	if domain.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, domain.ErrCartNotFound) {
		return domain.NewNotFoundError("shopping cart entry not found", cartID, domain.ErrCartNotFound)
	}
	return domain.NewPersistenceError("cart store failed", err)
}

func joinErrors(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}
