package lifecycle

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
	"github.com/vladislavdragonenkov/marketplace-oms/internal/messaging/kafka"
)

// ReviewDecision — решение производителя по одной позиции заказа.
type ReviewDecision struct {
	DetailID string
	Accepted bool
}

// ReviewOrderRequest описывает запрос workflow принятия/отклонения.
type ReviewOrderRequest struct {
	OrderID    string
	ReviewedBy string
	Decisions  []ReviewDecision
}

// ReviewOrder выполняет workflow принятия/отклонения заказа.
//
// Сток списывается жадно, позиция за позицией: следующая позиция того же
// товара в одном запросе видит уже зарезервированное количество. Если хотя бы
// одна позиция отклонена, заказ целиком становится Rejected и сток всех
// принятых позиций (в этом вызове или в прежних) возвращается обратно —
// политика заказа «всё или ничего». Возврат стока best-effort: сбой по одной
// позиции логируется и не мешает остальным.
//
// Повтор вызова после остановленного review безопасен: решение «принять»
// по уже принятой позиции не списывает сток второй раз.
//
// Вызовы по одному заказу сериализуются внутри процесса.
func (e *Engine) ReviewOrder(ctx context.Context, req ReviewOrderRequest) (domain.Order, error) {
	start := time.Now()
	if e.metrics != nil {
		e.metrics.RecordReviewStarted()
	}
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordReviewFinished()
			e.metrics.RecordReviewDuration(time.Since(start))
		}
		e.observeOperation("review_order", start)
	}()

	if req.OrderID == "" {
		return domain.Order{}, e.reviewFailed(domain.NewValidationError("order id is required"))
	}
	if len(req.Decisions) == 0 {
		return domain.Order{}, e.reviewFailed(domain.NewValidationError("at least one review decision is required"))
	}

	unlock := e.reviewLocks.Lock(req.OrderID)
	defer unlock()

	order, err := e.loadOrder(ctx, req.OrderID)
	if err != nil {
		return domain.Order{}, e.reviewFailed(err)
	}
	if order.Status != domain.OrderStatusNew && order.Status != domain.OrderStatusSubmitted {
		return domain.Order{}, e.reviewFailed(domain.NewValidationError(
			"order cannot be reviewed in status " + string(order.Status)))
	}

	// Принятые в прежних вызовах позиции участвуют только в компенсации.
	previouslyAccepted := make([]domain.OrderDetail, 0, len(order.Details))
	for _, detail := range order.Details {
		if detail.ItemStatus == domain.OrderStatusAccepted {
			previouslyAccepted = append(previouslyAccepted, detail)
		}
	}

	var (
		newlyAccepted []domain.OrderDetail
		anyRejected   bool
	)

	// Дубликаты отвергаются до первого побочного эффекта: одно решение
	// на позицию за вызов.
	reviewed := make(map[string]struct{}, len(req.Decisions))
	for _, decision := range req.Decisions {
		if _, dup := reviewed[decision.DetailID]; dup {
			return domain.Order{}, e.reviewFailed(domain.NewValidationError(
				"duplicate review decision for order detail " + decision.DetailID))
		}
		reviewed[decision.DetailID] = struct{}{}
	}

	for _, decision := range req.Decisions {
		detail, ok := order.DetailByID(decision.DetailID)
		if !ok {
			return domain.Order{}, e.reviewFailed(domain.NewNotFoundError(
				"order detail does not belong to order", decision.DetailID, domain.ErrOrderDetailNotFound))
		}

		// Позиция, принятая прежним вызовом (повтор после остановленного
		// review): сток уже зарезервирован, повторное списание недопустимо.
		// Такая позиция участвует только в компенсации.
		if decision.Accepted && detail.ItemStatus == domain.OrderStatusAccepted {
			continue
		}

		product, err := e.inventory.GetProduct(ctx, detail.ProductID)
		if err != nil {
			return domain.Order{}, e.reviewFailed(err)
		}

		if !decision.Accepted {
			// Отклонение не трогает сток, но товар обязан существовать.
			if err := e.orders.UpdateDetailStatus(ctx, detail.ID, domain.OrderStatusRejected, req.ReviewedBy); err != nil {
				return domain.Order{}, e.reviewFailed(classifyOrderErr(err, detail.ID))
			}
			anyRejected = true
			continue
		}

		if product.Quantity < detail.Qty {
			return domain.Order{}, e.reviewFailed(domain.NewConflictError("insufficient stock", detail.ProductID))
		}
		if err := e.inventory.SetQuantity(ctx, detail.ProductID, product.Quantity-detail.Qty); err != nil {
			return domain.Order{}, e.reviewFailed(err)
		}
		if err := e.orders.UpdateDetailStatus(ctx, detail.ID, domain.OrderStatusAccepted, req.ReviewedBy); err != nil {
			return domain.Order{}, e.reviewFailed(classifyOrderErr(err, detail.ID))
		}
		newlyAccepted = append(newlyAccepted, detail)
	}

	finalStatus := domain.OrderStatusAccepted
	if anyRejected {
		finalStatus = domain.OrderStatusRejected
		e.restoreStock(ctx, order.ID, previouslyAccepted, newlyAccepted)
	}

	if err := e.orders.UpdateStatus(ctx, order.ID, finalStatus, req.ReviewedBy); err != nil {
		return domain.Order{}, e.reviewFailed(classifyOrderErr(err, order.ID))
	}

	order, err = e.loadOrder(ctx, req.OrderID)
	if err != nil {
		return domain.Order{}, e.reviewFailed(err)
	}

	if finalStatus == domain.OrderStatusAccepted {
		if e.metrics != nil {
			e.metrics.RecordOrderAccepted()
		}
		e.emitOrderEvent(&order, kafka.EventTypeOrderAccepted, map[string]interface{}{
			"reviewed_by": req.ReviewedBy,
			"lines":       len(req.Decisions),
		})
	} else {
		if e.metrics != nil {
			e.metrics.RecordOrderRejected()
		}
		e.emitOrderEvent(&order, kafka.EventTypeOrderRejected, map[string]interface{}{
			"reviewed_by": req.ReviewedBy,
			"reason":      "at least one line rejected",
		})
	}

	return order, nil
}

// restoreStock возвращает сток всех принятых позиций отклонённого заказа.
// Позиции дедуплицируются по идентификатору: принятая ранее позиция не
// возвращается дважды.
func (e *Engine) restoreStock(ctx context.Context, orderID string, groups ...[]domain.OrderDetail) {
	seen := make(map[string]struct{})
	for _, group := range groups {
		for _, detail := range group {
			if _, ok := seen[detail.ID]; ok {
				continue
			}
			seen[detail.ID] = struct{}{}

			product, err := e.inventory.GetProduct(ctx, detail.ProductID)
			if err != nil {
				e.logRestoreFailure(orderID, detail, err)
				continue
			}
			if err := e.inventory.SetQuantity(ctx, detail.ProductID, product.Quantity+detail.Qty); err != nil {
				e.logRestoreFailure(orderID, detail, err)
				continue
			}
			if e.metrics != nil {
				e.metrics.RecordStockRestore()
			}
		}
	}
}

func (e *Engine) logRestoreFailure(orderID string, detail domain.OrderDetail, err error) {
	e.logger.WithError(err).WithFields(log.Fields{
		"order_id":   orderID,
		"detail_id":  detail.ID,
		"product_id": detail.ProductID,
	}).Warn("stock restore failed")
	if e.metrics != nil {
		e.metrics.RecordReviewFailed()
	}
}

func (e *Engine) reviewFailed(err error) error {
	if e.metrics != nil {
		e.metrics.RecordReviewFailed()
	}
	return err
}
