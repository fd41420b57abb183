package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
// Заказы и позиции хранятся раздельно, как и в PostgreSQL-реализации.
type orderRepositoryInMemory struct {
	mu      sync.RWMutex
	orders  map[string]domain.Order
	details map[string]domain.OrderDetail
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		orders:  make(map[string]domain.Order),
		details: make(map[string]domain.OrderDetail),
	}
}

// InsertOrder сохраняет новый заказ без позиций, если ID ещё не занят.
func (r *orderRepositoryInMemory) InsertOrder(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.NewPersistenceError("order already exists", nil)
	}
	// Позиции живут в отдельной таблице; копия без них.
	order.Details = nil
	r.orders[order.ID] = order
	return nil
}

// InsertDetail сохраняет позицию заказа.
func (r *orderRepositoryInMemory) InsertDetail(_ context.Context, detail domain.OrderDetail) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.details[detail.ID]; exists {
		return domain.NewPersistenceError("order detail already exists", nil)
	}
	r.details[detail.ID] = detail
	return nil
}

// GetByID возвращает заказ с позициями или ErrOrderNotFound.
func (r *orderRepositoryInMemory) GetByID(_ context.Context, orderID string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Details = r.detailsOf(orderID)
	return order, nil
}

// GetDetailsByOrderID возвращает позиции заказа в порядке создания.
func (r *orderRepositoryInMemory) GetDetailsByOrderID(_ context.Context, orderID string) ([]domain.OrderDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.detailsOf(orderID), nil
}

// ListByManufacturer возвращает заказы, в которых есть позиции производителя.
func (r *orderRepositoryInMemory) ListByManufacturer(_ context.Context, manufacturerID string) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0)
	for id, order := range r.orders {
		details := r.detailsOf(id)
		match := order.ManufacturerID == manufacturerID
		for _, d := range details {
			if d.ManufacturerID == manufacturerID {
				match = true
				break
			}
		}
		if !match {
			continue
		}
		order.Details = details
		result = append(result, order)
	}

	sortOrders(result)
	return result, nil
}

// UpdateMutableFields применяет статус, курьера и отметку обновления.
func (r *orderRepositoryInMemory) UpdateMutableFields(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	current.Status = order.Status
	current.DeliveryPersonnelID = order.DeliveryPersonnelID
	current.UpdatedOn = order.UpdatedOn
	current.UpdatedBy = order.UpdatedBy
	r.orders[order.ID] = current
	return nil
}

// UpdateStatus меняет только статус заказа.
func (r *orderRepositoryInMemory) UpdateStatus(_ context.Context, orderID string, status domain.OrderStatus, updatedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	current.Status = status
	current.UpdatedOn = time.Now().UTC()
	current.UpdatedBy = updatedBy
	r.orders[orderID] = current
	return nil
}

// UpdateDetailStatus меняет статус одной позиции.
func (r *orderRepositoryInMemory) UpdateDetailStatus(_ context.Context, detailID string, status domain.OrderStatus, updatedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	detail, ok := r.details[detailID]
	if !ok {
		return domain.ErrOrderDetailNotFound
	}
	detail.ItemStatus = status
	detail.UpdatedOn = time.Now().UTC()
	detail.UpdatedBy = updatedBy
	r.details[detailID] = detail
	return nil
}

// Search возвращает заказы с позициями, удовлетворяющие фильтру.
func (r *orderRepositoryInMemory) Search(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0)
	for id, order := range r.orders {
		order.Details = r.detailsOf(id)
		if !matchesFilter(order, filter) {
			continue
		}
		result = append(result, order)
	}

	sortOrders(result)
	return result, nil
}

func (r *orderRepositoryInMemory) detailsOf(orderID string) []domain.OrderDetail {
	details := make([]domain.OrderDetail, 0)
	for _, d := range r.details {
		if d.OrderID == orderID {
			details = append(details, d)
		}
	}
	sort.Slice(details, func(i, j int) bool {
		if !details[i].CreatedOn.Equal(details[j].CreatedOn) {
			return details[i].CreatedOn.Before(details[j].CreatedOn)
		}
		return details[i].ID < details[j].ID
	})
	return details
}

func matchesFilter(order domain.Order, filter domain.OrderFilter) bool {
	if filter.OrderID != "" && order.ID != filter.OrderID {
		return false
	}
	if filter.RetailerID != "" && order.RetailerID != filter.RetailerID {
		return false
	}
	if filter.DeliveryPersonnelID != "" && order.DeliveryPersonnelID != filter.DeliveryPersonnelID {
		return false
	}
	if filter.Status != "" && order.Status != filter.Status {
		return false
	}
	// Сравнение строгое, как в PostgreSQL-реализации: драйверы хранилища
	// обязаны фильтровать одинаково.
	if filter.ManufacturerID != "" {
		found := order.ManufacturerID == filter.ManufacturerID
		for _, d := range order.Details {
			if d.ManufacturerID == filter.ManufacturerID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.ItemStatus != "" {
		found := false
		for _, d := range order.Details {
			if d.ItemStatus == filter.ItemStatus {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortOrders(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedOn.Equal(orders[j].CreatedOn) {
			return orders[i].CreatedOn.After(orders[j].CreatedOn)
		}
		return orders[i].ID > orders[j].ID
	})
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
