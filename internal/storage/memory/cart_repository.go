package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
)

// cartRepositoryInMemory — простая in-memory реализация CartRepository.
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.ShoppingCart
}

// NewCartRepository возвращает in-memory репозиторий корзины.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{items: make(map[string]domain.ShoppingCart)}
}

// Insert сохраняет новую запись корзины, если ID ещё не занят.
func (r *cartRepositoryInMemory) Insert(_ context.Context, cart domain.ShoppingCart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[cart.ID]; exists {
		return domain.NewPersistenceError("cart entry already exists", nil)
	}
	r.items[cart.ID] = cart
	return nil
}

// GetByID возвращает запись или ErrCartNotFound.
func (r *cartRepositoryInMemory) GetByID(_ context.Context, cartID string) (domain.ShoppingCart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.items[cartID]
	if !ok {
		return domain.ShoppingCart{}, domain.ErrCartNotFound
	}
	return cart, nil
}

// ListByRetailer возвращает активные записи корзины ритейлера.
func (r *cartRepositoryInMemory) ListByRetailer(_ context.Context, retailerID string) ([]domain.ShoppingCart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.ShoppingCart, 0)
	for _, cart := range r.items {
		if cart.RetailerID != retailerID || !cart.IsActive {
			continue
		}
		result = append(result, cart)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedOn.Equal(result[j].CreatedOn) {
			return result[i].CreatedOn.After(result[j].CreatedOn)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

// Update перезаписывает изменяемые поля записи.
func (r *cartRepositoryInMemory) Update(_ context.Context, cart domain.ShoppingCart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[cart.ID]
	if !ok {
		return domain.ErrCartNotFound
	}
	current.Status = cart.Status
	current.IsActive = cart.IsActive
	current.Qty = cart.Qty
	current.UpdatedOn = cart.UpdatedOn
	current.UpdatedBy = cart.UpdatedBy
	r.items[cart.ID] = current
	return nil
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
