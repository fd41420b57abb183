package inventory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
)

// MockClient — конфигурируемая заглушка InventoryClient для тестов.
// Хранит товары в памяти и умеет подменять ошибки по отдельным операциям.
type MockClient struct {
	mu       sync.Mutex
	products map[string]domain.Product

	GetErr error
	SetErr error
	// SetErrFor вызывает ошибку только для конкретного товара.
	SetErrFor map[string]error

	GetCalls int
	SetCalls []QuantityCall
}

// QuantityCall фиксирует один вызов SetQuantity.
type QuantityCall struct {
	ProductID string
	Quantity  int32
}

// NewMockClient возвращает mock с заданным набором товаров.
func NewMockClient(products ...domain.Product) *MockClient {
	m := &MockClient{products: make(map[string]domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

// GetProduct возвращает товар из памяти или ErrProductNotFound.
func (m *MockClient) GetProduct(_ context.Context, productID string) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls++
	if m.GetErr != nil {
		return domain.Product{}, m.GetErr
	}
	product, ok := m.products[productID]
	if !ok {
		return domain.Product{}, domain.NewNotFoundError("product not found", productID, domain.ErrProductNotFound)
	}
	return product, nil
}

// GetProductsByIds возвращает найденные товары; отсутствующие пропускаются.
func (m *MockClient) GetProductsByIds(_ context.Context, productIDs []string) (map[string]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	result := make(map[string]domain.Product, len(productIDs))
	for _, id := range productIDs {
		if product, ok := m.products[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

// SetQuantity перезаписывает количество и считает вызовы.
func (m *MockClient) SetQuantity(_ context.Context, productID string, quantity int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetCalls = append(m.SetCalls, QuantityCall{ProductID: productID, Quantity: quantity})
	if m.SetErr != nil {
		return m.SetErr
	}
	if err, ok := m.SetErrFor[productID]; ok && err != nil {
		return err
	}
	product, ok := m.products[productID]
	if !ok {
		return domain.NewNotFoundError("product not found", productID, domain.ErrProductNotFound)
	}
	product.Quantity = quantity
	m.products[productID] = product
	return nil
}

// Quantity возвращает текущее количество товара (для проверок в тестах).
func (m *MockClient) Quantity(productID string) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.products[productID].Quantity
}

var _ domain.InventoryClient = (*MockClient)(nil)
