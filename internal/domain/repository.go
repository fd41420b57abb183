package domain

import "context"

// OrderFilter задаёт необязательные ограничения для поиска заказов.
// Пустое поле означает "без ограничения". Фильтры по именам разрешаются
// отдельно движком через внешние справочники, а не хранилищем.
type OrderFilter struct {
	OrderID             string
	RetailerID          string
	ManufacturerID      string
	DeliveryPersonnelID string
	Status              OrderStatus
	ItemStatus          OrderStatus
}

// OrderRepository описывает требования к хранилищу заказов.
// Заказ и его позиции вставляются по отдельности: если вставка заказа
// не удалась, позиции не создаются; откат заказа при сбое вставки позиции
// не выполняется.
type OrderRepository interface {
	// InsertOrder сохраняет новый заказ без позиций.
	InsertOrder(ctx context.Context, order Order) error
	// InsertDetail сохраняет одну позицию существующего заказа.
	InsertDetail(ctx context.Context, detail OrderDetail) error
	// GetByID возвращает заказ с позициями или ErrOrderNotFound.
	GetByID(ctx context.Context, orderID string) (Order, error)
	// GetDetailsByOrderID возвращает позиции заказа.
	GetDetailsByOrderID(ctx context.Context, orderID string) ([]OrderDetail, error)
	// ListByManufacturer возвращает заказы, содержащие позиции производителя.
	ListByManufacturer(ctx context.Context, manufacturerID string) ([]Order, error)
	// UpdateMutableFields применяет изменяемые поля заказа: статус, курьера
	// и отметку обновления. Неизменяемые поля не трогаются.
	UpdateMutableFields(ctx context.Context, order Order) error
	// UpdateStatus меняет только статус заказа.
	UpdateStatus(ctx context.Context, orderID string, status OrderStatus, updatedBy string) error
	// UpdateDetailStatus меняет статус одной позиции.
	UpdateDetailStatus(ctx context.Context, detailID string, status OrderStatus, updatedBy string) error
	// Search возвращает заказы с позициями, удовлетворяющие фильтру,
	// в стабильном порядке (новые первыми).
	Search(ctx context.Context, filter OrderFilter) ([]Order, error)
}

// CartRepository описывает требования к хранилищу корзины.
// Записи корзины никогда не удаляются физически, только деактивируются.
type CartRepository interface {
	// Insert сохраняет новую запись корзины.
	Insert(ctx context.Context, cart ShoppingCart) error
	// GetByID возвращает запись или ErrCartNotFound.
	GetByID(ctx context.Context, cartID string) (ShoppingCart, error)
	// ListByRetailer возвращает активные записи корзины ритейлера.
	ListByRetailer(ctx context.Context, retailerID string) ([]ShoppingCart, error)
	// Update перезаписывает изменяемые поля записи (статус, активность,
	// отметку обновления).
	Update(ctx context.Context, cart ShoppingCart) error
}
