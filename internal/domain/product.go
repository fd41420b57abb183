package domain

// Product — снимок товара из внешнего товарного сервиса.
// Quantity читается перед резервированием и перезаписывается атомарно
// через InventoryClient.SetQuantity.
type Product struct {
	ID             string
	Name           string
	ManufacturerID string
	Quantity       int32
	PriceMinor     int64
}

// User — снимок пользователя из внешнего справочника.
// Ритейлеры, производители и курьеры живут в одном пространстве идентификаторов.
type User struct {
	ID      string
	Name    string
	Phone   string
	Address string
}
