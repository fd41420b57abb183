package domain

import "time"

// ShoppingCart описывает отложенный ритейлером товар до оформления заказа.
// Запись не связана с заказом внешним ключом: создание заказа потребляет
// корзину по списку идентификаторов и деактивирует её.
type ShoppingCart struct {
	ID             string
	RetailerID     string
	ProductID      string
	ManufacturerID string
	Qty            int32
	PriceMinor     int64
	Status         CartStatus
	IsActive       bool
	CreatedOn      time.Time
	CreatedBy      string
	UpdatedOn      time.Time
	UpdatedBy      string
}

// Validate проверяет, корректно ли заполнены ключевые поля записи корзины.
func (c *ShoppingCart) Validate() []error {
	var errs []error

	if c.RetailerID == "" {
		errs = append(errs, ErrRetailerRequired)
	}
	if c.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if c.Qty <= 0 {
		errs = append(errs, ErrDetailQtyInvalid)
	}
	if c.PriceMinor < 0 {
		errs = append(errs, ErrDetailPriceInvalid)
	}

	return errs
}
