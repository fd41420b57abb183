package domain

import "time"

// OrderDetail представляет одну позицию заказа со своим собственным статусом.
type OrderDetail struct {
	// ID позиции нужен для однозначной идентификации в workflow принятия.
	ID string
	// OrderID — заказ-владелец; позиция создаётся только вместе с ним.
	OrderID string
	// ProductID — товар во внешнем каталоге.
	ProductID string
	// ManufacturerID — производитель товара.
	ManufacturerID string
	// Qty — количество единиц товара.
	Qty int32
	// PriceMinor — цена за единицу на момент заказа, в минимальных денежных единицах.
	PriceMinor int64
	// ItemStatus живёт в том же пространстве значений, что и статус заказа.
	ItemStatus OrderStatus
	// IsActive — флаг мягкого удаления.
	IsActive  bool
	CreatedOn time.Time
	CreatedBy string
	UpdatedOn time.Time
	UpdatedBy string
}

// Order агрегирует состояние заказа ритейлера у производителя.
type Order struct {
	ID             string
	RetailerID     string
	ManufacturerID string
	// DeliveryPersonnelID пустой, пока курьер не назначен.
	DeliveryPersonnelID string
	Status              OrderStatus
	// TotalPriceMinor фиксируется при создании как сумма позиций и
	// отдельно никогда не редактируется.
	TotalPriceMinor   int64
	PaymentMode       PaymentMode
	PaymentCurrency   string
	ShippingCostMinor int64
	ShippingCurrency  string
	ShippingAddress   string
	IsActive          bool
	CreatedOn         time.Time
	CreatedBy         string
	UpdatedOn         time.Time
	UpdatedBy         string
	Details           []OrderDetail
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.RetailerID == "" {
		errs = append(errs, ErrRetailerRequired)
	}
	if o.ManufacturerID == "" {
		errs = append(errs, ErrManufacturerRequired)
	}
	if o.PaymentCurrency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Details) == 0 {
		errs = append(errs, ErrDetailsRequired)
	}
	if o.TotalPriceMinor < 0 {
		errs = append(errs, ErrTotalNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, detail := range o.Details {
		if detail.Qty <= 0 {
			errs = append(errs, ErrDetailQtyInvalid)
		}
		if detail.PriceMinor < 0 {
			errs = append(errs, ErrDetailPriceInvalid)
		}
		calc += int64(detail.Qty) * detail.PriceMinor
	}
	if calc != o.TotalPriceMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// DetailByID возвращает позицию заказа по идентификатору.
func (o *Order) DetailByID(detailID string) (OrderDetail, bool) {
	for _, detail := range o.Details {
		if detail.ID == detailID {
			return detail, true
		}
	}
	return OrderDetail{}, false
}
