package domain

// OrderStatus описывает жизненный цикл заказа и его позиций.
type OrderStatus string

const (
	// OrderStatusNew — заказ создан ритейлером, производитель его ещё не рассматривал.
	OrderStatusNew OrderStatus = "new"
	// OrderStatusSave — черновик: заказ сохранён, но не отправлен производителю.
	OrderStatusSave OrderStatus = "save"
	// OrderStatusSubmitted — заказ отправлен производителю на рассмотрение.
	OrderStatusSubmitted OrderStatus = "submitted"
	// OrderStatusAccepted — производитель принял заказ, сток зарезервирован.
	OrderStatusAccepted OrderStatus = "accepted"
	// OrderStatusRejected — заказ отклонён; резервы по принятым позициям возвращены.
	OrderStatusRejected OrderStatus = "rejected"
)

// displayNames — соответствие статусов и их отображаемых имён в API.
var displayNames = map[OrderStatus]string{
	OrderStatusNew:       "New",
	OrderStatusSave:      "Save",
	OrderStatusSubmitted: "Submitted",
	OrderStatusAccepted:  "Accepted",
	OrderStatusRejected:  "Rejected",
}

// Valid сообщает, относится ли статус к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	_, ok := displayNames[s]
	return ok
}

// DisplayName возвращает отображаемое имя статуса для API-ответов.
// Для неизвестного статуса возвращается пустая строка.
func (s OrderStatus) DisplayName() string {
	return displayNames[s]
}

// ParseOrderStatusDisplayName переводит отображаемое имя в OrderStatus.
// Неизвестное имя трактуется как Submitted: прежние клиенты полагаются
// на этот fallback.
func ParseOrderStatusDisplayName(name string) OrderStatus {
	for status, display := range displayNames {
		if display == name {
			return status
		}
	}
	return OrderStatusSubmitted
}

// Terminal сообщает, завершён ли жизненный цикл заказа.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusAccepted || s == OrderStatusRejected
}

// PaymentMode описывает способ оплаты заказа.
type PaymentMode string

const (
	PaymentModeCash     PaymentMode = "cash"
	PaymentModeCard     PaymentMode = "card"
	PaymentModeTransfer PaymentMode = "transfer"
)

// Valid сообщает, поддерживается ли способ оплаты.
func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentModeCash, PaymentModeCard, PaymentModeTransfer:
		return true
	default:
		return false
	}
}

// CartStatus описывает состояние записи корзины.
type CartStatus string

const (
	// CartStatusSave — товар отложен в корзину и ещё не заказан.
	CartStatusSave CartStatus = "save"
	// CartStatusConverted — запись сконвертирована в позицию заказа.
	CartStatusConverted CartStatus = "converted"
)
