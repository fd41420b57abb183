package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора ритейлера.
	ErrRetailerRequired = errors.New("retailer_id is required")
	// Ошибка отсутствующего идентификатора производителя.
	ErrManufacturerRequired = errors.New("manufacturer_id is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("payment currency is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrDetailsRequired = errors.New("order must contain at least one detail")
	// Ошибка отрицательной суммы заказа.
	ErrTotalNegative = errors.New("total price must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrDetailQtyInvalid = errors.New("detail qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrDetailPriceInvalid = errors.New("detail price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrTotalMismatch = errors.New("order total does not match details sum")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductIDRequired = errors.New("product_id is required")

	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderDetailNotFound возвращается, если позиция заказа не найдена.
	ErrOrderDetailNotFound = errors.New("order detail not found")
	// ErrCartNotFound возвращается, если запись корзины не найдена.
	ErrCartNotFound = errors.New("shopping cart entry not found")
	// ErrProductNotFound — товар отсутствует в каталоге товарного сервиса.
	ErrProductNotFound = errors.New("product not found")
	// ErrUserNotFound — пользователь отсутствует в справочнике пользователей.
	ErrUserNotFound = errors.New("user not found")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// ErrorKind классифицирует ошибки движка для слоя представления.
type ErrorKind string

const (
	// ErrorKindValidation — некорректный ввод; вина вызывающей стороны, без retry.
	ErrorKindValidation ErrorKind = "validation"
	// ErrorKindNotFound — неизвестный заказ/позиция/товар/пользователь/корзина.
	ErrorKindNotFound ErrorKind = "not_found"
	// ErrorKindConflict — нарушение бизнес-правила, например нехватка стока.
	ErrorKindConflict ErrorKind = "conflict"
	// ErrorKindDependency — отказ удалённого сервиса (обновление стока не прошло).
	ErrorKindDependency ErrorKind = "dependency"
	// ErrorKindPersistence — отказ записи в хранилище.
	ErrorKindPersistence ErrorKind = "persistence"
)

// Error — классифицированная ошибка движка жизненного цикла.
// EntityID указывает на проблемную сущность, если она известна;
// внутренние детали наружу не выходят.
type Error struct {
	Kind     ErrorKind
	EntityID string
	msg      string
	cause    error
}

func (e *Error) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s: %s", e.msg, e.EntityID)
	}
	return e.msg
}

// Unwrap отдаёт первопричину для errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewValidationError создаёт ошибку валидации входных данных.
func NewValidationError(msg string) *Error {
	return &Error{Kind: ErrorKindValidation, msg: msg}
}

// NewNotFoundError создаёт ошибку отсутствующей сущности.
func NewNotFoundError(msg, entityID string, cause error) *Error {
	return &Error{Kind: ErrorKindNotFound, EntityID: entityID, msg: msg, cause: cause}
}

// NewConflictError создаёт ошибку нарушенного бизнес-правила.
func NewConflictError(msg, entityID string) *Error {
	return &Error{Kind: ErrorKindConflict, EntityID: entityID, msg: msg}
}

// NewDependencyError создаёт ошибку отказа удалённого сервиса.
func NewDependencyError(msg, entityID string, cause error) *Error {
	return &Error{Kind: ErrorKindDependency, EntityID: entityID, msg: msg, cause: cause}
}

// NewPersistenceError создаёт ошибку записи в хранилище.
func NewPersistenceError(msg string, cause error) *Error {
	return &Error{Kind: ErrorKindPersistence, msg: msg, cause: cause}
}

// KindOf возвращает классификацию ошибки или пустую строку для неклассифицированных.
func KindOf(err error) ErrorKind {
	var domErr *Error
	if errors.As(err, &domErr) {
		return domErr.Kind
	}
	return ""
}

// IsValidation проверяет, является ли ошибка ошибкой валидации.
func IsValidation(err error) bool { return KindOf(err) == ErrorKindValidation }

// IsNotFound проверяет, является ли ошибка ошибкой отсутствующей сущности.
func IsNotFound(err error) bool { return KindOf(err) == ErrorKindNotFound }

// IsConflict проверяет, является ли ошибка нарушением бизнес-правила.
func IsConflict(err error) bool { return KindOf(err) == ErrorKindConflict }

// IsDependency проверяет, является ли ошибка отказом удалённого сервиса.
func IsDependency(err error) bool { return KindOf(err) == ErrorKindDependency }

// IsPersistence проверяет, является ли ошибка отказом хранилища.
func IsPersistence(err error) bool { return KindOf(err) == ErrorKindPersistence }
