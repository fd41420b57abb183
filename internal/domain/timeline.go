package domain

import "time"

// TimelineEvent — запись аудита жизненного цикла заказа: создание,
// отправка производителю, решение по review.
type TimelineEvent struct {
	OrderID string
	// Type совпадает с типом события, уходящего в outbox.
	Type     string
	Reason   string
	Occurred time.Time
}
