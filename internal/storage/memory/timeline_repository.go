package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
)

// timelineRepositoryInMemory держит аудит жизненного цикла заказов в памяти.
// Используется в тестах и при локальной разработке без PostgreSQL.
type timelineRepositoryInMemory struct {
	mu      sync.RWMutex
	byOrder map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{byOrder: make(map[string][]domain.TimelineEvent)}
}

// Append записывает событие в ленту заказа. События с одинаковым Occurred
// (создание и отправка в одном запросе) сохраняют порядок записи.
func (r *timelineRepositoryInMemory) Append(event domain.TimelineEvent) error {
	if event.OrderID == "" {
		return domain.NewValidationError("timeline event requires order id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	timeline := append(r.byOrder[event.OrderID], event)
	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].Occurred.Before(timeline[j].Occurred)
	})
	r.byOrder[event.OrderID] = timeline

	return nil
}

// List возвращает ленту заказа от старых событий к новым.
func (r *timelineRepositoryInMemory) List(orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	timeline := r.byOrder[orderID]
	result := make([]domain.TimelineEvent, len(timeline))
	copy(result, timeline)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
