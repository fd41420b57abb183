package users

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/domain"
)

// MockDirectory — конфигурируемая заглушка UserDirectory для тестов.
type MockDirectory struct {
	mu    sync.Mutex
	users map[string]domain.User

	Err   error
	Calls int
}

// NewMockDirectory возвращает mock с заданным набором пользователей.
func NewMockDirectory(users ...domain.User) *MockDirectory {
	m := &MockDirectory{users: make(map[string]domain.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

// GetUsersByIds возвращает найденных пользователей; отсутствующие пропускаются.
func (m *MockDirectory) GetUsersByIds(_ context.Context, userIDs []string) (map[string]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	result := make(map[string]domain.User, len(userIDs))
	for _, id := range userIDs {
		if user, ok := m.users[id]; ok {
			result[id] = user
		}
	}
	return result, nil
}

var _ domain.UserDirectory = (*MockDirectory)(nil)
