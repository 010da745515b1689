package storage

import (
	"sort"
	"sync"

	"github.com/example/inspection-dispatch/internal/models"
)

// NotificationStore defines persistence operations for the per-user
// notification log served over the REST boundary.
type NotificationStore interface {
	List(userID string) ([]models.Notification, error)
	Insert(userID string, n models.Notification) error
	MarkRead(userID, id string) error
	MarkAllRead(userID string) error
	Delete(userID, id string) error
}

type MemoryStore struct {
	mu    sync.RWMutex
	byUsr map[string]map[string]models.Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUsr: make(map[string]map[string]models.Notification)}
}

func (m *MemoryStore) List(userID string) ([]models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Notification, 0, len(m.byUsr[userID]))
	for _, n := range m.byUsr[userID] {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Insert(userID string, n models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byUsr[userID] == nil {
		m.byUsr[userID] = make(map[string]models.Notification)
	}
	m.byUsr[userID][n.ID] = n
	return nil
}

func (m *MemoryStore) MarkRead(userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.byUsr[userID][id]; ok {
		n.Read = true
		m.byUsr[userID][id] = n
	}
	return nil
}

func (m *MemoryStore) MarkAllRead(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, n := range m.byUsr[userID] {
		n.Read = true
		m.byUsr[userID][id] = n
	}
	return nil
}

func (m *MemoryStore) Delete(userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byUsr[userID], id)
	return nil
}
