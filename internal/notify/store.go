package notify

import (
	"sync"

	"github.com/example/inspection-dispatch/internal/models"
	"github.com/example/inspection-dispatch/internal/observability"
)

// DefaultCapacity bounds the store to the most recent entries.
const DefaultCapacity = 10

// Store is the bounded, deduplicated notification record. Insertion order
// is the eviction order; read state never protects an entry from eviction.
type Store struct {
	mu       sync.Mutex
	capacity int
	items    []models.Notification // oldest first
	index    map[string]int        // id -> position in items
}

func NewStore() *Store {
	return NewStoreWithCapacity(DefaultCapacity)
}

func NewStoreWithCapacity(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity, index: make(map[string]int)}
}

// Add inserts a notification. A duplicate id within the current window is
// dropped. Beyond capacity the single oldest entry is evicted, read or not.
func (s *Store) Add(n models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.index[n.ID]; dup {
		return
	}
	s.items = append(s.items, n)
	s.index[n.ID] = len(s.items) - 1
	if len(s.items) > s.capacity {
		evicted := s.items[0]
		s.items = s.items[1:]
		delete(s.index, evicted.ID)
		s.reindex()
		observability.NotificationsEvicted.Inc()
	}
}

// MarkRead is idempotent: re-marking a read notification changes nothing.
func (s *Store) MarkRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[id]; ok {
		s.items[i].Read = true
	}
}

func (s *Store) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		s.items[i].Read = true
	}
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, id)
	s.reindex()
}

func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items {
		if !it.Read {
			n++
		}
	}
	return n
}

// List returns the held notifications, newest first.
func (s *Store) List() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, 0, len(s.items))
	for i := len(s.items) - 1; i >= 0; i-- {
		out = append(out, s.items[i])
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Replace swaps the whole window, used when re-syncing from the server.
func (s *Store) Replace(items []models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(items) > s.capacity {
		items = items[len(items)-s.capacity:]
	}
	s.items = append([]models.Notification(nil), items...)
	s.index = make(map[string]int, len(s.items))
	s.reindex()
}

func (s *Store) reindex() {
	for i, it := range s.items {
		s.index[it.ID] = i
	}
}
