package presence

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/example/inspection-dispatch/internal/models"
)

// Store persists the presence flag across restarts.
type Store interface {
	Load() (models.PresenceState, error)
	Save(state models.PresenceState) error
}

// FileStore keeps the flag as a small JSON file next to the agent's state.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load() (models.PresenceState, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.PresenceState{}, nil
	}
	if err != nil {
		return models.PresenceState{}, err
	}
	var state models.PresenceState
	if err := json.Unmarshal(b, &state); err != nil {
		return models.PresenceState{}, err
	}
	return state, nil
}

func (f *FileStore) Save(state models.PresenceState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, b, 0o600)
}

// MemoryStore backs tests and sessions that should not persist presence.
type MemoryStore struct {
	mu    sync.Mutex
	state models.PresenceState
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load() (models.PresenceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *MemoryStore) Save(state models.PresenceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	return nil
}
