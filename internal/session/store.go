package session

import (
	"context"
	"encoding/json"
	"sync"
)

// Store is the injected session storage seam. Both operations are expected to
// be at-least-once durable; Get returns (nil, nil) for an unknown dialog.
type Store interface {
	Get(ctx context.Context, scopeID, dialogID string) (*Session, error)
	Put(ctx context.Context, scopeID, dialogID string, s *Session) error
}

// MemoryStore is an in-process Store. Sessions are stored as JSON so that a
// loaded session is always an isolated copy, matching the behavior of a
// remote backend.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func storeKey(scopeID, dialogID string) string {
	return scopeID + "::" + dialogID
}

// Get loads a session copy, or nil when the dialog has no session yet.
func (m *MemoryStore) Get(_ context.Context, scopeID, dialogID string) (*Session, error) {
	m.mu.RLock()
	raw, ok := m.data[storeKey(scopeID, dialogID)]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	s := &Session{}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Put persists a session copy.
func (m *MemoryStore) Put(_ context.Context, scopeID, dialogID string, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[storeKey(scopeID, dialogID)] = raw
	m.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
