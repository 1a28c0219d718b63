package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemStore is an in-memory Store used in tests and ephemeral setups. Values
// round-trip through JSON so stored data is decoupled from caller state.
type MemStore struct {
	mu   sync.Mutex
	data map[string][]byte

	// SaveErr, when set, is returned by Save for the matching key. Tests use
	// it to exercise partial-failure compensation paths.
	SaveErr map[string]error
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

// Load decodes the stored document for key into v.
func (s *MemStore) Load(ctx context.Context, key string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[key]
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, v)
}

// Save replaces the document for key.
func (s *MemStore) Save(ctx context.Context, key string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		if err, ok := s.SaveErr[key]; ok && err != nil {
			return err
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.data[key] = raw
	return nil
}
