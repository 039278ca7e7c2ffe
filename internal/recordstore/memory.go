package recordstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps encoded documents in a map. Values go through JSON on
// every Set so callers observe the same round-trip behaviour as SQLiteStore.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string, dest interface{}) (bool, error) {
	raw, _ := s.GetRaw(key)
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStore) Set(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.SetRaw(key, data)
}

func (s *MemoryStore) GetRaw(key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) SetRaw(key string, data json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.data[key] = stored
	return nil
}

func (s *MemoryStore) SetMany(values map[string]json.RawMessage) error {
	for key, data := range values {
		if err := s.SetRaw(key, data); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
