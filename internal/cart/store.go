package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// SnapshotStore is the key-value persistence boundary used to survive reloads.
// Get returns (nil, nil) when the key is absent.
type SnapshotStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// SnapshotKey returns the store key of an owner's cart.
func SnapshotKey(owner string) string {
	return "cart:" + owner
}

// Marshal encodes a cart snapshot.
func Marshal(c *Cart) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart snapshot: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a cart snapshot. Totals are re-derived from the lines so a
// stale or hand-edited snapshot cannot carry drifted aggregates.
func Unmarshal(data []byte) (*Cart, error) {
	c := New()
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to decode cart snapshot: %w", err)
	}
	if c.Items == nil {
		c.Items = []LineItem{}
	}
	c.sum()
	return c, nil
}

// MemoryStore is an in-process SnapshotStore.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-process snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
