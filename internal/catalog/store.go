package catalog

import (
	"context"
	"sync"

	"mediahub.dev/portal/internal/content"
)

// Store persists page-1 results per cache key. Implementations must be safe for
// concurrent use. A stored empty slice is a valid entry.
type Store interface {
	Get(ctx context.Context, key string) ([]content.Item, bool, error)
	Set(ctx context.Context, key string, items []content.Item) error
}

// MemoryStore keeps entries for the lifetime of the process. Entries never expire.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]content.Item
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string][]content.Item{}}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]content.Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return content.CloneItems(items), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, items []content.Item) error {
	if items == nil {
		items = []content.Item{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = content.CloneItems(items)
	return nil
}

// Len returns the number of cached keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
