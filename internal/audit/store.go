package audit

import (
	"context"
	"sort"
	"sync"
)

// Store is the append-only event sink. No deletes: revoked identities keep
// their full trail for audit.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByDID(ctx context.Context, did string) ([]Event, error)
}

// MemoryStore keeps events in memory for tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) ListByDID(ctx context.Context, did string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []Event
	for _, event := range s.events {
		if event.DID == did {
			matched = append(matched, event)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.Before(matched[j].Timestamp) })
	return matched, nil
}
