package document

import (
	"context"
	"sort"
	"sync"

	"campusid/pkg/platform/sentinel"
	"campusid/pkg/requestcontext"
)

// Store persists document records keyed by document ID.
type Store interface {
	Save(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id string) (*Document, error)
	ListByDID(ctx context.Context, did string) ([]*Document, error)
	MarkRevoked(ctx context.Context, id string) (*Document, error)
}

// MemoryStore is the in-memory Store for tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*Document)}
}

func (s *MemoryStore) Save(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *doc
	s.docs[doc.ID] = &clone
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *doc
	return &clone, nil
}

func (s *MemoryStore) ListByDID(ctx context.Context, did string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*Document
	for _, doc := range s.docs {
		if doc.DID == did {
			clone := *doc
			matched = append(matched, &clone)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].IssuedAt.After(matched[j].IssuedAt) })
	return matched, nil
}

func (s *MemoryStore) MarkRevoked(ctx context.Context, id string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	doc.Revoked = true
	doc.RevokedAt = requestcontext.Now(ctx)
	clone := *doc
	return &clone, nil
}
