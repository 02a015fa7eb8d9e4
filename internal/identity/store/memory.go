package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"campusid/internal/identity"
	"campusid/pkg/platform/sentinel"
	"campusid/pkg/requestcontext"
)

// Memory is an in-memory Store for tests and local development. Writes are
// serialized by a single mutex; versioning semantics match the postgres
// implementation.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*identity.Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]*identity.Record)}
}

func (m *Memory) Get(ctx context.Context, did string) (*identity.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[did]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (m *Memory) GetByWallet(ctx context.Context, wallet string) (*identity.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, record := range m.records {
		if strings.EqualFold(record.OwnerWallet, wallet) {
			clone := *record
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (m *Memory) Create(ctx context.Context, record *identity.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[record.DID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range m.records {
		if strings.EqualFold(existing.OwnerWallet, record.OwnerWallet) {
			return sentinel.ErrConflict
		}
	}
	now := requestcontext.Now(ctx)
	clone := *record
	clone.Version = 1
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = clone.CreatedAt
	m.records[record.DID] = &clone
	*record = clone
	return nil
}

func (m *Memory) Update(ctx context.Context, did string, version int64, patch identity.Patch) (*identity.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[did]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if record.Version != version {
		return nil, sentinel.ErrConflict
	}
	if patch.Status != nil {
		record.Status = *patch.Status
	}
	if patch.ChainSyncState != nil {
		record.ChainSyncState = *patch.ChainSyncState
	}
	if patch.ChainTxHash != nil {
		record.ChainTxHash = *patch.ChainTxHash
	}
	if patch.MetadataHash != nil {
		record.MetadataHash = *patch.MetadataHash
	}
	record.Version++
	record.UpdatedAt = requestcontext.Now(ctx)
	clone := *record
	return &clone, nil
}

func (m *Memory) List(ctx context.Context, filter Filter, page, pageSize int) ([]*identity.Record, int, error) {
	page, pageSize = ClampPageSize(page, pageSize)

	m.mu.RLock()
	var matched []*identity.Record
	for _, record := range m.records {
		if filter.Status != "" && record.Status != filter.Status {
			continue
		}
		clone := *record
		matched = append(matched, &clone)
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].DID < matched[j].DID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *Memory) ListBySyncState(ctx context.Context, state identity.SyncState, limit int) ([]*identity.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*identity.Record
	for _, record := range m.records {
		if record.ChainSyncState != state {
			continue
		}
		clone := *record
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].UpdatedAt.Before(matched[j].UpdatedAt) })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}
