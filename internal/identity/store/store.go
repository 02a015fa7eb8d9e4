// Package store persists identity records. Implementations return sentinel
// errors; the service layer translates them into domain errors.
package store

import (
	"context"

	"campusid/internal/identity"
)

// MaxPageSize bounds List responses.
const MaxPageSize = 100

// Filter narrows List results. Zero value matches everything.
type Filter struct {
	Status identity.Status
}

// Store is the off-chain record store contract.
//
// Update is a compare-and-swap: the caller passes the version it read and the
// write fails with sentinel.ErrConflict when another writer got there first.
type Store interface {
	Get(ctx context.Context, did string) (*identity.Record, error)
	GetByWallet(ctx context.Context, wallet string) (*identity.Record, error)
	Create(ctx context.Context, record *identity.Record) error
	Update(ctx context.Context, did string, version int64, patch identity.Patch) (*identity.Record, error)
	List(ctx context.Context, filter Filter, page, pageSize int) ([]*identity.Record, int, error)
	ListBySyncState(ctx context.Context, state identity.SyncState, limit int) ([]*identity.Record, error)
}

// ClampPageSize normalizes paging arguments shared by implementations.
func ClampPageSize(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
