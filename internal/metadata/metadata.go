// Package metadata stores identity profile blobs by content address. Blobs
// are immutable: a logical update is a new upload plus a pointer swap on the
// identity record, never an in-place mutation. Callers must not assume hash
// stability across uploads of logically-equal payloads.
package metadata

import "context"

// Store is the content-addressed store contract.
type Store interface {
	PutJSON(ctx context.Context, v any) (string, error)
	PutBytes(ctx context.Context, data []byte, name string) (string, error)
	GetJSON(ctx context.Context, contentHash string, out any) error
}
