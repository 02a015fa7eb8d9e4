package chain

import (
	"context"
	"time"
)

// Entry is the on-chain view of an identity: source of truth for existence,
// read-mostly for everything else.
type Entry struct {
	DID       string
	IPFSHash  string
	Owner     string
	Status    StatusCode
	CreatedAt time.Time
}

// TxResult reports a confirmed mutating call.
type TxResult struct {
	TxHash      string
	BlockNumber uint64
}

// Registry is the contract the lifecycle coordinator depends on. The
// concrete implementation is Client; tests use generated mocks.
//
// Mutating calls wait for one confirmation (not finality) and fail with a
// *WriteError on revert or timeout. Exists returns (false, nil) for unknown
// DIDs and only errors when the node is unreachable.
type Registry interface {
	Exists(ctx context.Context, did string) (bool, error)
	Register(ctx context.Context, did, metadataHash, ownerWallet string) (*TxResult, error)
	SetStatus(ctx context.Context, did string, code StatusCode) (*TxResult, error)
	GetEntry(ctx context.Context, did string) (*Entry, error)
}
