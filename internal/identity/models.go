// Package identity defines the identity record model shared by the store,
// the lifecycle coordinator and the HTTP layer. The record store is the
// source of truth for workflow state; the chain registry is the audit/trust
// layer and may lag behind (tracked by ChainSyncState).
package identity

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Status is the off-chain workflow status of an identity.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusActive   Status = "active"
	StatusRejected Status = "rejected"
	StatusRevoked  Status = "revoked"
)

// ValidStatus reports whether s is a known status value.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusVerified, StatusActive, StatusRejected, StatusRevoked:
		return true
	}
	return false
}

// SyncState tracks reconciliation between the record store and the chain.
type SyncState string

const (
	SyncStateSynced            SyncState = "synced"
	SyncStatePendingChainWrite SyncState = "pending_chain_write"
	SyncStateChainWriteFailed  SyncState = "chain_write_failed"
)

// Profile holds the student-facing metadata pinned to the content store.
// The record store keeps only the content hash, never the profile itself.
type Profile struct {
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	StudentNumber string `json:"studentNumber,omitempty"`
	Program       string `json:"program,omitempty"`
}

// Record is the authoritative off-chain identity record.
//
// ChainTxHash is empty until an on-chain write has succeeded at least once.
// Version increments on every update and backs compare-and-swap writes.
type Record struct {
	DID            string    `json:"did"`
	OwnerWallet    string    `json:"ownerWallet"`
	Status         Status    `json:"status"`
	MetadataHash   string    `json:"metadataHash"`
	ChainTxHash    string    `json:"chainTxHash,omitempty"`
	ChainSyncState SyncState `json:"chainSyncState"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Patch is a partial update applied by Store.Update. Nil fields are left
// untouched; UpdatedAt is always stamped by the store.
type Patch struct {
	Status         *Status
	ChainSyncState *SyncState
	ChainTxHash    *string
	MetadataHash   *string
}

// CanTransition reports whether the workflow permits moving from -> to.
// Revoked is absorbing; rejected identities may be re-reviewed.
func CanTransition(from, to Status) bool {
	if from == StatusRevoked {
		return false
	}
	switch to {
	case StatusVerified, StatusRejected:
		return from == StatusPending || from == StatusRejected
	case StatusRevoked:
		return from == StatusVerified || from == StatusActive
	case StatusActive:
		return from == StatusVerified
	}
	return false
}

var didPattern = regexp.MustCompile(`^did:[a-z0-9]+:[A-Za-z0-9._%-]+$`)

// ValidateDID checks the did:<method>:<identifier> shape.
func ValidateDID(did string) error {
	if !didPattern.MatchString(did) {
		return fmt.Errorf("malformed DID %q", did)
	}
	return nil
}

// ValidateWallet checks a 0x-prefixed 20-byte hex address.
func ValidateWallet(wallet string) error {
	if len(wallet) != 42 || !strings.HasPrefix(wallet, "0x") {
		return fmt.Errorf("malformed wallet address %q", wallet)
	}
	for _, c := range wallet[2:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return fmt.Errorf("malformed wallet address %q", wallet)
		}
	}
	return nil
}
