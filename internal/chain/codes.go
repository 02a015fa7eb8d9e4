package chain

import "campusid/internal/identity"

// StatusCode is the registry contract's numeric status. The contract knows
// nothing about the off-chain workflow: pending and rejected identities have
// no on-chain representation at all.
type StatusCode uint8

const (
	CodeActive    StatusCode = 1
	CodeSuspended StatusCode = 2
	CodeRevoked   StatusCode = 3
)

// CodeForStatus maps an off-chain status to its on-chain code. The second
// return is false for statuses that never reach the chain.
func CodeForStatus(status identity.Status) (StatusCode, bool) {
	switch status {
	case identity.StatusVerified, identity.StatusActive:
		return CodeActive, true
	case identity.StatusRevoked:
		return CodeRevoked, true
	}
	return 0, false
}

// StatusForCode maps an on-chain code back to the off-chain enum.
func StatusForCode(code StatusCode) (identity.Status, bool) {
	switch code {
	case CodeActive:
		return identity.StatusActive, true
	case CodeRevoked:
		return identity.StatusRevoked, true
	case CodeSuspended:
		// Suspension exists on-chain only; surface it as verified-but-flagged
		// is a policy call we do not make here.
		return "", false
	}
	return "", false
}
