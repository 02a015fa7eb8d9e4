// Package audit records an append-only trail of lifecycle events, keyed by
// DID. Events are persisted locally and, when Kafka is configured, streamed
// to the audit topic by a background worker.
package audit

import "time"

// Action names an auditable lifecycle event.
type Action string

const (
	ActionIdentityCreated    Action = "identity_created"
	ActionIdentityVerified   Action = "identity_verified"
	ActionIdentityRejected   Action = "identity_rejected"
	ActionIdentityRevoked    Action = "identity_revoked"
	ActionIdentityReconciled Action = "identity_reconciled"
	ActionDocumentIssued     Action = "document_issued"
	ActionDocumentRevoked    Action = "document_revoked"
)

// Outcome values for audit events.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Event is one audit trail entry. Detail carries operation-specific context
// (tx hashes, sync states) without growing the schema per action.
type Event struct {
	ID        string            `json:"id"`
	DID       string            `json:"did"`
	Action    Action            `json:"action"`
	Outcome   string            `json:"outcome"`
	Detail    map[string]string `json:"detail,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
