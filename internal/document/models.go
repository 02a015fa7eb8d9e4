// Package document manages issued credential documents (transcripts, ID
// cards). Document bytes live in the content-addressed store; only the
// pointer and issuance metadata are persisted here.
package document

import "time"

// Document is one issued document record. Revocation is a soft flag; rows
// are never deleted so the issuance history stays auditable.
type Document struct {
	ID          string    `json:"documentId"`
	DID         string    `json:"did"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	ContentHash string    `json:"contentHash"`
	IssuedAt    time.Time `json:"issuedAt"`
	Revoked     bool      `json:"revoked"`
	RevokedAt   time.Time `json:"revokedAt,omitzero"`
}
