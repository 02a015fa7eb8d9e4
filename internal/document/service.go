package document

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"campusid/internal/audit"
	"campusid/internal/identity"
	"campusid/internal/metadata"
	dErrors "campusid/pkg/domain-errors"
	"campusid/pkg/platform/sentinel"
	"campusid/pkg/requestcontext"
)

// maxDocumentBytes bounds decoded upload size (5 MiB).
const maxDocumentBytes = 5 << 20

// IdentityReader is the slice of the identity store the document service
// needs: issuance requires a live identity.
type IdentityReader interface {
	Get(ctx context.Context, did string) (*identity.Record, error)
}

// Service issues and revokes documents for verified identities.
type Service struct {
	store      Store
	meta       metadata.Store
	identities IdentityReader
	recorder   *audit.Recorder
	logger     *slog.Logger
}

func NewService(store Store, meta metadata.Store, identities IdentityReader, recorder *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		meta:       meta,
		identities: identities,
		recorder:   recorder,
		logger:     logger,
	}
}

// Issue pins the document content and records the issuance. The identity
// must exist and not be revoked.
func (s *Service) Issue(ctx context.Context, did, name, contentType, contentBase64 string) (*Document, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "document name is required")
	}
	data, err := base64.StdEncoding.DecodeString(contentBase64)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeBadRequest, "content must be base64 encoded", err)
	}
	if len(data) == 0 || len(data) > maxDocumentBytes {
		return nil, dErrors.New(dErrors.CodeBadRequest, "document content empty or too large")
	}

	record, err := s.identities.Get(ctx, did)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load identity", err)
	}
	if record.Status == identity.StatusRevoked {
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "cannot issue documents for a revoked identity")
	}

	contentHash, err := s.meta.PutBytes(ctx, data, name)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUpstream, "document upload failed", err)
	}

	doc := &Document{
		ID:          uuid.NewString(),
		DID:         did,
		Name:        name,
		ContentType: contentType,
		ContentHash: contentHash,
		IssuedAt:    requestcontext.Now(ctx),
	}
	if err := s.store.Save(ctx, doc); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "persist document record", err)
	}

	s.recorder.Record(ctx, audit.Event{
		DID:     did,
		Action:  audit.ActionDocumentIssued,
		Outcome: audit.OutcomeOK,
		Detail:  map[string]string{"document_id": doc.ID, "content_hash": contentHash},
	})
	return doc, nil
}

// Get returns one document record.
func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load document", err)
	}
	return doc, nil
}

// ListByDID returns all documents issued to one identity, newest first.
func (s *Service) ListByDID(ctx context.Context, did string) ([]*Document, error) {
	docs, err := s.store.ListByDID(ctx, did)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list documents", err)
	}
	return docs, nil
}

// Revoke soft-revokes a document. Idempotent: revoking twice is a no-op.
func (s *Service) Revoke(ctx context.Context, id string) (*Document, error) {
	doc, err := s.store.MarkRevoked(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "revoke document", err)
	}
	s.recorder.Record(ctx, audit.Event{
		DID:     doc.DID,
		Action:  audit.ActionDocumentRevoked,
		Outcome: audit.OutcomeOK,
		Detail:  map[string]string{"document_id": doc.ID},
	})
	return doc, nil
}
