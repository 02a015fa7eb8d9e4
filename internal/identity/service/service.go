// Package service implements the identity lifecycle coordinator: the single
// writer that keeps the off-chain record store and the on-chain registry
// consistent under partial failure.
//
// Ordering rule: in verify and revoke the off-chain write always precedes the
// on-chain write, so user-facing state is never blocked by chain latency. The
// cost is temporary divergence, tracked in ChainSyncState and healed by
// Reconcile. CreateIdentity is the one exception: it registers on-chain
// before creating the record, because a record with no chain trace would be
// indistinguishable from a legitimate unverified identity.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"campusid/internal/audit"
	"campusid/internal/chain"
	"campusid/internal/identity"
	"campusid/internal/identity/lock"
	"campusid/internal/identity/metrics"
	"campusid/internal/identity/store"
	"campusid/internal/metadata"
	dErrors "campusid/pkg/domain-errors"
	"campusid/pkg/platform/sentinel"
)

// Service coordinates identity lifecycle operations across the record store,
// the chain registry and the metadata store.
type Service struct {
	store    store.Store
	registry chain.Registry
	meta     metadata.Store
	locker   lock.Locker
	recorder *audit.Recorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

func New(
	st store.Store,
	registry chain.Registry,
	meta metadata.Store,
	locker lock.Locker,
	recorder *audit.Recorder,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		store:    st,
		registry: registry,
		meta:     meta,
		locker:   locker,
		recorder: recorder,
		logger:   logger,
		metrics:  m,
		tracer:   otel.Tracer("campusid/identity"),
	}
}

// CreateInput carries the caller-supplied fields for CreateIdentity. DID is
// optional; when empty one is minted under the did:campus method.
type CreateInput struct {
	DID         string
	OwnerWallet string
	Profile     identity.Profile
}

// CreateIdentity uploads the profile, registers the DID on-chain, then
// creates the record. Any failure before the record write aborts the whole
// operation: no orphan off-chain records.
func (s *Service) CreateIdentity(ctx context.Context, input CreateInput) (*identity.Record, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "identity.CreateIdentity")
	defer span.End()

	did := input.DID
	if did == "" {
		did = "did:campus:" + uuid.NewString()
	}
	if err := identity.ValidateDID(did); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeBadRequest, "invalid DID", err)
	}
	if err := identity.ValidateWallet(input.OwnerWallet); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeBadRequest, "invalid wallet address", err)
	}
	if input.Profile.Name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "profile name is required")
	}
	span.SetAttributes(attribute.String("did", did))

	release, err := s.locker.Acquire(ctx, did)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "acquire identity lock", err)
	}
	defer release()

	if _, err := s.store.GetByWallet(ctx, input.OwnerWallet); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "wallet already owns an identity")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "lookup wallet", err)
	}

	metadataHash, err := s.meta.PutJSON(ctx, input.Profile)
	if err != nil {
		s.fail(span, start, "create")
		return nil, dErrors.Wrap(dErrors.CodeUpstream, "identity creation failed: metadata upload", err)
	}

	txResult, err := s.registry.Register(ctx, did, metadataHash, input.OwnerWallet)
	if err != nil {
		s.fail(span, start, "create")
		return nil, dErrors.Wrap(dErrors.CodeUpstream, "identity creation failed: chain registration", err)
	}

	record := &identity.Record{
		DID:            did,
		OwnerWallet:    input.OwnerWallet,
		Status:         identity.StatusPending,
		MetadataHash:   metadataHash,
		ChainTxHash:    txResult.TxHash,
		ChainSyncState: identity.SyncStateSynced,
	}
	if err := s.store.Create(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// The chain registration has landed but the record is taken:
			// surfaced as conflict so the caller does not retry blindly.
			return nil, dErrors.New(dErrors.CodeConflict, "identity already exists")
		}
		s.fail(span, start, "create")
		return nil, dErrors.Wrap(dErrors.CodeInternal, "persist identity record", err)
	}

	s.recorder.Record(ctx, audit.Event{
		DID:     did,
		Action:  audit.ActionIdentityCreated,
		Outcome: audit.OutcomeOK,
		Detail:  map[string]string{"tx_hash": txResult.TxHash, "metadata_hash": metadataHash},
	})
	s.metrics.RecordOperation("create", metrics.OutcomeOK, time.Since(start).Seconds())
	return record, nil
}

// Verify moves a pending identity to verified or rejected. The off-chain
// write lands first; a failed chain leg degrades to a partial success with
// ChainSyncState = chain_write_failed rather than failing the operation.
func (s *Service) Verify(ctx context.Context, did string, decision identity.Status) (*identity.Record, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "identity.Verify",
		trace.WithAttributes(attribute.String("did", did), attribute.String("decision", string(decision))))
	defer span.End()

	if decision != identity.StatusVerified && decision != identity.StatusRejected {
		return nil, dErrors.New(dErrors.CodeBadRequest, "decision must be verified or rejected")
	}

	release, err := s.locker.Acquire(ctx, did)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "acquire identity lock", err)
	}
	defer release()

	record, err := s.loadRecord(ctx, did)
	if err != nil {
		return nil, err
	}
	if !identity.CanTransition(record.Status, decision) {
		return nil, dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("cannot move %s identity to %s", record.Status, decision))
	}

	// Off-chain first: the record store is authoritative for user-facing
	// status; the chain leg follows.
	record, err = s.update(ctx, record, identity.Patch{
		Status:         &decision,
		ChainSyncState: syncPtr(identity.SyncStatePendingChainWrite),
	})
	if err != nil {
		return nil, err
	}

	if decision == identity.StatusRejected {
		// Rejection has no on-chain representation.
		record, err = s.update(ctx, record, identity.Patch{
			ChainSyncState: syncPtr(identity.SyncStateSynced),
		})
		if err != nil {
			return nil, err
		}
		s.recorder.Record(ctx, audit.Event{
			DID: did, Action: audit.ActionIdentityRejected, Outcome: audit.OutcomeOK,
		})
		s.metrics.RecordOperation("verify", metrics.OutcomeOK, time.Since(start).Seconds())
		return record, nil
	}

	txResult, chainErr := s.pushVerified(ctx, record)
	return s.settleChainLeg(ctx, span, start, "verify", audit.ActionIdentityVerified, record, txResult, chainErr)
}

// Revoke terminally revokes an identity: off-chain first, then best-effort
// chain status update. Revoked is absorbing.
func (s *Service) Revoke(ctx context.Context, did string) (*identity.Record, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "identity.Revoke",
		trace.WithAttributes(attribute.String("did", did)))
	defer span.End()

	release, err := s.locker.Acquire(ctx, did)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "acquire identity lock", err)
	}
	defer release()

	record, err := s.loadRecord(ctx, did)
	if err != nil {
		return nil, err
	}
	if !identity.CanTransition(record.Status, identity.StatusRevoked) {
		return nil, dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("cannot revoke %s identity", record.Status))
	}

	record, err = s.update(ctx, record, identity.Patch{
		Status:         statusPtr(identity.StatusRevoked),
		ChainSyncState: syncPtr(identity.SyncStatePendingChainWrite),
	})
	if err != nil {
		return nil, err
	}

	txResult, chainErr := s.pushRevoked(ctx, record)
	return s.settleChainLeg(ctx, span, start, "revoke", audit.ActionIdentityRevoked, record, txResult, chainErr)
}

// StatusProjection is the read-only view combining the record with a
// best-effort chain check.
type StatusProjection struct {
	Record       *identity.Record
	ChainEntry   *chain.Entry
	ChainChecked bool
}

// Status returns the record plus the current chain entry when the node is
// reachable. Chain errors degrade the projection, never fail it.
func (s *Service) Status(ctx context.Context, did string) (*StatusProjection, error) {
	record, err := s.loadRecord(ctx, did)
	if err != nil {
		return nil, err
	}

	projection := &StatusProjection{Record: record}
	entry, err := s.registry.GetEntry(ctx, did)
	switch {
	case err == nil:
		projection.ChainEntry = entry
		projection.ChainChecked = true
	case errors.Is(err, sentinel.ErrNotFound):
		projection.ChainChecked = true
	default:
		s.logger.WarnContext(ctx, "chain check unavailable for status read",
			"did", did, "error", err)
	}
	return projection, nil
}

// List pages identity records filtered by status, newest first.
func (s *Service) List(ctx context.Context, status identity.Status, page, pageSize int) ([]*identity.Record, int, error) {
	if status != "" && !identity.ValidStatus(status) {
		return nil, 0, dErrors.New(dErrors.CodeBadRequest, "unknown status filter")
	}
	records, total, err := s.store.List(ctx, store.Filter{Status: status}, page, pageSize)
	if err != nil {
		return nil, 0, dErrors.Wrap(dErrors.CodeInternal, "list identities", err)
	}
	return records, total, nil
}

// pushVerified performs the chain leg of a verification: lazy registration
// for identities that never reached the chain, status update otherwise.
func (s *Service) pushVerified(ctx context.Context, record *identity.Record) (*chain.TxResult, error) {
	exists, err := s.registry.Exists(ctx, record.DID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return s.registry.Register(ctx, record.DID, record.MetadataHash, record.OwnerWallet)
	}
	return s.registry.SetStatus(ctx, record.DID, chain.CodeActive)
}

// pushRevoked performs the chain leg of a revocation. An identity that never
// reached the chain has nothing to revoke there.
func (s *Service) pushRevoked(ctx context.Context, record *identity.Record) (*chain.TxResult, error) {
	exists, err := s.registry.Exists(ctx, record.DID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return s.registry.SetStatus(ctx, record.DID, chain.CodeRevoked)
}

// settleChainLeg writes the outcome of a chain write back to the record:
// synced with the new tx hash on success, chain_write_failed on failure. The
// failure path is a partial success, not an error; the off-chain transition
// stands and Reconcile heals the divergence later.
func (s *Service) settleChainLeg(
	ctx context.Context,
	span trace.Span,
	start time.Time,
	operation string,
	action audit.Action,
	record *identity.Record,
	txResult *chain.TxResult,
	chainErr error,
) (*identity.Record, error) {
	if chainErr != nil {
		s.logger.WarnContext(ctx, "chain write degraded",
			"did", record.DID,
			"operation", operation,
			"error", chainErr,
		)
		span.RecordError(chainErr)
		s.metrics.IncChainWriteFailed()

		// Pessimistic: a timed-out transaction may still land. Reconcile
		// checks true chain state before re-issuing anything.
		record, err := s.update(ctx, record, identity.Patch{
			ChainSyncState: syncPtr(identity.SyncStateChainWriteFailed),
		})
		if err != nil {
			return nil, err
		}
		s.recorder.Record(ctx, audit.Event{
			DID: record.DID, Action: action, Outcome: audit.OutcomePartial,
			Detail: map[string]string{"chain_error": chainErr.Error()},
		})
		s.metrics.RecordOperation(operation, metrics.OutcomePartial, time.Since(start).Seconds())
		return record, nil
	}

	patch := identity.Patch{ChainSyncState: syncPtr(identity.SyncStateSynced)}
	detail := map[string]string{}
	if txResult != nil {
		patch.ChainTxHash = stringPtr(txResult.TxHash)
		detail["tx_hash"] = txResult.TxHash
	}
	record, err := s.update(ctx, record, patch)
	if err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, audit.Event{
		DID: record.DID, Action: action, Outcome: audit.OutcomeOK, Detail: detail,
	})
	s.metrics.RecordOperation(operation, metrics.OutcomeOK, time.Since(start).Seconds())
	return record, nil
}

func (s *Service) loadRecord(ctx context.Context, did string) (*identity.Record, error) {
	if err := identity.ValidateDID(did); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeBadRequest, "invalid DID", err)
	}
	record, err := s.store.Get(ctx, did)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load identity record", err)
	}
	return record, nil
}

func (s *Service) update(ctx context.Context, record *identity.Record, patch identity.Patch) (*identity.Record, error) {
	updated, err := s.store.Update(ctx, record.DID, record.Version, patch)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "identity was modified concurrently")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "update identity record", err)
	}
	return updated, nil
}

func (s *Service) fail(span trace.Span, start time.Time, operation string) {
	span.SetStatus(codes.Error, "operation aborted")
	s.metrics.RecordOperation(operation, metrics.OutcomeError, time.Since(start).Seconds())
}

func statusPtr(s identity.Status) *identity.Status      { return &s }
func syncPtr(s identity.SyncState) *identity.SyncState  { return &s }
func stringPtr(s string) *string                        { return &s }
