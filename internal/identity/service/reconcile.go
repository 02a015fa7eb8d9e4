package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"campusid/internal/audit"
	"campusid/internal/chain"
	"campusid/internal/identity"
	"campusid/internal/identity/metrics"
	dErrors "campusid/pkg/domain-errors"
	"campusid/pkg/platform/sentinel"
)

// reconcileConcurrency bounds parallel chain writes during a sweep; each one
// holds a signer nonce slot and blocks for a confirmation.
const reconcileConcurrency = 4

// Reconcile re-attempts the chain write a degraded record is missing. It is
// idempotent: before issuing anything it reads true chain state, so a write
// that silently landed on a prior timeout is detected instead of re-sent.
// Records that are not chain_write_failed are returned unchanged.
func (s *Service) Reconcile(ctx context.Context, did string) (*identity.Record, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "identity.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("did", did))

	release, err := s.locker.Acquire(ctx, did)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "acquire identity lock", err)
	}
	defer release()

	record, err := s.loadRecord(ctx, did)
	if err != nil {
		return nil, err
	}
	if record.ChainSyncState != identity.SyncStateChainWriteFailed {
		return record, nil
	}

	txResult, alreadyDone, chainErr := s.replayChainWrite(ctx, record)
	if chainErr != nil {
		s.metrics.RecordOperation("reconcile", metrics.OutcomeError, time.Since(start).Seconds())
		return nil, dErrors.Wrap(dErrors.CodeUpstream, "reconciliation chain write failed", chainErr)
	}

	patch := identity.Patch{ChainSyncState: syncPtr(identity.SyncStateSynced)}
	detail := map[string]string{}
	if txResult != nil {
		patch.ChainTxHash = stringPtr(txResult.TxHash)
		detail["tx_hash"] = txResult.TxHash
	}
	if alreadyDone {
		detail["already_on_chain"] = "true"
	}
	record, err = s.update(ctx, record, patch)
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Event{
		DID: did, Action: audit.ActionIdentityReconciled, Outcome: audit.OutcomeOK, Detail: detail,
	})
	s.metrics.IncReconcileHealed()
	s.metrics.RecordOperation("reconcile", metrics.OutcomeOK, time.Since(start).Seconds())
	return record, nil
}

// replayChainWrite infers the missing chain write from the record's current
// status and issues it only if chain state does not already reflect it.
// Returns alreadyDone=true when a prior attempt landed silently.
func (s *Service) replayChainWrite(ctx context.Context, record *identity.Record) (*chain.TxResult, bool, error) {
	wantCode, onChain := chain.CodeForStatus(record.Status)
	if !onChain {
		// Pending or rejected: nothing belongs on-chain, just clear the flag.
		return nil, true, nil
	}

	entry, err := s.registry.GetEntry(ctx, record.DID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		if record.Status == identity.StatusRevoked {
			// Never registered; there is nothing on-chain to revoke.
			return nil, true, nil
		}
		txResult, err := s.registry.Register(ctx, record.DID, record.MetadataHash, record.OwnerWallet)
		return txResult, false, err
	case err != nil:
		return nil, false, err
	}

	if entry.Status == wantCode {
		return nil, true, nil
	}
	txResult, err := s.registry.SetStatus(ctx, record.DID, wantCode)
	return txResult, false, err
}

// SweepResult summarizes one reconciliation sweep.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Healed  int `json:"healed"`
	Failed  int `json:"failed"`
}

// ReconcileSweep reconciles up to limit degraded records. It is the entry
// point a periodic trigger calls; scheduling it is out of scope here.
func (s *Service) ReconcileSweep(ctx context.Context, limit int) (*SweepResult, error) {
	records, err := s.store.ListBySyncState(ctx, identity.SyncStateChainWriteFailed, limit)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list degraded records", err)
	}

	result := &SweepResult{Scanned: len(records)}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(reconcileConcurrency)
	results := make([]bool, len(records))
	for i, record := range records {
		group.Go(func() error {
			if _, err := s.Reconcile(groupCtx, record.DID); err != nil {
				s.logger.WarnContext(groupCtx, "reconcile sweep item failed",
					"did", record.DID, "error", err)
				return nil // keep sweeping; per-record failures are not fatal
			}
			results[i] = true
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	for _, ok := range results {
		if ok {
			result.Healed++
		} else {
			result.Failed++
		}
	}
	return result, nil
}
