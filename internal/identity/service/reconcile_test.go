package service

import (
	"fmt"

	"campusid/internal/chain"
	"campusid/internal/identity"
	dErrors "campusid/pkg/domain-errors"
)

// degraded creates a verified identity whose chain leg failed, leaving the
// record in chain_write_failed.
func (s *CoordinatorSuite) degraded() *identity.Record {
	s.create()
	s.registry.failSetStatus = &chain.WriteError{Op: "setStatus", Reason: "timeout waiting for confirmation"}
	record, err := s.service.Verify(s.ctx, testDID, identity.StatusVerified)
	s.Require().NoError(err)
	s.Require().Equal(identity.SyncStateChainWriteFailed, record.ChainSyncState)
	s.registry.failSetStatus = nil
	return record
}

func (s *CoordinatorSuite) TestReconcile() {
	s.Run("re-issues the missing chain write", func() {
		s.degraded()
		setStatusBefore := s.registry.setStatusCalls

		record, err := s.service.Reconcile(s.ctx, testDID)
		s.Require().NoError(err)
		s.Equal(setStatusBefore+1, s.registry.setStatusCalls)
		s.Equal(identity.SyncStateSynced, record.ChainSyncState)
		s.Equal(identity.StatusVerified, record.Status)

		entry, err := s.registry.GetEntry(s.ctx, testDID)
		s.Require().NoError(err)
		s.Equal(chain.CodeActive, entry.Status)
	})

	s.Run("second run is a no-op", func() {
		setStatusBefore := s.registry.setStatusCalls
		registerBefore := s.registry.registerCalls

		record, err := s.service.Reconcile(s.ctx, testDID)
		s.Require().NoError(err)
		s.Equal(identity.SyncStateSynced, record.ChainSyncState)
		s.Equal(setStatusBefore, s.registry.setStatusCalls)
		s.Equal(registerBefore, s.registry.registerCalls)
	})
}

func (s *CoordinatorSuite) TestReconcileDetectsSilentlyLandedWrite() {
	s.degraded()

	// The timed-out transaction actually landed: chain already shows the
	// wanted status. Reconcile must detect this instead of re-sending.
	s.registry.mu.Lock()
	s.registry.entries[testDID].Status = chain.CodeActive
	s.registry.mu.Unlock()
	setStatusBefore := s.registry.setStatusCalls

	record, err := s.service.Reconcile(s.ctx, testDID)
	s.Require().NoError(err)
	s.Equal(identity.SyncStateSynced, record.ChainSyncState)
	s.Equal(setStatusBefore, s.registry.setStatusCalls)
}

func (s *CoordinatorSuite) TestReconcileRegistersLostIdentity() {
	s.degraded()
	s.registry.mu.Lock()
	delete(s.registry.entries, testDID)
	s.registry.mu.Unlock()
	registerBefore := s.registry.registerCalls

	record, err := s.service.Reconcile(s.ctx, testDID)
	s.Require().NoError(err)
	s.Equal(identity.SyncStateSynced, record.ChainSyncState)
	s.Equal(registerBefore+1, s.registry.registerCalls)
}

func (s *CoordinatorSuite) TestReconcileRevokedNeverRegistered() {
	s.verified()
	s.registry.failSetStatus = &chain.WriteError{Op: "setStatus", Reason: "timeout waiting for confirmation"}
	_, err := s.service.Revoke(s.ctx, testDID)
	s.Require().NoError(err)
	s.registry.failSetStatus = nil

	// The identity vanished from chain entirely. Revoking something that is
	// not there is trivially done; no write should be issued.
	s.registry.mu.Lock()
	delete(s.registry.entries, testDID)
	s.registry.mu.Unlock()
	registerBefore := s.registry.registerCalls
	setStatusBefore := s.registry.setStatusCalls

	record, err := s.service.Reconcile(s.ctx, testDID)
	s.Require().NoError(err)
	s.Equal(identity.SyncStateSynced, record.ChainSyncState)
	s.Equal(identity.StatusRevoked, record.Status)
	s.Equal(registerBefore, s.registry.registerCalls)
	s.Equal(setStatusBefore, s.registry.setStatusCalls)
}

func (s *CoordinatorSuite) TestReconcileSyncedRecordIsNoOp() {
	s.create()
	setStatusBefore := s.registry.setStatusCalls

	record, err := s.service.Reconcile(s.ctx, testDID)
	s.Require().NoError(err)
	s.Equal(identity.SyncStateSynced, record.ChainSyncState)
	s.Equal(setStatusBefore, s.registry.setStatusCalls)
}

func (s *CoordinatorSuite) TestReconcileChainStillDown() {
	s.degraded()
	s.registry.failSetStatus = &chain.WriteError{Op: "setStatus", Reason: "connection refused"}

	_, err := s.service.Reconcile(s.ctx, testDID)
	s.Require().Error(err)
	s.Equal(dErrors.CodeUpstream, dErrors.CodeOf(err))

	// State must survive the failed attempt for the next run.
	stored, storeErr := s.store.Get(s.ctx, testDID)
	s.Require().NoError(storeErr)
	s.Equal(identity.SyncStateChainWriteFailed, stored.ChainSyncState)
}

func (s *CoordinatorSuite) TestReconcileSweep() {
	for i := 0; i < 3; i++ {
		did := fmt.Sprintf("did:campus:sweep-%d", i)
		_, err := s.service.CreateIdentity(s.ctx, CreateInput{
			DID:         did,
			OwnerWallet: fmt.Sprintf("0x%040d", i),
			Profile:     identity.Profile{Name: fmt.Sprintf("Student %d", i)},
		})
		s.Require().NoError(err)
	}
	s.registry.failSetStatus = &chain.WriteError{Op: "setStatus", Reason: "timeout waiting for confirmation"}
	for i := 0; i < 3; i++ {
		_, err := s.service.Verify(s.ctx, fmt.Sprintf("did:campus:sweep-%d", i), identity.StatusVerified)
		s.Require().NoError(err)
	}
	s.registry.failSetStatus = nil

	result, err := s.service.ReconcileSweep(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal(3, result.Scanned)
	s.Equal(3, result.Healed)
	s.Equal(0, result.Failed)

	for i := 0; i < 3; i++ {
		record, err := s.store.Get(s.ctx, fmt.Sprintf("did:campus:sweep-%d", i))
		s.Require().NoError(err)
		s.Equal(identity.SyncStateSynced, record.ChainSyncState)
	}

	s.Run("sweep with nothing degraded scans zero", func() {
		result, err := s.service.ReconcileSweep(s.ctx, 10)
		s.Require().NoError(err)
		s.Equal(0, result.Scanned)
	})
}

func (s *CoordinatorSuite) TestReconcileSweepCountsFailures() {
	s.degraded()
	s.registry.failSetStatus = &chain.WriteError{Op: "setStatus", Reason: "connection refused"}

	result, err := s.service.ReconcileSweep(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal(1, result.Scanned)
	s.Equal(0, result.Healed)
	s.Equal(1, result.Failed)
}
