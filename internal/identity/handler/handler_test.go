package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"campusid/internal/audit"
	"campusid/internal/identity"
	"campusid/internal/identity/service"
	"campusid/internal/platform/middleware"
	dErrors "campusid/pkg/domain-errors"
)

// fakeService is a scriptable Service; each field overrides one operation.
type fakeService struct {
	createFn    func(ctx context.Context, input service.CreateInput) (*identity.Record, error)
	verifyFn    func(ctx context.Context, did string, decision identity.Status) (*identity.Record, error)
	revokeFn    func(ctx context.Context, did string) (*identity.Record, error)
	reconcileFn func(ctx context.Context, did string) (*identity.Record, error)
	sweepFn     func(ctx context.Context, limit int) (*service.SweepResult, error)
	statusFn    func(ctx context.Context, did string) (*service.StatusProjection, error)
	listFn      func(ctx context.Context, status identity.Status, page, pageSize int) ([]*identity.Record, int, error)
}

func (f *fakeService) CreateIdentity(ctx context.Context, input service.CreateInput) (*identity.Record, error) {
	return f.createFn(ctx, input)
}

func (f *fakeService) Verify(ctx context.Context, did string, decision identity.Status) (*identity.Record, error) {
	return f.verifyFn(ctx, did, decision)
}

func (f *fakeService) Revoke(ctx context.Context, did string) (*identity.Record, error) {
	return f.revokeFn(ctx, did)
}

func (f *fakeService) Reconcile(ctx context.Context, did string) (*identity.Record, error) {
	return f.reconcileFn(ctx, did)
}

func (f *fakeService) ReconcileSweep(ctx context.Context, limit int) (*service.SweepResult, error) {
	return f.sweepFn(ctx, limit)
}

func (f *fakeService) Status(ctx context.Context, did string) (*service.StatusProjection, error) {
	return f.statusFn(ctx, did)
}

func (f *fakeService) List(ctx context.Context, status identity.Status, page, pageSize int) ([]*identity.Record, int, error) {
	return f.listFn(ctx, status, page, pageSize)
}

type fakeAuditReader struct {
	events []audit.Event
	err    error
}

func (f *fakeAuditReader) List(ctx context.Context, did string) ([]audit.Event, error) {
	return f.events, f.err
}

// fakeValidator accepts the token "admin-token" as an admin and
// "student-token" as a non-admin.
type fakeValidator struct{}

func (fakeValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	switch token {
	case "admin-token":
		return &middleware.JWTClaims{Subject: "registrar", Role: "admin"}, nil
	case "student-token":
		return &middleware.JWTClaims{Subject: "student", Role: "student"}, nil
	}
	return nil, errors.New("invalid token")
}

type HandlerSuite struct {
	suite.Suite
	service *fakeService
	audits  *fakeAuditReader
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.service = &fakeService{}
	s.audits = &fakeAuditReader{}
	logger := slog.New(slog.DiscardHandler)
	h := New(s.service, s.audits, logger, nil, fakeValidator{})
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) request(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder) (bool, string, map[string]any) {
	var envelope struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &envelope))
	var data map[string]any
	if len(envelope.Data) > 0 {
		s.Require().NoError(json.Unmarshal(envelope.Data, &data))
	}
	return envelope.Success, envelope.Message, data
}

func sampleRecord(status identity.Status, sync identity.SyncState) *identity.Record {
	return &identity.Record{
		DID:            "did:campus:alice",
		OwnerWallet:    "0xab5801a7d398351b8be11c439e05c5b3259aec9b",
		Status:         status,
		MetadataHash:   "QmTest",
		ChainTxHash:    "0xtx0001",
		ChainSyncState: sync,
		Version:        2,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
}

var adminHeader = map[string]string{"Authorization": "Bearer admin-token"}

func (s *HandlerSuite) TestCreate() {
	s.Run("201 with envelope on success", func() {
		s.service.createFn = func(ctx context.Context, input service.CreateInput) (*identity.Record, error) {
			s.Equal("0xab5801a7d398351b8be11c439e05c5b3259aec9b", input.OwnerWallet)
			s.Equal("Alice", input.Profile.Name)
			return sampleRecord(identity.StatusPending, identity.SyncStateSynced), nil
		}

		rec := s.request(http.MethodPost, "/identities",
			`{"ownerWallet":"0xab5801a7d398351b8be11c439e05c5b3259aec9b","profile":{"name":"Alice"}}`, nil)

		s.Equal(http.StatusCreated, rec.Code)
		success, _, data := s.decode(rec)
		s.True(success)
		s.Equal("did:campus:alice", data["did"])
		s.Equal("synced", data["chainSyncState"])
	})

	s.Run("400 on malformed body", func() {
		rec := s.request(http.MethodPost, "/identities", `{not json`, nil)
		s.Equal(http.StatusBadRequest, rec.Code)
		success, _, _ := s.decode(rec)
		s.False(success)
	})

	s.Run("502 when upstream leg fails", func() {
		s.service.createFn = func(ctx context.Context, input service.CreateInput) (*identity.Record, error) {
			return nil, dErrors.New(dErrors.CodeUpstream, "identity creation failed: chain registration")
		}
		rec := s.request(http.MethodPost, "/identities",
			`{"ownerWallet":"0xab5801a7d398351b8be11c439e05c5b3259aec9b","profile":{"name":"Alice"}}`, nil)
		s.Equal(http.StatusBadGateway, rec.Code)
	})

	s.Run("409 on wallet conflict", func() {
		s.service.createFn = func(ctx context.Context, input service.CreateInput) (*identity.Record, error) {
			return nil, dErrors.New(dErrors.CodeConflict, "wallet already owns an identity")
		}
		rec := s.request(http.MethodPost, "/identities",
			`{"ownerWallet":"0xab5801a7d398351b8be11c439e05c5b3259aec9b","profile":{"name":"Alice"}}`, nil)
		s.Equal(http.StatusConflict, rec.Code)
	})
}

func (s *HandlerSuite) TestVerifyAuth() {
	s.service.verifyFn = func(ctx context.Context, did string, decision identity.Status) (*identity.Record, error) {
		return sampleRecord(identity.StatusVerified, identity.SyncStateSynced), nil
	}

	s.Run("no token is 401", func() {
		rec := s.request(http.MethodPut, "/identities/did:campus:alice/verify", `{"status":"verified"}`, nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("non-admin role is 403", func() {
		rec := s.request(http.MethodPut, "/identities/did:campus:alice/verify", `{"status":"verified"}`,
			map[string]string{"Authorization": "Bearer student-token"})
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("admin token passes", func() {
		rec := s.request(http.MethodPut, "/identities/did:campus:alice/verify", `{"status":"verified"}`, adminHeader)
		s.Equal(http.StatusOK, rec.Code)
	})
}

func (s *HandlerSuite) TestVerify() {
	s.Run("full success", func() {
		s.service.verifyFn = func(ctx context.Context, did string, decision identity.Status) (*identity.Record, error) {
			s.Equal("did:campus:alice", did)
			s.Equal(identity.StatusVerified, decision)
			return sampleRecord(identity.StatusVerified, identity.SyncStateSynced), nil
		}

		rec := s.request(http.MethodPut, "/identities/did:campus:alice/verify", `{"status":"verified"}`, adminHeader)
		s.Equal(http.StatusOK, rec.Code)
		success, message, data := s.decode(rec)
		s.True(success)
		s.Equal("identity updated", message)
		s.Equal("synced", data["chainSyncState"])
	})

	s.Run("partial success is still 200", func() {
		s.service.verifyFn = func(ctx context.Context, did string, decision identity.Status) (*identity.Record, error) {
			return sampleRecord(identity.StatusVerified, identity.SyncStateChainWriteFailed), nil
		}

		rec := s.request(http.MethodPut, "/identities/did:campus:alice/verify", `{"status":"verified"}`, adminHeader)
		s.Equal(http.StatusOK, rec.Code)
		success, message, data := s.decode(rec)
		s.True(success)
		s.Contains(message, "blockchain confirmation pending")
		s.Equal("chain_write_failed", data["chainSyncState"])
	})

	s.Run("invalid transition is 409", func() {
		s.service.verifyFn = func(ctx context.Context, did string, decision identity.Status) (*identity.Record, error) {
			return nil, dErrors.New(dErrors.CodeInvalidTransition, "cannot move revoked identity to verified")
		}
		rec := s.request(http.MethodPut, "/identities/did:campus:alice/verify", `{"status":"verified"}`, adminHeader)
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("unknown DID is 404", func() {
		s.service.verifyFn = func(ctx context.Context, did string, decision identity.Status) (*identity.Record, error) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		rec := s.request(http.MethodPut, "/identities/did:campus:ghost/verify", `{"status":"verified"}`, adminHeader)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestRevoke() {
	s.service.revokeFn = func(ctx context.Context, did string) (*identity.Record, error) {
		return sampleRecord(identity.StatusRevoked, identity.SyncStateSynced), nil
	}

	rec := s.request(http.MethodPost, "/identities/did:campus:alice/revoke", "", adminHeader)
	s.Equal(http.StatusOK, rec.Code)
	_, _, data := s.decode(rec)
	s.Equal("revoked", data["status"])
}

func (s *HandlerSuite) TestReconcile() {
	s.service.reconcileFn = func(ctx context.Context, did string) (*identity.Record, error) {
		return sampleRecord(identity.StatusVerified, identity.SyncStateSynced), nil
	}

	rec := s.request(http.MethodPost, "/identities/did:campus:alice/reconcile", "", adminHeader)
	s.Equal(http.StatusOK, rec.Code)
	success, _, data := s.decode(rec)
	s.True(success)
	s.Equal("synced", data["chainSyncState"])
}

func (s *HandlerSuite) TestReconcileSweep() {
	var gotLimit int
	s.service.sweepFn = func(ctx context.Context, limit int) (*service.SweepResult, error) {
		gotLimit = limit
		return &service.SweepResult{Scanned: 2, Healed: 1, Failed: 1}, nil
	}

	rec := s.request(http.MethodPost, "/identities/reconcile", `{"limit":25}`, adminHeader)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(25, gotLimit)
	_, _, data := s.decode(rec)
	s.Equal(float64(2), data["scanned"])
}

func (s *HandlerSuite) TestStatus() {
	s.Run("includes chain view when checked", func() {
		s.service.statusFn = func(ctx context.Context, did string) (*service.StatusProjection, error) {
			return &service.StatusProjection{
				Record:       sampleRecord(identity.StatusVerified, identity.SyncStateSynced),
				ChainChecked: true,
			}, nil
		}

		rec := s.request(http.MethodGet, "/identities/did:campus:alice/status", "", nil)
		s.Equal(http.StatusOK, rec.Code)
		_, _, data := s.decode(rec)
		s.Equal(true, data["chainChecked"])
	})

	s.Run("404 for unknown DID", func() {
		s.service.statusFn = func(ctx context.Context, did string) (*service.StatusProjection, error) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		rec := s.request(http.MethodGet, "/identities/did:campus:ghost/status", "", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestList() {
	s.service.listFn = func(ctx context.Context, status identity.Status, page, pageSize int) ([]*identity.Record, int, error) {
		s.Equal(identity.StatusPending, status)
		s.Equal(2, page)
		s.Equal(10, pageSize)
		return []*identity.Record{sampleRecord(identity.StatusPending, identity.SyncStateSynced)}, 11, nil
	}

	rec := s.request(http.MethodGet, "/identities?status=pending&page=2&pageSize=10", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	_, _, data := s.decode(rec)
	s.Equal(float64(11), data["total"])
	s.Equal(float64(2), data["page"])
}

func (s *HandlerSuite) TestAuditTrail() {
	s.audits.events = []audit.Event{
		{DID: "did:campus:alice", Action: audit.ActionIdentityCreated, Outcome: audit.OutcomeOK},
	}

	rec := s.request(http.MethodGet, "/identities/did:campus:alice/audit", "", adminHeader)
	s.Equal(http.StatusOK, rec.Code)

	var envelope struct {
		Success bool          `json:"success"`
		Data    []audit.Event `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &envelope))
	s.True(envelope.Success)
	s.Len(envelope.Data, 1)
}

func (s *HandlerSuite) TestUnsupportedContentType() {
	req := httptest.NewRequest(http.MethodPost, "/identities", strings.NewReader("<xml/>"))
	req.Header.Set("Content-Type", "text/xml")
	out := httptest.NewRecorder()
	s.router.ServeHTTP(out, req)
	s.Equal(http.StatusUnsupportedMediaType, out.Code)
}
