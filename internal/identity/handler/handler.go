// Package handler exposes the identity lifecycle over HTTP. Handlers stay
// thin: decode, delegate to the coordinator, translate the result into the
// shared envelope. Partial successes (degraded chain leg) are HTTP 200; the
// caller reads data.chainSyncState to decide whether to show a pending
// chain confirmation state.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"campusid/internal/audit"
	"campusid/internal/identity"
	"campusid/internal/identity/service"
	"campusid/internal/platform/metrics"
	"campusid/internal/platform/middleware"
	"campusid/internal/transport/http/shared"
	dErrors "campusid/pkg/domain-errors"
)

// Service defines the coordinator operations the handler needs.
type Service interface {
	CreateIdentity(ctx context.Context, input service.CreateInput) (*identity.Record, error)
	Verify(ctx context.Context, did string, decision identity.Status) (*identity.Record, error)
	Revoke(ctx context.Context, did string) (*identity.Record, error)
	Reconcile(ctx context.Context, did string) (*identity.Record, error)
	ReconcileSweep(ctx context.Context, limit int) (*service.SweepResult, error)
	Status(ctx context.Context, did string) (*service.StatusProjection, error)
	List(ctx context.Context, status identity.Status, page, pageSize int) ([]*identity.Record, int, error)
}

// AuditReader lists the audit trail for one DID.
type AuditReader interface {
	List(ctx context.Context, did string) ([]audit.Event, error)
}

// Handler handles identity endpoints.
type Handler struct {
	service      Service
	auditReader  AuditReader
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(
	svc Service,
	auditReader AuditReader,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
) *Handler {
	return &Handler{
		service:      svc,
		auditReader:  auditReader,
		logger:       logger,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register mounts the identity routes. Review and maintenance operations are
// admin-gated; creation and reads are open.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.Logger(h.logger))
		router.Use(middleware.Timeout(90 * time.Second))
		router.Use(middleware.ContentTypeJSON)
		router.Use(middleware.Latency(h.metrics))

		router.Post("/identities", h.handleCreate)
		router.Get("/identities", h.handleList)
		router.Get("/identities/{did}/status", h.handleStatus)

		router.Group(func(admin chi.Router) {
			admin.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
			admin.Use(middleware.RequireRole("admin"))
			admin.Put("/identities/{did}/verify", h.handleVerify)
			admin.Post("/identities/{did}/revoke", h.handleRevoke)
			admin.Post("/identities/{did}/reconcile", h.handleReconcile)
			admin.Post("/identities/reconcile", h.handleReconcileSweep)
			admin.Get("/identities/{did}/audit", h.handleAuditTrail)
		})
	})
}

type createRequest struct {
	DID         string           `json:"did,omitempty"`
	OwnerWallet string           `json:"ownerWallet"`
	Profile     identity.Profile `json:"profile"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	record, err := h.service.CreateIdentity(r.Context(), service.CreateInput{
		DID:         req.DID,
		OwnerWallet: req.OwnerWallet,
		Profile:     req.Profile,
	})
	if err != nil {
		h.logFailure(r, "create identity", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, "identity created", record)
}

type verifyRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	record, err := h.service.Verify(r.Context(), chi.URLParam(r, "did"), identity.Status(req.Status))
	if err != nil {
		h.logFailure(r, "verify identity", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, verifyMessage(record), record)
}

func verifyMessage(record *identity.Record) string {
	if record.ChainSyncState == identity.SyncStateChainWriteFailed {
		return "identity updated; blockchain confirmation pending"
	}
	return "identity updated"
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Revoke(r.Context(), chi.URLParam(r, "did"))
	if err != nil {
		h.logFailure(r, "revoke identity", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, verifyMessage(record), record)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Reconcile(r.Context(), chi.URLParam(r, "did"))
	if err != nil {
		h.logFailure(r, "reconcile identity", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, "identity reconciled", record)
}

type sweepRequest struct {
	Limit int `json:"limit"`
}

func (h *Handler) handleReconcileSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	result, err := h.service.ReconcileSweep(r.Context(), req.Limit)
	if err != nil {
		h.logFailure(r, "reconcile sweep", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, "reconciliation sweep complete", result)
}

type statusResponse struct {
	Record       *identity.Record `json:"record"`
	ChainChecked bool             `json:"chainChecked"`
	Chain        *chainView       `json:"chain,omitempty"`
}

type chainView struct {
	Exists    bool   `json:"exists"`
	IPFSHash  string `json:"ipfsHash,omitempty"`
	Owner     string `json:"owner,omitempty"`
	Status    uint8  `json:"status,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	projection, err := h.service.Status(r.Context(), chi.URLParam(r, "did"))
	if err != nil {
		h.logFailure(r, "identity status", err)
		shared.WriteError(w, err)
		return
	}

	resp := statusResponse{Record: projection.Record, ChainChecked: projection.ChainChecked}
	if projection.ChainChecked {
		resp.Chain = &chainView{Exists: projection.ChainEntry != nil}
		if entry := projection.ChainEntry; entry != nil {
			resp.Chain.IPFSHash = entry.IPFSHash
			resp.Chain.Owner = entry.Owner
			resp.Chain.Status = uint8(entry.Status)
			resp.Chain.CreatedAt = entry.CreatedAt.Format(time.RFC3339)
		}
	}
	shared.WriteJSON(w, http.StatusOK, "identity status", resp)
}

type listResponse struct {
	Records []*identity.Record `json:"records"`
	Total   int                `json:"total"`
	Page    int                `json:"page"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("pageSize"))
	status := identity.Status(query.Get("status"))

	records, total, err := h.service.List(r.Context(), status, page, pageSize)
	if err != nil {
		h.logFailure(r, "list identities", err)
		shared.WriteError(w, err)
		return
	}
	if page < 1 {
		page = 1
	}
	if records == nil {
		records = []*identity.Record{}
	}
	shared.WriteJSON(w, http.StatusOK, "identities", listResponse{Records: records, Total: total, Page: page})
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	events, err := h.auditReader.List(r.Context(), chi.URLParam(r, "did"))
	if err != nil {
		h.logFailure(r, "audit trail", err)
		shared.WriteError(w, dErrors.Wrap(dErrors.CodeInternal, "failed to load audit trail", err))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	shared.WriteJSON(w, http.StatusOK, "audit trail", events)
}

func (h *Handler) logFailure(r *http.Request, operation string, err error) {
	logFn := h.logger.ErrorContext
	if code := dErrors.CodeOf(err); code == dErrors.CodeBadRequest || code == dErrors.CodeNotFound {
		logFn = h.logger.WarnContext
	}
	logFn(r.Context(), operation+" failed",
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err.Error(),
	)
}
