package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"campusid/internal/document"
	"campusid/internal/platform/metrics"
	"campusid/internal/platform/middleware"
	"campusid/internal/transport/http/shared"
	dErrors "campusid/pkg/domain-errors"
)

// Service defines the document operations the handler needs.
type Service interface {
	Issue(ctx context.Context, did, name, contentType, contentBase64 string) (*document.Document, error)
	Get(ctx context.Context, id string) (*document.Document, error)
	ListByDID(ctx context.Context, did string) ([]*document.Document, error)
	Revoke(ctx context.Context, id string) (*document.Document, error)
}

// Handler handles document endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func New(svc Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{service: svc, logger: logger, metrics: m, jwtValidator: jwtValidator}
}

// Register mounts the document routes. Issuance and revocation are
// admin-gated; reads are open.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.Logger(h.logger))
		router.Use(middleware.Timeout(60 * time.Second))
		router.Use(middleware.ContentTypeJSON)
		router.Use(middleware.Latency(h.metrics))

		router.Get("/identities/{did}/documents", h.handleList)
		router.Get("/documents/{id}", h.handleGet)

		router.Group(func(admin chi.Router) {
			admin.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
			admin.Use(middleware.RequireRole("admin"))
			admin.Post("/identities/{did}/documents", h.handleIssue)
			admin.Post("/documents/{id}/revoke", h.handleRevoke)
		})
	})
}

type issueRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"` // base64
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	doc, err := h.service.Issue(r.Context(), chi.URLParam(r, "did"), req.Name, req.ContentType, req.Content)
	if err != nil {
		h.logger.WarnContext(r.Context(), "document issue failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, "document issued", doc)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, "document", doc)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.ListByDID(r.Context(), chi.URLParam(r, "did"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if docs == nil {
		docs = []*document.Document{}
	}
	shared.WriteJSON(w, http.StatusOK, "documents", docs)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Revoke(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, "document revoked", doc)
}
