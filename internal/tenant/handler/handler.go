// Package handler exposes tenant lifecycle management on the admin surface.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quoin/internal/tenant/service"
	"quoin/pkg/apierrors"
	id "quoin/pkg/domain"
	"quoin/pkg/platform/httputil"
	"quoin/pkg/requestcontext"
)

// Handler serves tenant provisioning and lifecycle transitions. The router
// mounts it behind the system:admin capability gate.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{service: svc, logger: logger}
}

// Register mounts the admin routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{tenantID}", h.get)
	r.Post("/{tenantID}/suspend", h.suspend)
	r.Post("/{tenantID}/reactivate", h.reactivate)
}

type createRequest struct {
	Slug string `json:"slug" validate:"required,max=64"`
	Name string `json:"name" validate:"required,max=128"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[createRequest](w, r, h.logger)
	if !ok {
		return
	}

	tenant, err := h.service.Create(r.Context(), req.Slug, req.Name)
	if err != nil {
		h.logFailure(r, "tenant create failed", err)
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tenant)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	tenant, err := h.service.Get(r.Context(), tenantID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tenant)
}

func (h *Handler) suspend(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	tenant, err := h.service.Suspend(r.Context(), tenantID)
	if err != nil {
		h.logFailure(r, "tenant suspend failed", err)
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tenant)
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	tenant, err := h.service.Reactivate(r.Context(), tenantID)
	if err != nil {
		h.logFailure(r, "tenant reactivate failed", err)
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tenant)
}

func (h *Handler) tenantID(w http.ResponseWriter, r *http.Request) (id.TenantID, bool) {
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		httputil.WriteError(w, r, apierrors.Wrap(err, apierrors.CodeValidation, "tenant id must be a UUID"))
		return tenantID, false
	}
	return tenantID, true
}

func (h *Handler) logFailure(r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		"correlation_id", requestcontext.CorrelationID(r.Context()),
		"error", err,
	)
}
