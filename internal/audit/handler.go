package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"quoin/internal/identity"
	"quoin/pkg/apierrors"
	"quoin/pkg/platform/httputil"
	"quoin/pkg/requestcontext"
)

// Handler exposes the audit trail to system administrators. The router
// mounts it behind the system:admin capability gate.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the admin routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.list)
	r.Delete("/", h.clear)
}

// listRequest carries the validated query filters.
type listRequest struct {
	ActorID  string `validate:"omitempty,uuid"`
	TenantID string `validate:"omitempty,uuid"`
	Resource string `validate:"omitempty,alphanum,lowercase"`
	Action   string `validate:"omitempty,uppercase"`
	Limit    int    `validate:"omitempty,min=1,max=1000"`
}

type listResponse struct {
	Entries []Entry `json:"entries"`
	Count   int     `json:"count"`
}

type clearResponse struct {
	Cleared int64 `json:"cleared"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	req := listRequest{
		ActorID:  r.URL.Query().Get("actor_id"),
		TenantID: r.URL.Query().Get("tenant_id"),
		Resource: r.URL.Query().Get("resource"),
		Action:   r.URL.Query().Get("action"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, r, apierrors.Wrap(err, apierrors.CodeValidation, "limit must be an integer"))
			return
		}
		req.Limit = limit
	}
	if err := httputil.ValidateStruct(req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	entries, err := h.service.List(r.Context(), Filter{
		ActorID:  req.ActorID,
		TenantID: req.TenantID,
		Resource: req.Resource,
		Action:   req.Action,
		Limit:    req.Limit,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit query failed",
			"correlation_id", requestcontext.CorrelationID(r.Context()),
			"error", err,
		)
		httputil.WriteError(w, r, err)
		return
	}

	if entries == nil {
		entries = []Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Entries: entries, Count: len(entries)})
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Clear(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit clear failed",
			"correlation_id", requestcontext.CorrelationID(r.Context()),
			"error", err,
		)
		httputil.WriteError(w, r, err)
		return
	}

	actor := "unknown"
	if a, ok := identity.FromContext(r.Context()); ok {
		actor = a.ID.String()
	}
	h.logger.InfoContext(r.Context(), "audit trail cleared",
		"correlation_id", requestcontext.CorrelationID(r.Context()),
		"cleared", n,
		"user_id", actor,
	)

	httputil.WriteJSON(w, http.StatusOK, clearResponse{Cleared: n})
}
