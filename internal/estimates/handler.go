package estimates

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"quoin/pkg/apierrors"
	id "quoin/pkg/domain"
	"quoin/pkg/platform/httputil"
	"quoin/pkg/platform/sentinel"
	"quoin/pkg/requestcontext"
)

// Reader is the store surface the handler consumes.
type Reader interface {
	ListEstimates(ctx context.Context, limit int) ([]Estimate, error)
	GetEstimate(ctx context.Context, estimateID id.EstimateID) (*Estimate, error)
	ListBids(ctx context.Context, estimateID id.EstimateID, limit int) ([]Bid, error)
}

// Handler serves the read-only estimate and bid routes. The router mounts
// it behind the estimate:read and bid:read capability gates.
type Handler struct {
	store  Reader
	logger *slog.Logger
}

func NewHandler(store Reader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{store: store, logger: logger}
}

// RegisterEstimates mounts the estimate routes on r.
func (h *Handler) RegisterEstimates(r chi.Router) {
	r.Get("/", h.listEstimates)
	r.Get("/{id}", h.getEstimate)
}

// RegisterBids mounts the bid routes on r.
func (h *Handler) RegisterBids(r chi.Router) {
	r.Get("/", h.listBids)
}

type listEstimatesResponse struct {
	Estimates []Estimate `json:"estimates"`
	Count     int        `json:"count"`
}

type listBidsResponse struct {
	Bids  []Bid `json:"bids"`
	Count int   `json:"count"`
}

func (h *Handler) listEstimates(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	estimates, err := h.store.ListEstimates(r.Context(), limit)
	if err != nil {
		h.logQueryFailure(r, "estimate list failed", err)
		httputil.WriteError(w, r, err)
		return
	}

	if estimates == nil {
		estimates = []Estimate{}
	}
	httputil.WriteJSON(w, http.StatusOK, listEstimatesResponse{Estimates: estimates, Count: len(estimates)})
}

func (h *Handler) getEstimate(w http.ResponseWriter, r *http.Request) {
	estimateID, err := id.ParseEstimateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	estimate, err := h.store.GetEstimate(r.Context(), estimateID)
	if err != nil {
		h.logQueryFailure(r, "estimate lookup failed", err)
		httputil.WriteError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, estimate)
}

func (h *Handler) listBids(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	var estimateID id.EstimateID
	if raw := r.URL.Query().Get("estimate_id"); raw != "" {
		estimateID, err = id.ParseEstimateID(raw)
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}
	}

	bids, err := h.store.ListBids(r.Context(), estimateID, limit)
	if err != nil {
		h.logQueryFailure(r, "bid list failed", err)
		httputil.WriteError(w, r, err)
		return
	}

	if bids == nil {
		bids = []Bid{}
	}
	httputil.WriteJSON(w, http.StatusOK, listBidsResponse{Bids: bids, Count: len(bids)})
}

// logQueryFailure records store errors. Not-found is routine here: hidden
// rows from cross-tenant probes surface as not found, so those stay out of
// the error log.
func (h *Handler) logQueryFailure(r *http.Request, msg string, err error) {
	if errors.Is(err, sentinel.ErrNotFound) {
		return
	}
	h.logger.ErrorContext(r.Context(), msg,
		"correlation_id", requestcontext.CorrelationID(r.Context()),
		"error", err,
	)
}

// limitParam parses the optional limit query parameter.
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierrors.Wrap(err, apierrors.CodeValidation, "limit must be an integer")
	}
	if limit < 1 || limit > 500 {
		return 0, apierrors.New(apierrors.CodeValidation, "limit must be between 1 and 500")
	}
	return limit, nil
}
