package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"quoin/internal/audit"
	"quoin/pkg/platform/httputil"
	"quoin/pkg/requestcontext"
)

const healthPingTimeout = 2 * time.Second

// HealthHandler reports data-store reachability and audit pipeline
// pressure. Orchestrators poll it, so it answers fast and never requires
// authentication.
type HealthHandler struct {
	db       Pinger
	recorder *audit.Recorder
	logger   *slog.Logger
}

func NewHealthHandler(db Pinger, recorder *audit.Recorder, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HealthHandler{db: db, recorder: recorder, logger: logger}
}

type healthResponse struct {
	Status   string      `json:"status"`
	Database string      `json:"database"`
	Audit    healthAudit `json:"audit"`
}

type healthAudit struct {
	QueueDepth int   `json:"queue_depth"`
	Dropped    int64 `json:"dropped_total"`
}

func (h *HealthHandler) handle(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "up"}
	status := http.StatusOK

	if err := h.ping(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "health probe found database unreachable",
			"correlation_id", requestcontext.CorrelationID(r.Context()),
			"error", err,
		)
		resp.Status = "degraded"
		resp.Database = "down"
		status = http.StatusServiceUnavailable
	}

	if h.recorder != nil {
		resp.Audit = healthAudit{
			QueueDepth: h.recorder.Depth(),
			Dropped:    h.recorder.Dropped(),
		}
	}

	httputil.WriteJSON(w, status, resp)
}

func (h *HealthHandler) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	return h.db.Ping(ctx)
}
