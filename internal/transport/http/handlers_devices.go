package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quoin/internal/identity"
	"quoin/pkg/apierrors"
	id "quoin/pkg/domain"
	"quoin/pkg/platform/httputil"
	"quoin/pkg/platform/middleware/device"
	"quoin/pkg/requestcontext"
)

// DeviceHandler serves the device self-service surface. It is the one
// authenticated route group that skips tenant resolution: a caller's
// device registration is theirs regardless of which tenant they act on.
type DeviceHandler struct {
	logger *slog.Logger
}

func NewDeviceHandler(logger *slog.Logger) *DeviceHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DeviceHandler{logger: logger}
}

func (h *DeviceHandler) Register(r chi.Router) {
	r.Get("/current", h.current)
}

type deviceView struct {
	DeviceID    string    `json:"device_id,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	IPAddress   string    `json:"ip_address"`
	UserAgent   string    `json:"user_agent,omitempty"`
	UserID      id.UserID `json:"user_id"`
	Email       string    `json:"email"`
	TenantID    string    `json:"tenant_id,omitempty"`
}

// current describes the device the platform matched for this request:
// the caller-supplied identifier, the derived fingerprint, and the actor
// the token resolved to.
func (h *DeviceHandler) current(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := identity.FromContext(ctx)
	if !ok {
		httputil.WriteError(w, r, apierrors.New(apierrors.CodeAuthTokenMissing, "authentication required"))
		return
	}

	view := deviceView{
		DeviceID:    device.DeviceID(ctx),
		Fingerprint: device.DeviceFingerprint(ctx),
		IPAddress:   requestcontext.ClientIP(ctx),
		UserAgent:   requestcontext.UserAgent(ctx),
		UserID:      actor.ID,
		Email:       actor.Email,
	}
	if !actor.TenantID.IsNil() {
		view.TenantID = actor.TenantID.String()
	}

	httputil.WriteJSON(w, http.StatusOK, view)
}
