package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"quoin/internal/identity"
	"quoin/pkg/apierrors"
	id "quoin/pkg/domain"
	"quoin/pkg/platform/httputil"
	"quoin/pkg/requestcontext"
)

const (
	defaultTokenTTL = time.Hour
	maxTokenTTL     = 24 * time.Hour
)

// TokenIssuer mints signed access tokens.
type TokenIssuer interface {
	GenerateAccessToken(actor *identity.Actor, expiresIn time.Duration) (string, error)
}

// AuthHandler issues access tokens for local development and automated
// testing. The router mounts it outside production only; deployments
// authenticate against an identity provider instead.
type AuthHandler struct {
	issuer TokenIssuer
	logger *slog.Logger
}

func NewAuthHandler(issuer TokenIssuer, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AuthHandler{issuer: issuer, logger: logger}
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/api/auth/token", h.issueToken)
}

type tokenRequest struct {
	Email            string   `json:"email" validate:"required,email"`
	TenantID         string   `json:"tenant_id" validate:"omitempty,uuid"`
	Roles            []string `json:"roles" validate:"omitempty,dive,required"`
	Permissions      []string `json:"permissions" validate:"omitempty,dive,required"`
	ExpiresInSeconds int      `json:"expires_in_seconds" validate:"omitempty,min=60,max=86400"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (h *AuthHandler) issueToken(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[tokenRequest](w, r, h.logger)
	if !ok {
		return
	}

	actor := &identity.Actor{
		ID:          id.UserID(uuid.New()),
		Email:       req.Email,
		Roles:       req.Roles,
		Permissions: req.Permissions,
	}
	if req.TenantID != "" {
		tenantID, err := id.ParseTenantID(req.TenantID)
		if err != nil {
			httputil.WriteError(w, r, apierrors.Wrap(err, apierrors.CodeValidation, "tenant_id must be a UUID"))
			return
		}
		actor.TenantID = tenantID
	}
	if len(actor.Roles) == 0 {
		actor.Roles = []string{"estimator"}
	}

	expiresIn := defaultTokenTTL
	if req.ExpiresInSeconds > 0 {
		expiresIn = min(time.Duration(req.ExpiresInSeconds)*time.Second, maxTokenTTL)
	}

	token, err := h.issuer.GenerateAccessToken(actor, expiresIn)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "token minting failed",
			"correlation_id", requestcontext.CorrelationID(r.Context()),
			"error", err,
		)
		httputil.WriteError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(expiresIn.Seconds()),
	})
}
