package audit

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoin/internal/identity"
	"quoin/pkg/apierrors"
	id "quoin/pkg/domain"
	"quoin/pkg/platform/httputil"
	"quoin/pkg/requestcontext"
)

// seedRequestContext stands in for the correlation, request-time and
// metadata middleware that run ahead of capture in the real chain.
func seedRequestContext(correlationID, ip, ua string, at time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithCorrelationID(r.Context(), correlationID)
			ctx = requestcontext.WithClientMetadata(ctx, ip, ua)
			ctx = requestcontext.WithTime(ctx, at)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveTenant stands in for the tenant resolver further down the chain.
func resolveTenant(tenantID id.TenantID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTenantID(r.Context(), tenantID)
			requestcontext.PublishTenant(ctx, tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TestCapture_RecordsAuthenticatedRequest(t *testing.T) {
	sink := &collectSink{}
	cfg := testAuditConfig()
	cfg.Profile = "compliance"
	rec := NewRecorder(cfg, WithSink("memory", sink))

	actor := &identity.Actor{
		ID:    id.UserID(uuid.New()),
		Email: "estimator@acme.test",
		Roles: []string{"estimator"},
	}
	tenantID := id.TenantID(uuid.New())
	estimateID := uuid.New().String()
	at := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	discard := slog.New(slog.DiscardHandler)

	r := chi.NewRouter()
	r.Use(seedRequestContext("corr-abc", "203.0.113.9", "Mozilla/5.0", at))
	r.Use(Capture(rec, cfg, discard))
	r.Use(identity.RequireAuth(nil, discard, identity.WithBypassActor(actor)))
	r.Use(resolveTenant(tenantID))
	r.Get("/api/estimates/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%q,"total":125000.5,"client_ssn":"123-45-6789"}`, chi.URLParam(req, "id"))
	})

	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/estimates/"+estimateID, nil))
	rec.Close()

	require.Equal(t, http.StatusOK, res.Code)
	entries := sink.all()
	require.Len(t, entries, 1)
	e := entries[0]

	assert.Equal(t, uint64(1), e.Sequence)
	assert.Empty(t, e.PrevHash)
	assert.NotEmpty(t, e.EntryHash)
	assert.Equal(t, at, e.OccurredAt)
	assert.Equal(t, ActionRead, e.Action)
	assert.Equal(t, "estimates", e.Resource)
	assert.Equal(t, estimateID, e.ResourceID)
	assert.Equal(t, http.MethodGet, e.Method)
	assert.Equal(t, "/api/estimates/"+estimateID, e.Path)
	assert.Equal(t, http.StatusOK, e.StatusCode)
	assert.GreaterOrEqual(t, e.DurationMS, int64(0))
	assert.Empty(t, e.ErrorCode)
	assert.Equal(t, "corr-abc", e.CorrelationID)
	assert.Equal(t, "203.0.113.9", e.ClientIP)
	assert.Equal(t, "Mozilla/5.0", e.UserAgent)
	assert.Equal(t, actor.ID.String(), e.UserID, "identity published below capture must be recorded")
	assert.Equal(t, "estimator@acme.test", e.UserEmail)
	assert.Equal(t, tenantID.String(), e.TenantID)
	assert.Equal(t, []string{FlagFinancialData}, e.ComplianceFlags)
	assert.Nil(t, e.RequestBody)
	assert.JSONEq(t,
		fmt.Sprintf(`{"id":%q,"total":125000.5,"client_ssn":"*****6789"}`, estimateID),
		string(e.ResponseBody))
}

func TestCapture_AuditsRejectedRequests(t *testing.T) {
	sink := &collectSink{}
	cfg := testAuditConfig()
	rec := NewRecorder(cfg, WithSink("memory", sink))
	discard := slog.New(slog.DiscardHandler)

	reject := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteError(w, r, apierrors.New(apierrors.CodeAuthTokenExpired, "token expired"))
		})
	}

	r := chi.NewRouter()
	r.Use(seedRequestContext("corr-401", "198.51.100.7", "Mozilla/5.0", time.Now().UTC()))
	r.Use(Capture(rec, cfg, discard))
	r.Use(reject)
	r.Get("/api/estimates", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/estimates", nil))
	rec.Close()

	require.Equal(t, http.StatusUnauthorized, res.Code)
	entries := sink.all()
	require.Len(t, entries, 1)
	e := entries[0]

	assert.Equal(t, "GET"+FailedSuffix, e.Action)
	assert.Equal(t, "estimates", e.Resource)
	assert.Equal(t, http.StatusUnauthorized, e.StatusCode)
	assert.Equal(t, string(apierrors.CodeAuthTokenExpired), e.ErrorCode)
	assert.Empty(t, e.UserID, "identity never resolved for a rejected request")
	assert.Empty(t, e.TenantID)
	assert.Contains(t, e.ComplianceFlags, FlagAccessDenied)
}

func TestCapture_ClassifiesAuthenticationTraffic(t *testing.T) {
	sink := &collectSink{}
	cfg := testAuditConfig()
	rec := NewRecorder(cfg, WithSink("memory", sink))

	r := chi.NewRouter()
	r.Use(Capture(rec, cfg, nil))
	r.Post("/api/auth/login", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if req.Header.Get("X-Fail") != "" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"code":"AUTH_TOKEN_INVALID","message":"bad credentials"}`)
			return
		}
		io.WriteString(w, `{"token":"opaque"}`)
	})

	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))

	failed := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	failed.Header.Set("X-Fail", "1")
	r.ServeHTTP(httptest.NewRecorder(), failed)
	rec.Close()

	entries := sink.all()
	require.Len(t, entries, 2)

	assert.Equal(t, ActionLogin, entries[0].Action)
	assert.Contains(t, entries[0].ComplianceFlags, FlagAuthentication)
	assert.JSONEq(t, `{}`, string(entries[0].ResponseBody), "token fields never reach the trail")

	assert.Equal(t, ActionLogin+FailedSuffix, entries[1].Action)
	assert.Equal(t, "AUTH_TOKEN_INVALID", entries[1].ErrorCode)
	assert.Contains(t, entries[1].ComplianceFlags, FlagAuthentication)
	assert.Contains(t, entries[1].ComplianceFlags, FlagAccessDenied)
}

func TestCapture_SanitizesRequestBody(t *testing.T) {
	sink := &collectSink{}
	cfg := testAuditConfig()
	rec := NewRecorder(cfg, WithSink("memory", sink))

	var handlerSaw []byte
	r := chi.NewRouter()
	r.Use(Capture(rec, cfg, nil))
	r.Post("/api/contractors", func(w http.ResponseWriter, req *http.Request) {
		handlerSaw, _ = io.ReadAll(req.Body)
		w.WriteHeader(http.StatusCreated)
	})

	body := `{"name":"Acme Mechanical","password":"hunter2","ssn":"123-45-6789"}`
	req := httptest.NewRequest(http.MethodPost, "/api/contractors", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	rec.Close()

	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, body, string(handlerSaw), "capture must not consume the body")

	entries := sink.all()
	require.Len(t, entries, 1)
	assert.Equal(t, ActionCreate, entries[0].Action)
	assert.JSONEq(t, `{"name":"Acme Mechanical","ssn":"*****6789"}`, string(entries[0].RequestBody))
}

func TestCapture_OversizedBodiesPassThroughUnrecorded(t *testing.T) {
	sink := &collectSink{}
	cfg := testAuditConfig()
	cfg.MaxBodyBytes = 32
	rec := NewRecorder(cfg, WithSink("memory", sink))

	bigResponse := fmt.Sprintf(`{"note":%q}`, strings.Repeat("y", 80))
	var handlerSaw int
	r := chi.NewRouter()
	r.Use(Capture(rec, cfg, nil))
	r.Post("/api/estimates", func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		handlerSaw = len(b)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, bigResponse)
	})

	body := fmt.Sprintf(`{"note":%q}`, strings.Repeat("x", 80))
	req := httptest.NewRequest(http.MethodPost, "/api/estimates", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	rec.Close()

	assert.Equal(t, len(body), handlerSaw, "handler still reads the full request")
	assert.Equal(t, bigResponse, res.Body.String(), "client still receives the full response")

	entries := sink.all()
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].RequestBody)
	assert.Nil(t, entries[0].ResponseBody)
}

func TestCapture_IgnoresNonJSONBodies(t *testing.T) {
	sink := &collectSink{}
	cfg := testAuditConfig()
	rec := NewRecorder(cfg, WithSink("memory", sink))

	r := chi.NewRouter()
	r.Use(Capture(rec, cfg, nil))
	r.Post("/api/uploads", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "ok")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", strings.NewReader("raw bytes"))
	req.Header.Set("Content-Type", "application/octet-stream")

	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	rec.Close()

	assert.Equal(t, "ok", res.Body.String())
	entries := sink.all()
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].RequestBody)
	assert.Nil(t, entries[0].ResponseBody)
}

func TestCapture_RecorderFailureDoesNotFailResponse(t *testing.T) {
	cfg := testAuditConfig()

	r := chi.NewRouter()
	r.Use(Capture(nil, cfg, slog.New(slog.DiscardHandler)))
	r.Get("/api/estimates", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"entries":[]}`)
	})

	res := httptest.NewRecorder()
	require.NotPanics(t, func() {
		r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/estimates", nil))
	})
	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"entries":[]}`, res.Body.String())
}

func TestCapture_DefaultsUnwrittenStatusTo200(t *testing.T) {
	sink := &collectSink{}
	cfg := testAuditConfig()
	rec := NewRecorder(cfg, WithSink("memory", sink))

	r := chi.NewRouter()
	r.Use(Capture(rec, cfg, nil))
	r.Get("/api/estimates", func(http.ResponseWriter, *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/api/estimates", nil)
	req.Header.Set("User-Agent", "curl/8.5.0")
	r.ServeHTTP(httptest.NewRecorder(), req)
	rec.Close()

	entries := sink.all()
	require.Len(t, entries, 1)
	assert.Equal(t, http.StatusOK, entries[0].StatusCode)
	assert.Equal(t, ActionRead, entries[0].Action)
	assert.Equal(t, "curl/8.5.0", entries[0].UserAgent, "falls back to the request header")
}
