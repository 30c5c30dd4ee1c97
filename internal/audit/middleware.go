package audit

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"quoin/internal/identity"
	"quoin/internal/platform/config"
	"quoin/pkg/requestcontext"
)

// Capture returns middleware that records one audit entry per completed
// request. It mounts ahead of authentication so rejected requests are
// audited too; the verifier and tenant resolver publish what they
// resolved through the requestcontext observation slot, and actor and
// tenant fields stay empty when the pipeline never got that far. Entry
// construction is wrapped so a capture failure can never fail the
// request it describes.
func Capture(recorder *Recorder, cfg config.AuditConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tagger := NewTagger(Profile(cfg.Profile))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r = r.WithContext(requestcontext.WithObservation(r.Context()))
			reqBody := captureRequestBody(r, cfg.MaxBodyBytes)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			resBody := &boundedBuffer{max: cfg.MaxBodyBytes}
			ww.Tee(resBody)

			next.ServeHTTP(ww, r)

			func() {
				defer func() {
					if rec := recover(); rec != nil {
						logger.ErrorContext(r.Context(), "audit capture panicked",
							"correlation_id", requestcontext.CorrelationID(r.Context()),
							"panic", rec,
						)
					}
				}()
				recorder.Record(buildEntry(r, ww, tagger, reqBody, resBody.BodyJSON(ww.Header()), start))
			}()
		})
	}
}

func buildEntry(r *http.Request, ww chimw.WrapResponseWriter, tagger *Tagger, reqBody, resBody []byte, start time.Time) Entry {
	ctx := r.Context()

	status := ww.Status()
	if status == 0 {
		// Handler never wrote; net/http would have sent 200 on return.
		status = http.StatusOK
	}

	entry := Entry{
		OccurredAt:    requestcontext.Now(ctx).UTC(),
		Action:        ClassifyAction(r.Method, r.URL.Path, status),
		Resource:      ClassifyResource(r.URL.Path),
		ResourceID:    ClassifyResourceID(r.URL.Path, chi.URLParam(r, "id")),
		Method:        r.Method,
		Path:          r.URL.Path,
		StatusCode:    status,
		DurationMS:    time.Since(start).Milliseconds(),
		ErrorCode:     errorCode(status, resBody),
		CorrelationID: requestcontext.CorrelationID(ctx),
		ClientIP:      requestcontext.ClientIP(ctx),
		UserAgent:     requestcontext.UserAgent(ctx),
		RequestBody:   SanitizeBody(reqBody),
		ResponseBody:  SanitizeBody(resBody),
	}

	if entry.UserAgent == "" {
		entry.UserAgent = r.UserAgent()
	}

	var roles []string
	if actor, ok := identity.FromContext(ctx); ok {
		entry.UserID = actor.ID.String()
		entry.UserEmail = actor.Email
		roles = actor.Roles
	} else if userID, email, observed := requestcontext.ObservedIdentity(ctx); !userID.IsNil() {
		entry.UserID = userID.String()
		entry.UserEmail = email
		roles = observed
	}

	tenantID := requestcontext.TenantID(ctx)
	if tenantID.IsNil() {
		tenantID = requestcontext.ObservedTenant(ctx)
	}
	if !tenantID.IsNil() {
		entry.TenantID = tenantID.String()
	}

	entry.ComplianceFlags = tagger.Flags(entry, roles)
	return entry
}

// errorCode lifts the taxonomy code out of the error envelope so failed
// requests are queryable by code without parsing bodies.
func errorCode(status int, resBody []byte) string {
	if status < http.StatusBadRequest || len(resBody) == 0 {
		return ""
	}
	var envelope struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(resBody, &envelope); err != nil {
		return ""
	}
	return envelope.Code
}

// captureRequestBody reads a bounded copy of a JSON request body and
// splices the read bytes back so the handler sees the full stream.
// Oversized bodies are passed through unrecorded: a truncated copy would
// not be valid JSON.
func captureRequestBody(r *http.Request, maxBytes int) []byte {
	if r.Body == nil || r.Body == http.NoBody || maxBytes <= 0 {
		return nil
	}
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return nil
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, int64(maxBytes)+1))
	if err != nil {
		r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(buf), r.Body))
		return nil
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(buf), r.Body))

	if len(buf) > maxBytes {
		return nil
	}
	return buf
}

// boundedBuffer tees response bytes up to a limit. It always reports the
// full write so the client response is unaffected; past the limit the
// copy is marked overflowed and discarded.
type boundedBuffer struct {
	buf      bytes.Buffer
	max      int
	overflow bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if b.overflow || b.max <= 0 {
		b.overflow = true
		return n, nil
	}

	remain := b.max - b.buf.Len()
	if n > remain {
		b.overflow = true
		p = p[:remain]
	}
	b.buf.Write(p)
	return n, nil
}

// BodyJSON returns the captured response body when it fit the limit and
// the response declared a JSON content type, nil otherwise.
func (b *boundedBuffer) BodyJSON(header http.Header) []byte {
	if b.overflow {
		return nil
	}
	if !strings.Contains(header.Get("Content-Type"), "application/json") {
		return nil
	}
	return b.buf.Bytes()
}
