// Package correlation establishes the request correlation context.
//
// It runs first in the middleware chain, adopts or mints a correlation ID,
// seeds the session-claims guard, and echoes the ID on the response so
// clients can quote it in failure reports. It never fails a request.
package correlation

import (
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"quoin/pkg/requestcontext"
)

// Header is the inbound and outbound correlation header.
const Header = "X-Correlation-ID"

// Middleware resolves the correlation ID for the request. Precedence:
// inbound X-Correlation-ID header, then the active trace span's TraceID,
// then a freshly minted UUID.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		correlationID := r.Header.Get(Header)
		if correlationID == "" {
			if sc := trace.SpanContextFromContext(ctx); sc.TraceID().IsValid() {
				correlationID = sc.TraceID().String()
			} else {
				correlationID = uuid.NewString()
			}
		}

		ctx = requestcontext.WithCorrelationID(ctx, correlationID)
		ctx = requestcontext.WithClaimsState(ctx)

		// Echo before the handler runs so even aborted requests carry it.
		w.Header().Set(Header, correlationID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
