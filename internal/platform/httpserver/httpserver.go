// Package httpserver builds the net/http server the API runs on.
package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

// New builds an HTTP server for the quoin API. Header reads are bounded
// so a slow client cannot pin a connection before the request reaches
// the middleware chain; internal net/http noise lands in the structured
// log at warn level.
func New(addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if logger != nil {
		srv.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelWarn)
	}
	return srv
}
