package httpserver

import (
	"net/http"
	"time"
)

// New wraps handler in a server whose read limits bound slow clients.
// WriteTimeout stays above the per-request middleware timeout so handlers can
// still write their own timeout response.
func New(addr string, handler http.Handler, requestTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
