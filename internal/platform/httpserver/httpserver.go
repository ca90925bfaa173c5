// Package httpserver builds the API server with its timeout defaults.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server for the verification API. Verification scans are small
// requests; the write timeout bounds a stalled client without cutting off the
// slowest pipeline lookups.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
