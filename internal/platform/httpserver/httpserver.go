package httpserver

import (
	"net/http"
	"time"

	"visaintake/internal/platform/config"
)

// New builds an HTTP server from the server section of the config.
// Write timeout stays above the request timeout so submissions can finish their response.
func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}
