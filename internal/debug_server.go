package internal

import (
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// NewDebugHandler serves Prometheus metrics on /metrics and the result of
// check on /health.
func NewDebugHandler(check HealthCheck) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = fmt.Fprint(w, "OK")
	})
	return mux
}

// StartDebugServer serves the debug handler in the background. The returned
// function shuts the server down.
func StartDebugServer(log *slog.Logger, port int, check HealthCheck) func(context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           NewDebugHandler(check),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Debug server listening", "url", fmt.Sprintf("http://localhost:%d/metrics", port))
		if err := srv.ListenAndServe(); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
			log.Error("Debug server stopped", "error", err)
		}
	}()
	return srv.Shutdown
}
