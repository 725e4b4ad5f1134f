package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter serves the default registry under /metrics and a health check.
func NewRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Exporter runs NewRouter on a listener for the lifetime of a command.
type Exporter struct {
	server *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// StartExporter listens on addr and serves metrics in the background.
func StartExporter(addr string, logger *slog.Logger) (*Exporter, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	e := &Exporter{
		server: &http.Server{
			Handler:           NewRouter(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logger,
	}

	go func() {
		logger.Info("metrics exporter starting", "address", ln.Addr().String())
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics exporter failed", "error", err)
		}
	}()

	return e, nil
}

// Addr returns the address the exporter listens on.
func (e *Exporter) Addr() string {
	return e.ln.Addr().String()
}

// Shutdown stops the exporter.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if err := e.server.Shutdown(ctx); err != nil {
		e.logger.Error("metrics exporter shutdown failed", "error", err)
		return err
	}
	e.logger.Info("metrics exporter stopped")
	return nil
}
