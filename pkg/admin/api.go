// Package admin exposes the management surface for the reporter
// registry: listing reporters, toggling them at runtime and reading or
// updating a live reporter's configuration. It mounts on the host's own
// HTTP mux, alongside the instrumented routes.
package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bweblog/bweblog/pkg/logging"
	"github.com/bweblog/bweblog/pkg/metrics"
	"github.com/bweblog/bweblog/pkg/weblog"
)

// API serves the management endpoints for one registry.
type API struct {
	reg       *weblog.Registry
	log       *slog.Logger
	startTime time.Time
}

// New creates the management API over reg.
func New(reg *weblog.Registry, log *slog.Logger) *API {
	if log == nil {
		log = logging.Nop()
	}
	return &API{
		reg:       reg,
		log:       log,
		startTime: time.Now(),
	}
}

// Routes registers the management endpoints on mux.
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /bweb-log", a.handleListReporters)
	mux.HandleFunc("PUT /bweb-log", a.handleToggleReporter)
	mux.HandleFunc("GET /bweb-log/{id}", a.handleGetReporterConfig)
	mux.HandleFunc("PUT /bweb-log/{id}", a.handleSetReporterConfig)
}

// Uptime reports how long the API has been serving.
func (a *API) Uptime() time.Duration {
	return time.Since(a.startTime)
}
