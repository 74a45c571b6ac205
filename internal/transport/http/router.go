// Package httptransport is the thin HTTP layer. Handlers delegate to the
// timing and certification services and never embed business logic.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chronocert/internal/certify"
	"chronocert/internal/clock"
	"chronocert/internal/hptp"
	"chronocert/internal/platform/metrics"
	"chronocert/internal/platform/middleware"
	"chronocert/internal/transport/http/shared"
	"chronocert/internal/verify"
)

// HealthCheck names one dependency and how to probe it.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the services the transport exposes.
type Deps struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Driver    *clock.Driver
	Client    *hptp.Client
	Verifier  *verify.Verifier
	Certifier *certify.Service
	Admin     middleware.AdminValidator
	Health    []HealthCheck
}

// Handler holds the wired services behind the HTTP surface.
type Handler struct {
	deps Deps
}

// New creates the HTTP handler set.
func New(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Handler{deps: deps}
}

// Router builds the full route tree with the standard middleware chain.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.deps.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.LatencyMiddleware(h.deps.Metrics))

	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/timing/v1", func(api chi.Router) {
		api.Use(middleware.ContentTypeJSON)

		api.Get("/current", h.handleCurrent)
		api.Get("/sync-status", h.handleSyncStatus)
		api.Get("/peers", h.handlePeers)
		api.Post("/batch", h.handleBatch)
		api.Get("/metrics", h.handleTimingMetrics)
		api.Get("/calibration", h.handleCalibration)
		api.Post("/hptp", h.handleExchange)

		api.Post("/certify", h.handleCertify)
		api.Post("/verify", h.handleVerify)
		api.Get("/certificates", h.handleListCertificates)
		api.Get("/certificates/{id}", h.handleGetCertificate)

		api.Get("/compliance/finra-613", h.handleFINRA613Status)
		api.Get("/compliance/finra-613/report", h.handleFINRA613Report)
		api.Get("/compliance/mifid-ii", h.handleMiFIDIIReport)

		if h.deps.Admin != nil {
			api.Group(func(guarded chi.Router) {
				guarded.Use(middleware.RequireAdmin(h.deps.Admin, h.deps.Logger))
				guarded.Post("/certificates/{id}/revoke", h.handleRevokeCertificate)
			})
		}
	})

	return r
}

type healthEntry struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries := make([]healthEntry, 0, len(h.deps.Health))
	healthy := true
	for _, hc := range h.deps.Health {
		entry := healthEntry{Name: hc.Name, Status: "ok"}
		if err := hc.Check(ctx); err != nil {
			entry.Status = "unhealthy"
			entry.Error = err.Error()
			healthy = false
		}
		entries = append(entries, entry)
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	shared.WriteJSON(w, status, map[string]any{
		"success":      healthy,
		"dependencies": entries,
	})
}
