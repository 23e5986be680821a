// Package api exposes the usage gate over HTTP.
//
// The authenticated user arrives in the X-User-ID header set by the upstream
// gateway. Exhausted quota is a 200 response with "allowed": false; only
// malformed or unauthenticated requests are errors.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/usagegate/pkg/audit"
	"github.com/dmitrymomot/usagegate/pkg/httpserver"
	"github.com/dmitrymomot/usagegate/pkg/metrics"
	"github.com/dmitrymomot/usagegate/pkg/principal"
	"github.com/dmitrymomot/usagegate/pkg/requestid"
)

// Auditor records audit events. *audit.Logger satisfies it.
type Auditor interface {
	Log(ctx context.Context, action string, opts ...audit.EventOption) error
}

// Options wires the router. Gate is required; everything else is optional
// and its routes are only mounted when present.
type Options struct {
	Gate    Gate
	Syncer  Syncer
	Auditor Auditor
	// OnSubscriptionSynced runs after a webhook updated a user's record.
	OnSubscriptionSynced func(userID string)

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	ReadinessChecks  []httpserver.Check
	ReadinessTimeout time.Duration

	Logger *slog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) chi.Router {
	if opts.Gate == nil {
		panic("api: nil gate")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	h := &handlers{
		gate:     opts.Gate,
		syncer:   opts.Syncer,
		auditor:  opts.Auditor,
		onSynced: opts.OnSubscriptionSynced,
		log:      log,
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(opts.Metrics.Middleware)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, opts.ReadinessTimeout, opts.ReadinessChecks...))
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(u chi.Router) {
			u.Use(principal.Middleware)
			u.Get("/usage", h.allStatus)
			u.Get("/usage/{feature}", h.status)
			u.Post("/usage/{feature}/check", h.check)
			u.Delete("/usage/{feature}", h.reset)
		})

		if opts.Syncer != nil {
			v1.Post("/webhooks/paddle", h.paddleWebhook)
		}
	})

	return r
}
