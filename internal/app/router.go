package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/SGK112/CRM-sub002/internal/billing/conversion"
	"github.com/SGK112/CRM-sub002/internal/billing/estimates"
	"github.com/SGK112/CRM-sub002/internal/billing/invoices"
	"github.com/SGK112/CRM-sub002/internal/billing/share"
	"github.com/SGK112/CRM-sub002/internal/observability"
	"github.com/SGK112/CRM-sub002/internal/platform/httpx"
	"github.com/SGK112/CRM-sub002/jobs"
	"github.com/SGK112/CRM-sub002/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	EstimatesHandler  *estimates.Handler
	ConversionHandler *conversion.Handler
	InvoicesHandler   *invoices.Handler
	ShareHandler      *share.Handler
	ReportHandler     *report.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(IdentityMiddleware)
		r.Route("/estimates", func(r chi.Router) {
			if params.EstimatesHandler != nil {
				params.EstimatesHandler.MountRoutes(r)
			}
			if params.ConversionHandler != nil {
				params.ConversionHandler.MountRoutes(r)
			}
		})
		if params.InvoicesHandler != nil {
			r.Route("/invoices", params.InvoicesHandler.MountRoutes)
		}
	})

	if params.ShareHandler != nil {
		r.Route("/public/estimates", params.ShareHandler.MountRoutes)
	}
	if params.ReportHandler != nil {
		r.Route("/report", params.ReportHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
