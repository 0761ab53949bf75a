package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/luciosalva/control-presupuesto/internal/authz"
	"github.com/luciosalva/control-presupuesto/internal/catalogos"
	"github.com/luciosalva/control-presupuesto/internal/comprometidos"
	"github.com/luciosalva/control-presupuesto/internal/devengados"
	"github.com/luciosalva/control-presupuesto/internal/ledger"
	"github.com/luciosalva/control-presupuesto/internal/observability"
	"github.com/luciosalva/control-presupuesto/internal/suficiencias"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	Authz               authz.Middleware
	LedgerHandler       *ledger.Handler
	CatalogosHandler    *catalogos.Handler
	SuficienciasHandler *suficiencias.Handler
	ComprometidoHandler *comprometidos.Handler
	DevengadosHandler   *devengados.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router. Health and metrics stay outside the
// authenticated group; everything under /api requires a bearer token.
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
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(params.Authz.Authenticate)

		params.LedgerHandler.MountRoutes(r)
		params.CatalogosHandler.MountRoutes(r)
		params.SuficienciasHandler.MountRoutes(r)
		params.ComprometidoHandler.MountRoutes(r)
		params.DevengadosHandler.MountRoutes(r)
	})

	return r
}
