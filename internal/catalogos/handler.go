package catalogos

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/luciosalva/control-presupuesto/internal/platform/httpx"
)

// Handler wires catalog HTTP endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/catalogos", h.listAll)
	r.Get("/catalogos/{catalogo}", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	catalogo := chi.URLParam(r, "catalogo")

	if catalogo == CatalogProyectos {
		proyectos, err := h.service.ListProyectos(r.Context())
		if err != nil {
			h.logger.Error("list proyectos failed", slog.Any("error", err))
			httpx.Error(w, http.StatusInternalServerError, httpx.KindTransaction, "could not load catalog", "")
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"data": proyectos})
		return
	}

	items, err := h.service.List(r.Context(), catalogo)
	if err != nil {
		if errors.Is(err, ErrUnknownCatalog) {
			httpx.Error(w, http.StatusNotFound, httpx.KindNotFound, "unknown catalog", "")
			return
		}
		h.logger.Error("list catalog failed", slog.Any("error", err), slog.String("catalogo", catalogo))
		httpx.Error(w, http.StatusInternalServerError, httpx.KindTransaction, "could not load catalog", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// listAll fetches every catalog concurrently; forms load them in one call.
func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	var (
		mu  sync.Mutex
		out = map[string]any{}
	)

	g, ctx := errgroup.WithContext(r.Context())
	for _, name := range Names() {
		g.Go(func() error {
			var (
				data any
				err  error
			)
			if name == CatalogProyectos {
				data, err = h.service.ListProyectos(ctx)
			} else {
				data, err = h.service.List(ctx, name)
			}
			if err != nil {
				return err
			}
			mu.Lock()
			out[name] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.logger.Error("list catalogs failed", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, httpx.KindTransaction, "could not load catalogs", "")
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
