package devengados

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/luciosalva/control-presupuesto/internal/authz"
	"github.com/luciosalva/control-presupuesto/internal/comprometidos"
	"github.com/luciosalva/control-presupuesto/internal/platform/httpx"
)

// Handler wires the devengado HTTP endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	authz     authz.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, az authz.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		authz:     az,
	}
}

// MountRoutes registers devengado routes on the provided router. Cancellation
// reverses posted ledger effects, so it is restricted to administrators.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/devengados", h.save)
	r.Get("/devengados/comprometido/{id}", h.consulta)

	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.RoleAdmin))
		r.Post("/devengados/{id}/cancelar", h.cancel)
	})
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid JSON body", "")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error(), "")
		return
	}

	doc, err := h.service.Save(r.Context(), req, actor(r))
	if err != nil {
		switch {
		case errors.Is(err, comprometidos.ErrNotFound):
			httpx.Error(w, http.StatusNotFound, httpx.KindNotFound, "comprometido no encontrado", "")
		case errors.Is(err, ErrExcedeComprometido):
			httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error(), "")
		case errors.Is(err, ErrFueraDeVigencia), errors.Is(err, ErrCancelado):
			httpx.Error(w, http.StatusConflict, httpx.KindLocked, err.Error(), "")
		default:
			h.logger.Error("save devengado failed", slog.Any("error", err))
			httpx.Error(w, http.StatusInternalServerError, httpx.KindTransaction, "could not save devengado", httpx.PgDetail(err))
		}
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) consulta(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid id", "")
		return
	}

	resp, err := h.service.Consulta(r.Context(), id)
	if err != nil {
		if errors.Is(err, comprometidos.ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, httpx.KindNotFound, "comprometido no encontrado", "")
			return
		}
		h.logger.Error("consulta devengado failed", slog.Any("error", err), slog.Int64("id_comprometido", id))
		httpx.Error(w, http.StatusInternalServerError, httpx.KindTransaction, "could not load devengado", httpx.PgDetail(err))
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid id", "")
		return
	}

	doc, err := h.service.Cancel(r.Context(), id, actor(r))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, httpx.KindNotFound, "devengado no encontrado", "")
			return
		}
		h.logger.Error("cancel devengado failed", slog.Any("error", err), slog.Int64("id", id))
		httpx.Error(w, http.StatusInternalServerError, httpx.KindTransaction, "could not cancel devengado", httpx.PgDetail(err))
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func actor(r *http.Request) string {
	if p, ok := authz.PrincipalFromContext(r.Context()); ok {
		return p.Usuario
	}
	return ""
}
