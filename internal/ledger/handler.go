package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/luciosalva/control-presupuesto/internal/authz"
	"github.com/luciosalva/control-presupuesto/internal/platform/httpx"
)

// Handler wires the ledger HTTP endpoints.
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

// MountRoutes registers ledger routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/detalles", h.listLines)
	r.Post("/detalles", h.upsertLine)
	r.Get("/gastos", h.listExpenses)
	r.Post("/gastos", h.postExpense)
	r.Delete("/gastos/{id}", h.deleteExpense)

	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.RoleAdmin))
		r.Post("/reconducir", h.reallocate)
		r.Delete("/project", h.deleteProject)
	})
}

func (h *Handler) listLines(w http.ResponseWriter, r *http.Request) {
	proyecto := r.URL.Query().Get("proyecto")
	if proyecto == "" {
		proyecto = r.URL.Query().Get("project")
	}
	if proyecto == "" {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "proyecto is required", "")
		return
	}

	lines, err := h.service.ListLines(r.Context(), proyecto)
	if err != nil {
		h.logger.Error("list detalles failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": lines})
}

func (h *Handler) upsertLine(w http.ResponseWriter, r *http.Request) {
	var req UpsertLineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid JSON body", "")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error(), "")
		return
	}

	line, err := h.service.UpsertLine(r.Context(), req)
	if err != nil {
		h.logger.Error("upsert detalle failed", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, httpx.KindTransaction, "could not save detalle", httpx.PgDetail(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"detail": line})
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	proyecto := r.URL.Query().Get("proyecto")
	if proyecto == "" {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "proyecto is required", "")
		return
	}
	gastos, err := h.service.ListExpenses(r.Context(), proyecto, r.URL.Query().Get("partida"))
	if err != nil {
		h.logger.Error("list gastos failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": gastos})
}

func (h *Handler) postExpense(w http.ResponseWriter, r *http.Request) {
	var req PostExpenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid JSON body", "")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error(), "")
		return
	}

	line, gasto, err := h.service.PostExpense(r.Context(), req, actor(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidImporte):
			httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error(), "")
		case errors.Is(err, ErrLineNotFound):
			httpx.Error(w, http.StatusBadRequest, httpx.KindNotFound,
				"no budget line for proyecto/partida; create the detalle first", "")
		default:
			h.logger.Error("post gasto failed", slog.Any("error", err))
			httpx.Error(w, http.StatusInternalServerError, httpx.KindTransaction, "could not save gasto", httpx.PgDetail(err))
		}
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"gasto": gasto, "detail": line})
}

func (h *Handler) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid id", "")
		return
	}

	line, deleted, err := h.service.DeleteExpense(r.Context(), id, actor(r))
	if err != nil {
		h.logger.Error("delete gasto failed", slog.Any("error", err), slog.Int64("id", id))
		httpx.Error(w, http.StatusInternalServerError, httpx.KindTransaction, "could not delete gasto", httpx.PgDetail(err))
		return
	}
	resp := map[string]any{"deleted": deleted}
	if deleted {
		resp["detail"] = line
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) reallocate(w http.ResponseWriter, r *http.Request) {
	var req ReallocateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid JSON body", "")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error(), "")
		return
	}

	result, err := h.service.Reallocate(r.Context(), req, actor(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidImporte), errors.Is(err, ErrSamePartida):
			httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error(), "")
		case errors.Is(err, ErrLineNotFound):
			httpx.Error(w, http.StatusNotFound, httpx.KindNotFound, "partida origen has no budget line", "")
		default:
			h.logger.Error("reconducción failed", slog.Any("error", err))
			httpx.Error(w, http.StatusInternalServerError, httpx.KindTransaction, "could not apply reconducción", httpx.PgDetail(err))
		}
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	proyecto := r.URL.Query().Get("proyecto")
	if proyecto == "" {
		proyecto = r.URL.Query().Get("project")
	}
	if proyecto == "" {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "proyecto is required", "")
		return
	}

	deleted, err := h.service.DeleteProject(r.Context(), proyecto, actor(r))
	if err != nil {
		h.logger.Error("delete project failed", slog.Any("error", err), slog.String("proyecto", proyecto))
		httpx.Error(w, http.StatusInternalServerError, httpx.KindTransaction, "could not purge project", httpx.PgDetail(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted_rows": deleted})
}

func actor(r *http.Request) string {
	if p, ok := authz.PrincipalFromContext(r.Context()); ok {
		return p.Usuario
	}
	return ""
}
