package comprometidos

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/luciosalva/control-presupuesto/internal/authz"
	"github.com/luciosalva/control-presupuesto/internal/platform/httpx"
	"github.com/luciosalva/control-presupuesto/internal/suficiencias"
)

// Handler wires the comprometido HTTP endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers comprometido routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/comprometido", h.create)
	r.Get("/comprometido/por-suficiencia/{id}", h.bySuficiencia)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid JSON body", "")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, err.Error(), "")
		return
	}

	result, err := h.service.Create(r.Context(), req, actor(r))
	if err != nil {
		if errors.Is(err, suficiencias.ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, httpx.KindNotFound, "suficiencia no encontrada", "")
			return
		}
		h.logger.Error("create comprometido failed", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, httpx.KindTransaction, "could not save comprometido", httpx.PgDetail(err))
		return
	}

	status := http.StatusCreated
	if result.AlreadyExists {
		status = http.StatusOK
	}
	httpx.JSON(w, status, CreateResponse{
		ID:             result.Comprometido.ID,
		FolioNum:       result.Comprometido.FolioNum,
		NoComprometido: result.Comprometido.NoComprometido,
		AlreadyExists:  result.AlreadyExists,
	})
}

func (h *Handler) bySuficiencia(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "invalid id", "")
		return
	}

	doc, err := h.service.BySuficiencia(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, httpx.KindNotFound, "la suficiencia no tiene comprometido", "")
			return
		}
		h.logger.Error("load comprometido failed", slog.Any("error", err), slog.Int64("id_suficiencia", id))
		httpx.Error(w, http.StatusInternalServerError, httpx.KindTransaction, "could not load comprometido", httpx.PgDetail(err))
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
