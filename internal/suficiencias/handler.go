package suficiencias

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

// Handler wires the suficiencias HTTP endpoints.
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

// MountRoutes registers suficiencia routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/suficiencias", h.create)
	r.Get("/suficiencias/next-folio", h.nextFolio)
	r.Get("/suficiencias/buscar", h.buscar)
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

	doc, err := h.service.Create(r.Context(), req, actor(r))
	if err != nil {
		h.logger.Error("create suficiencia failed", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, httpx.KindTransaction, "could not save suficiencia", httpx.PgDetail(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, CreateResponse{
		ID:            doc.ID,
		FolioNum:      doc.FolioNum,
		NoSuficiencia: doc.NoSuficiencia,
		Subtotal:      doc.Subtotal,
	})
}

func (h *Handler) nextFolio(w http.ResponseWriter, r *http.Request) {
	num, err := h.service.NextFolio(r.Context())
	if err != nil {
		h.logger.Error("peek folio failed", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, httpx.KindTransaction, "could not read folio counter", httpx.PgDetail(err))
		return
	}
	httpx.JSON(w, http.StatusOK, NextFolioResponse{FolioNum: num})
}

func (h *Handler) buscar(w http.ResponseWriter, r *http.Request) {
	numero, err := strconv.ParseInt(r.URL.Query().Get("numero"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.KindValidation, "numero is required", "")
		return
	}

	doc, err := h.service.Buscar(r.Context(), numero)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, httpx.KindNotFound, "suficiencia no encontrada", "")
			return
		}
		h.logger.Error("buscar suficiencia failed", slog.Any("error", err), slog.Int64("numero", numero))
		httpx.Error(w, http.StatusInternalServerError, httpx.KindTransaction, "could not load suficiencia", httpx.PgDetail(err))
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
