package suficiencias

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/luciosalva/control-presupuesto/internal/folio"
	"github.com/luciosalva/control-presupuesto/internal/observability"
	"github.com/luciosalva/control-presupuesto/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	PeekFolio(ctx context.Context) (int64, error)
	GetByFolioNum(ctx context.Context, numero int64) (Suficiencia, error)
	Get(ctx context.Context, id int64) (Suficiencia, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates suficiencia operations.
type Service struct {
	logger  *slog.Logger
	repo    RepositoryPort
	audit   AuditPort
	metrics *observability.Metrics
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, audit AuditPort, metrics *observability.Metrics) *Service {
	return &Service{logger: logger, repo: repo, audit: audit, metrics: metrics}
}

// Create saves a suficiencia with its details. The folio number and the
// document code are minted inside the same transaction as the inserts, so a
// failed save never burns a visible number. Subtotal is derived server-side
// from the detail importes.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor string) (Suficiencia, error) {
	fecha, err := time.Parse("2006-01-02", req.Fecha)
	if err != nil {
		return Suficiencia{}, fmt.Errorf("suficiencias: fecha inválida: %w", err)
	}

	doc := Suficiencia{
		Proyecto:      req.Proyecto,
		DGeneral:      req.DGeneral,
		DAuxiliar:     req.DAuxiliar,
		Fuente:        req.Fuente,
		Programa:      req.Programa,
		Fecha:         fecha,
		Justificacion: req.Justificacion,
	}
	for _, d := range req.Detalles {
		doc.Subtotal += d.Importe
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		num, code, err := repo.AllocateFolio(ctx, fecha)
		if err != nil {
			return err
		}
		doc.FolioNum = num
		doc.NoSuficiencia = code

		id, err := repo.InsertHeader(ctx, doc)
		if err != nil {
			return fmt.Errorf("insert suficiencia: %w", err)
		}
		doc.ID = id

		for _, d := range req.Detalles {
			det := Detalle{
				SuficienciaID: id,
				Renglon:       d.Renglon,
				Partida:       d.Partida,
				Justificacion: d.Justificacion,
				Descripcion:   d.Descripcion,
				Importe:       d.Importe,
			}
			detID, err := repo.InsertDetalle(ctx, det)
			if err != nil {
				return fmt.Errorf("insert detalle: %w", err)
			}
			det.ID = detID
			doc.Detalles = append(doc.Detalles, det)
		}
		return nil
	})
	if err != nil {
		return Suficiencia{}, err
	}

	s.metrics.FolioAllocated(string(folio.SerieSuficiencia))
	s.recordAudit(ctx, actor, "suficiencia.create", fmt.Sprintf("%d", doc.ID), map[string]any{
		"folio_num": doc.FolioNum, "no_suficiencia": doc.NoSuficiencia, "subtotal": doc.Subtotal,
	})
	return doc, nil
}

// NextFolio previews the folio number the next save would take. Concurrent
// saves may make the preview stale; the save itself mints the real number.
func (s *Service) NextFolio(ctx context.Context) (int64, error) {
	return s.repo.PeekFolio(ctx)
}

// Buscar loads a suficiencia by its folio number, details included.
func (s *Service) Buscar(ctx context.Context, numero int64) (Suficiencia, error) {
	return s.repo.GetByFolioNum(ctx, numero)
}

// Get loads a suficiencia by id. Used by the Comprometido flow to copy the
// document forward.
func (s *Service) Get(ctx context.Context, id int64) (Suficiencia, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) recordAudit(ctx context.Context, actor, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "suficiencia",
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed",
			slog.String("action", action),
			slog.String("error", err.Error()))
	}
}
