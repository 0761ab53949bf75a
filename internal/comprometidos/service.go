package comprometidos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/luciosalva/control-presupuesto/internal/folio"
	"github.com/luciosalva/control-presupuesto/internal/observability"
	"github.com/luciosalva/control-presupuesto/internal/shared"
	"github.com/luciosalva/control-presupuesto/internal/suficiencias"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Comprometido, error)
	GetBySuficiencia(ctx context.Context, suficienciaID int64) (Comprometido, error)
	GetExpandedBySuficiencia(ctx context.Context, suficienciaID int64) (Expanded, error)
}

// SuficienciaPort is the slice of the suficiencias service the comprometido
// flow needs: loading the document it commits.
type SuficienciaPort interface {
	Get(ctx context.Context, id int64) (suficiencias.Suficiencia, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CreateResult is Create's outcome: the stored document and whether it
// pre-existed the call.
type CreateResult struct {
	Comprometido  Comprometido
	AlreadyExists bool
}

// Service coordinates comprometido operations.
type Service struct {
	logger       *slog.Logger
	repo         RepositoryPort
	suficiencias SuficienciaPort
	audit        AuditPort
	metrics      *observability.Metrics
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, suf SuficienciaPort, audit AuditPort, metrics *observability.Metrics) *Service {
	return &Service{logger: logger, repo: repo, suficiencias: suf, audit: audit, metrics: metrics}
}

// Create commits a suficiencia. At most one comprometido may exist per
// suficiencia: a repeat call returns the existing document untouched with
// AlreadyExists set, whether the repeat is sequential or racing the first
// save.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor string) (CreateResult, error) {
	fecha, err := time.Parse("2006-01-02", req.Fecha)
	if err != nil {
		return CreateResult{}, fmt.Errorf("comprometidos: fecha inválida: %w", err)
	}

	suf, err := s.suficiencias.Get(ctx, req.SuficienciaID)
	if err != nil {
		return CreateResult{}, err
	}

	doc := Comprometido{
		SuficienciaID: suf.ID,
		Proyecto:      suf.Proyecto,
		DGeneral:      suf.DGeneral,
		DAuxiliar:     suf.DAuxiliar,
		Fuente:        suf.Fuente,
		Programa:      suf.Programa,
		Fecha:         fecha,
		Estado:        EstadoGuardado,
	}
	detalles := carriedDetalles(req, suf)
	for _, d := range detalles {
		doc.Subtotal += d.Importe
	}

	var result CreateResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		existing, err := repo.GetBySuficiencia(ctx, req.SuficienciaID)
		if err == nil {
			result = CreateResult{Comprometido: existing, AlreadyExists: true}
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		num, code, err := repo.AllocateFolio(ctx, fecha)
		if err != nil {
			return err
		}
		doc.FolioNum = num
		doc.NoComprometido = code

		id, err := repo.InsertHeader(ctx, doc)
		if err != nil {
			return err
		}
		doc.ID = id

		for _, d := range detalles {
			d.ComprometidoID = id
			detID, err := repo.InsertDetalle(ctx, d)
			if err != nil {
				return fmt.Errorf("insert detalle: %w", err)
			}
			d.ID = detID
			doc.Detalles = append(doc.Detalles, d)
		}
		result = CreateResult{Comprometido: doc}
		return nil
	})
	if errors.Is(err, ErrDuplicate) {
		// Lost the race against a concurrent save: the winner's document is
		// the answer.
		existing, getErr := s.repo.GetBySuficiencia(ctx, req.SuficienciaID)
		if getErr != nil {
			return CreateResult{}, getErr
		}
		return CreateResult{Comprometido: existing, AlreadyExists: true}, nil
	}
	if err != nil {
		return CreateResult{}, err
	}

	if !result.AlreadyExists {
		s.metrics.FolioAllocated(string(folio.SerieComprometido))
		s.recordAudit(ctx, actor, "comprometido.create", fmt.Sprintf("%d", result.Comprometido.ID), map[string]any{
			"folio_num": result.Comprometido.FolioNum, "id_suficiencia": req.SuficienciaID,
		})
	}
	return result, nil
}

// Get loads a comprometido by id. Used by the Devengado flow.
func (s *Service) Get(ctx context.Context, id int64) (Comprometido, error) {
	return s.repo.Get(ctx, id)
}

// BySuficiencia loads the comprometido of a suficiencia with catalog text
// joined in for display.
func (s *Service) BySuficiencia(ctx context.Context, suficienciaID int64) (Expanded, error) {
	return s.repo.GetExpandedBySuficiencia(ctx, suficienciaID)
}

func carriedDetalles(req CreateRequest, suf suficiencias.Suficiencia) []Detalle {
	if len(req.Detalles) > 0 {
		detalles := make([]Detalle, 0, len(req.Detalles))
		for _, d := range req.Detalles {
			detalles = append(detalles, Detalle{
				Renglon:     d.Renglon,
				Partida:     d.Partida,
				Descripcion: d.Descripcion,
				Importe:     d.Importe,
			})
		}
		return detalles
	}
	detalles := make([]Detalle, 0, len(suf.Detalles))
	for _, d := range suf.Detalles {
		detalles = append(detalles, Detalle{
			Renglon:     d.Renglon,
			Partida:     d.Partida,
			Descripcion: d.Descripcion,
			Importe:     d.Importe,
		})
	}
	return detalles
}

func (s *Service) recordAudit(ctx context.Context, actor, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "comprometido",
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed",
			slog.String("action", action),
			slog.String("error", err.Error()))
	}
}
