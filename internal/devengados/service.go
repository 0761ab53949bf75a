package devengados

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/luciosalva/control-presupuesto/internal/comprometidos"
	"github.com/luciosalva/control-presupuesto/internal/folio"
	"github.com/luciosalva/control-presupuesto/internal/ledger"
	"github.com/luciosalva/control-presupuesto/internal/observability"
	"github.com/luciosalva/control-presupuesto/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByComprometido(ctx context.Context, comprometidoID int64) (Devengado, error)
}

// ComprometidoPort is the slice of the comprometidos service the devengado
// flow needs: loading the document it draws down.
type ComprometidoPort interface {
	Get(ctx context.Context, id int64) (comprometidos.Comprometido, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates devengado operations.
type Service struct {
	logger        *slog.Logger
	repo          RepositoryPort
	comprometidos ComprometidoPort
	audit         AuditPort
	metrics       *observability.Metrics
	now           func() time.Time
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, comp ComprometidoPort, audit AuditPort, metrics *observability.Metrics) *Service {
	return &Service{logger: logger, repo: repo, comprometidos: comp, audit: audit, metrics: metrics, now: time.Now}
}

// Save creates the devengado of a comprometido, or replaces its detail lines
// when one already exists. The devengado total may never exceed the committed
// amount; a breach rejects the whole request before anything is written. The
// document's expenses are posted onto the budget ledger in the same
// transaction, so the saved detalles and the ledger totals can never
// disagree. An existing devengado is editable only within the calendar month
// of its original fecha.
func (s *Service) Save(ctx context.Context, req SaveRequest, actor string) (Devengado, error) {
	fecha, err := time.Parse("2006-01-02", req.Fecha)
	if err != nil {
		return Devengado{}, fmt.Errorf("devengados: fecha inválida: %w", err)
	}

	comp, err := s.comprometidos.Get(ctx, req.ComprometidoID)
	if err != nil {
		return Devengado{}, err
	}

	detalles := make([]Detalle, 0, len(req.Detalles))
	var montoDevengado float64
	for _, d := range req.Detalles {
		detalles = append(detalles, Detalle{
			Renglon:     d.Renglon,
			Partida:     d.Partida,
			Factura:     d.Factura,
			Descripcion: d.Descripcion,
			Importe:     d.Importe,
		})
		montoDevengado += d.Importe
	}
	if montoDevengado > comp.Subtotal+1e-9 {
		return Devengado{}, ErrExcedeComprometido
	}

	var (
		result  Devengado
		created bool
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		existing, err := repo.GetByComprometidoForUpdate(ctx, req.ComprometidoID)
		switch {
		case err == nil:
			if existing.Estado == EstadoCancelado {
				return ErrCancelado
			}
			if !sameVigencia(existing.Fecha, s.now()) {
				return ErrFueraDeVigencia
			}
			// Replace: undo the previous posting, then post the new lines.
			if _, err := ledger.RemoveDevengadoExpenses(ctx, repo.Ledger(), existing.ID); err != nil {
				return fmt.Errorf("remove gastos previos: %w", err)
			}
			result = existing
		case errors.Is(err, ErrNotFound):
			num, code, err := repo.AllocateFolio(ctx, fecha)
			if err != nil {
				return err
			}
			result = Devengado{
				FolioNum:       num,
				NoDevengado:    code,
				ComprometidoID: comp.ID,
				Proyecto:       comp.Proyecto,
			}
			created = true
		default:
			return err
		}

		result.Fecha = fecha
		result.MontoComprometido = comp.Subtotal
		result.MontoDevengado = montoDevengado
		result.MontoLiberado = liberado(comp.Subtotal, montoDevengado)
		result.Estado = EstadoGuardado

		if result.ID == 0 {
			id, err := repo.InsertHeader(ctx, result)
			if err != nil {
				return fmt.Errorf("insert devengado: %w", err)
			}
			result.ID = id
		} else if err := repo.UpdateHeader(ctx, result); err != nil {
			return fmt.Errorf("update devengado: %w", err)
		}

		result.Detalles, err = repo.ReplaceDetalles(ctx, result.ID, detalles)
		if err != nil {
			return fmt.Errorf("replace detalles: %w", err)
		}

		keys := ledger.CatalogKeys{DGeneral: comp.DGeneral, DAuxiliar: comp.DAuxiliar, Fuente: comp.Fuente}
		for _, d := range result.Detalles {
			gasto := ledger.Expense{
				Proyecto:    comp.Proyecto,
				Partida:     d.Partida,
				Importe:     d.Importe,
				Fecha:       fecha,
				Descripcion: expenseDescription(result.NoDevengado, d),
				DevengadoID: &result.ID,
			}
			if _, _, err := ledger.ApplyExpense(ctx, repo.Ledger(), gasto, &keys); err != nil {
				return fmt.Errorf("post gasto: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Devengado{}, err
	}

	if created {
		s.metrics.FolioAllocated(string(folio.SerieDevengado))
	}
	s.recordAudit(ctx, actor, "devengado.save", fmt.Sprintf("%d", result.ID), map[string]any{
		"folio_num": result.FolioNum, "id_comprometido": req.ComprometidoID,
		"monto_devengado": montoDevengado, "monto_liberado": result.MontoLiberado,
	})
	return result, nil
}

// Cancel marks a devengado as cancelled and withdraws the expenses it posted,
// resynchronising every budget line they touched. Cancelling an already
// cancelled document is a no-op.
func (s *Service) Cancel(ctx context.Context, id int64, actor string) (Devengado, error) {
	var (
		result    Devengado
		cancelled bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		d, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if d.Estado == EstadoCancelado {
			result = d
			return nil
		}
		if _, err := ledger.RemoveDevengadoExpenses(ctx, repo.Ledger(), d.ID); err != nil {
			return fmt.Errorf("remove gastos: %w", err)
		}
		if err := repo.SetEstado(ctx, d.ID, EstadoCancelado); err != nil {
			return err
		}
		d.Estado = EstadoCancelado
		result = d
		cancelled = true
		return nil
	})
	if err != nil {
		return Devengado{}, err
	}
	if cancelled {
		s.recordAudit(ctx, actor, "devengado.cancel", fmt.Sprintf("%d", id), map[string]any{
			"folio_num": result.FolioNum, "monto_devengado": result.MontoDevengado,
		})
	}
	return result, nil
}

// Consulta returns the committed amounts of a comprometido together with its
// devengado when one exists.
func (s *Service) Consulta(ctx context.Context, comprometidoID int64) (ConsultaResponse, error) {
	comp, err := s.comprometidos.Get(ctx, comprometidoID)
	if err != nil {
		return ConsultaResponse{}, err
	}
	resp := ConsultaResponse{
		ComprometidoID:    comp.ID,
		NoComprometido:    comp.NoComprometido,
		Proyecto:          comp.Proyecto,
		MontoComprometido: comp.Subtotal,
	}
	dev, err := s.repo.GetByComprometido(ctx, comprometidoID)
	if errors.Is(err, ErrNotFound) {
		return resp, nil
	}
	if err != nil {
		return ConsultaResponse{}, err
	}
	resp.Devengado = &dev
	return resp, nil
}

func liberado(comprometido, devengado float64) float64 {
	if l := comprometido - devengado; l > 0 {
		return l
	}
	return 0
}

func sameVigencia(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func expenseDescription(code string, d Detalle) string {
	if d.Descripcion != "" {
		return d.Descripcion
	}
	return "Devengado " + code
}

func (s *Service) recordAudit(ctx context.Context, actor, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "devengado",
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed",
			slog.String("action", action),
			slog.String("error", err.Error()))
	}
}
