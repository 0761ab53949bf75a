package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/luciosalva/control-presupuesto/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListLines(ctx context.Context, proyecto string) ([]BudgetLine, error)
	ListExpenses(ctx context.Context, proyecto, partida string) ([]Expense, error)
}

// KeyResolver discovers the catalog keys of a project when a budget line has
// to be created implicitly. Backed by the proyectos catalog; replaces the
// legacy sibling-row scans.
type KeyResolver interface {
	Resolve(ctx context.Context, proyecto string) (CatalogKeys, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates ledger operations.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	resolver KeyResolver
	audit    AuditPort
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, resolver KeyResolver, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, resolver: resolver, audit: audit}
}

// ListLines returns the budget lines of a project.
func (s *Service) ListLines(ctx context.Context, proyecto string) ([]BudgetLine, error) {
	if proyecto == "" {
		return nil, errors.New("ledger: proyecto required")
	}
	return s.repo.ListLines(ctx, proyecto)
}

// ListExpenses returns the expenses for a project, optionally one partida.
func (s *Service) ListExpenses(ctx context.Context, proyecto, partida string) ([]Expense, error) {
	if proyecto == "" {
		return nil, errors.New("ledger: proyecto required")
	}
	return s.repo.ListExpenses(ctx, proyecto, partida)
}

// UpsertLine creates a budget line or updates its allocated presupuesto,
// recomputing saldo from the stored totals.
func (s *Service) UpsertLine(ctx context.Context, req UpsertLineRequest) (BudgetLine, error) {
	var result BudgetLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		line, err := repo.GetLineForUpdate(ctx, req.Proyecto, req.Partida)
		if errors.Is(err, ErrLineNotFound) {
			line = BudgetLine{
				Proyecto:    req.Proyecto,
				DGeneral:    req.DGeneral,
				DAuxiliar:   req.DAuxiliar,
				Fuente:      req.Fuente,
				Partida:     req.Partida,
				Presupuesto: req.Presupuesto,
			}
			line.Recompute()
			if err := repo.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert line: %w", err)
			}
			result = line
			return nil
		}
		if err != nil {
			return err
		}
		line.Presupuesto = req.Presupuesto
		line.Recompute()
		if err := repo.UpdateLine(ctx, line); err != nil {
			return fmt.Errorf("update line: %w", err)
		}
		result = line
		return nil
	})
	return result, err
}

// PostExpense appends an expense and resynchronises the owning line. When the
// line does not exist yet, the catalog keys are resolved and a zeroed line is
// created; the posting is rejected only when resolution fails too. Overdraft
// is permitted: the resulting saldo may go negative.
func (s *Service) PostExpense(ctx context.Context, req PostExpenseRequest, actor string) (BudgetLine, Expense, error) {
	if req.Importe <= 0 {
		return BudgetLine{}, Expense{}, ErrInvalidImporte
	}
	gasto := Expense{
		Proyecto:    req.Proyecto,
		Partida:     req.Partida,
		Importe:     req.Importe,
		Fecha:       expenseDate(req.Fecha),
		Descripcion: req.Descripcion,
	}

	var line BudgetLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		var err error
		line, gasto, err = ApplyExpense(ctx, repo, gasto, s.resolveKeys(ctx, req.Proyecto))
		return err
	})
	if err != nil {
		return BudgetLine{}, Expense{}, err
	}

	s.recordAudit(ctx, actor, "gasto.post", fmt.Sprintf("%d", gasto.ID), map[string]any{
		"proyecto": req.Proyecto, "partida": req.Partida, "importe": req.Importe,
	})
	return line, gasto, nil
}

// DeleteExpense removes an expense and resynchronises its line. Deleting an
// unknown id is a no-op, not an error.
func (s *Service) DeleteExpense(ctx context.Context, id int64, actor string) (BudgetLine, bool, error) {
	var (
		line    BudgetLine
		deleted bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		gasto, err := repo.GetExpense(ctx, id)
		if errors.Is(err, ErrExpenseNotFound) {
			// Unknown id: nothing to do.
			return nil
		}
		if err != nil {
			return err
		}
		if err := repo.DeleteExpense(ctx, id); err != nil {
			return err
		}
		deleted = true
		line, err = resyncLine(ctx, repo, gasto.Proyecto, gasto.Partida)
		if errors.Is(err, ErrLineNotFound) {
			// Orphan expense; the delete alone is enough.
			return nil
		}
		return err
	})
	if err != nil {
		return BudgetLine{}, false, err
	}
	if deleted {
		s.recordAudit(ctx, actor, "gasto.delete", fmt.Sprintf("%d", id), nil)
	}
	return line, deleted, nil
}

// Reallocate transfers budget between two partidas of one project in a
// single transaction. The origin may end up overdrawn; that is surfaced
// through the Negativo flag, never rejected.
func (s *Service) Reallocate(ctx context.Context, req ReallocateRequest, actor string) (ReallocateResult, error) {
	if req.Monto <= 0 {
		return ReallocateResult{}, ErrInvalidImporte
	}
	if req.PartidaOrigen == req.PartidaDestino {
		return ReallocateResult{}, ErrSamePartida
	}

	var result ReallocateResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		origen, err := repo.GetLineForUpdate(ctx, req.Proyecto, req.PartidaOrigen)
		if err != nil {
			return err
		}

		destino, err := repo.GetLineForUpdate(ctx, req.Proyecto, req.PartidaDestino)
		if errors.Is(err, ErrLineNotFound) {
			destino = BudgetLine{
				Proyecto:  req.Proyecto,
				DGeneral:  origen.DGeneral,
				DAuxiliar: origen.DAuxiliar,
				Fuente:    origen.Fuente,
				Partida:   req.PartidaDestino,
			}
			destino.Recompute()
			if err := repo.InsertLine(ctx, destino); err != nil {
				return fmt.Errorf("create destino: %w", err)
			}
			result.DestinoNuevo = true
		} else if err != nil {
			return err
		}

		origen.TotalReconducido -= req.Monto
		destino.TotalReconducido += req.Monto
		origen.Recompute()
		destino.Recompute()

		if err := repo.UpdateLine(ctx, origen); err != nil {
			return fmt.Errorf("update origen: %w", err)
		}
		if err := repo.UpdateLine(ctx, destino); err != nil {
			return fmt.Errorf("update destino: %w", err)
		}

		mov := Reallocation{
			Proyecto:       req.Proyecto,
			PartidaOrigen:  req.PartidaOrigen,
			PartidaDestino: req.PartidaDestino,
			Monto:          req.Monto,
			Motivo:         req.Motivo,
			Fecha:          expenseDate(req.Fecha),
		}
		if _, err := repo.InsertReallocation(ctx, mov); err != nil {
			return fmt.Errorf("insert reconducción: %w", err)
		}

		result.Origen = origen
		result.Destino = destino
		result.Negativo = origen.SaldoDisponible < 0
		return nil
	})
	if err != nil {
		return ReallocateResult{}, err
	}

	s.recordAudit(ctx, actor, "reconduccion.post", req.Proyecto, map[string]any{
		"origen": req.PartidaOrigen, "destino": req.PartidaDestino, "monto": req.Monto,
	})
	return result, nil
}

// DeleteProject purges every budget line and expense of a project.
func (s *Service) DeleteProject(ctx context.Context, proyecto, actor string) (int64, error) {
	if proyecto == "" {
		return 0, errors.New("ledger: proyecto required")
	}
	var deleted int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		var err error
		deleted, err = repo.DeleteProject(ctx, proyecto)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, actor, "proyecto.purge", proyecto, map[string]any{"deleted_rows": deleted})
	return deleted, nil
}

// ApplyExpense is the posting algorithm shared with the document chain: it
// runs against an already-open transaction so a Devengado save and its
// ledger effect commit or roll back together. keys may be nil when implicit
// line creation is not wanted.
func ApplyExpense(ctx context.Context, repo TxRepository, gasto Expense, keys *CatalogKeys) (BudgetLine, Expense, error) {
	line, err := repo.GetLineForUpdate(ctx, gasto.Proyecto, gasto.Partida)
	if errors.Is(err, ErrLineNotFound) {
		if keys == nil {
			return BudgetLine{}, Expense{}, ErrLineNotFound
		}
		line = BudgetLine{
			Proyecto:  gasto.Proyecto,
			DGeneral:  keys.DGeneral,
			DAuxiliar: keys.DAuxiliar,
			Fuente:    keys.Fuente,
			Partida:   gasto.Partida,
		}
		line.Recompute()
		if err := repo.InsertLine(ctx, line); err != nil {
			return BudgetLine{}, Expense{}, fmt.Errorf("create line: %w", err)
		}
	} else if err != nil {
		return BudgetLine{}, Expense{}, err
	}

	id, err := repo.InsertExpense(ctx, gasto)
	if err != nil {
		return BudgetLine{}, Expense{}, fmt.Errorf("insert gasto: %w", err)
	}
	gasto.ID = id

	line, err = resync(ctx, repo, line)
	if err != nil {
		return BudgetLine{}, Expense{}, err
	}
	return line, gasto, nil
}

// RemoveDevengadoExpenses deletes the expenses a Devengado posted and
// resynchronises every line they touched. Shared with the cancellation flow.
func RemoveDevengadoExpenses(ctx context.Context, repo TxRepository, devengadoID int64) ([]BudgetLine, error) {
	deleted, err := repo.DeleteExpensesByDevengado(ctx, devengadoID)
	if err != nil {
		return nil, err
	}

	touched := map[string][2]string{}
	for _, g := range deleted {
		touched[g.Proyecto+"\x00"+g.Partida] = [2]string{g.Proyecto, g.Partida}
	}

	lines := make([]BudgetLine, 0, len(touched))
	for _, key := range touched {
		line, err := resyncLine(ctx, repo, key[0], key[1])
		if errors.Is(err, ErrLineNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// resyncLine locks a line and re-derives its totals from gastos_detalle.
func resyncLine(ctx context.Context, repo TxRepository, proyecto, partida string) (BudgetLine, error) {
	line, err := repo.GetLineForUpdate(ctx, proyecto, partida)
	if err != nil {
		return BudgetLine{}, err
	}
	return resync(ctx, repo, line)
}

// resync re-sums the full expense history of a line instead of adjusting
// counters incrementally, so the stored totals cannot drift.
func resync(ctx context.Context, repo TxRepository, line BudgetLine) (BudgetLine, error) {
	total, err := repo.SumExpenses(ctx, line.Proyecto, line.Partida)
	if err != nil {
		return BudgetLine{}, fmt.Errorf("sum gastos: %w", err)
	}
	line.TotalGastado = total
	line.Recompute()
	if err := repo.UpdateLine(ctx, line); err != nil {
		return BudgetLine{}, fmt.Errorf("update line: %w", err)
	}
	return line, nil
}

func (s *Service) resolveKeys(ctx context.Context, proyecto string) *CatalogKeys {
	if s.resolver == nil {
		return nil
	}
	keys, err := s.resolver.Resolve(ctx, proyecto)
	if err != nil {
		return nil
	}
	return &keys
}

func (s *Service) recordAudit(ctx context.Context, actor, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "ledger",
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed",
			slog.String("action", action),
			slog.String("error", err.Error()))
	}
}

func expenseDate(t *time.Time) time.Time {
	if t != nil && !t.IsZero() {
		return *t
	}
	return time.Now()
}
