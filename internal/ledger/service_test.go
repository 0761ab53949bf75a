package ledger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luciosalva/control-presupuesto/internal/shared"
)

type memoryRepo struct {
	lines       map[string]BudgetLine
	gastos      map[int64]Expense
	movimientos []Reallocation
	nextID      int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{lines: map[string]BudgetLine{}, gastos: map[int64]Expense{}}
}

func lineKey(proyecto, partida string) string {
	return proyecto + ":" + partida
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) ListLines(ctx context.Context, proyecto string) ([]BudgetLine, error) {
	var out []BudgetLine
	for _, l := range r.lines {
		if l.Proyecto == proyecto {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListExpenses(ctx context.Context, proyecto, partida string) ([]Expense, error) {
	var out []Expense
	for _, g := range r.gastos {
		if g.Proyecto == proyecto && (partida == "" || g.Partida == partida) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetLineForUpdate(ctx context.Context, proyecto, partida string) (BudgetLine, error) {
	if l, ok := tx.repo.lines[lineKey(proyecto, partida)]; ok {
		return l, nil
	}
	return BudgetLine{Proyecto: proyecto, Partida: partida}, ErrLineNotFound
}

func (tx *memoryTx) InsertLine(ctx context.Context, line BudgetLine) error {
	tx.repo.lines[lineKey(line.Proyecto, line.Partida)] = line
	return nil
}

func (tx *memoryTx) UpdateLine(ctx context.Context, line BudgetLine) error {
	tx.repo.lines[lineKey(line.Proyecto, line.Partida)] = line
	return nil
}

func (tx *memoryTx) InsertExpense(ctx context.Context, g Expense) (int64, error) {
	tx.repo.nextID++
	g.ID = tx.repo.nextID
	tx.repo.gastos[g.ID] = g
	return g.ID, nil
}

func (tx *memoryTx) GetExpense(ctx context.Context, id int64) (Expense, error) {
	if g, ok := tx.repo.gastos[id]; ok {
		return g, nil
	}
	return Expense{}, ErrExpenseNotFound
}

func (tx *memoryTx) DeleteExpense(ctx context.Context, id int64) error {
	delete(tx.repo.gastos, id)
	return nil
}

func (tx *memoryTx) DeleteExpensesByDevengado(ctx context.Context, devengadoID int64) ([]Expense, error) {
	var deleted []Expense
	for id, g := range tx.repo.gastos {
		if g.DevengadoID != nil && *g.DevengadoID == devengadoID {
			deleted = append(deleted, g)
			delete(tx.repo.gastos, id)
		}
	}
	return deleted, nil
}

func (tx *memoryTx) SumExpenses(ctx context.Context, proyecto, partida string) (float64, error) {
	var total float64
	for _, g := range tx.repo.gastos {
		if g.Proyecto == proyecto && g.Partida == partida {
			total += g.Importe
		}
	}
	return total, nil
}

func (tx *memoryTx) InsertReallocation(ctx context.Context, mov Reallocation) (int64, error) {
	tx.repo.movimientos = append(tx.repo.movimientos, mov)
	return int64(len(tx.repo.movimientos)), nil
}

func (tx *memoryTx) DeleteProject(ctx context.Context, proyecto string) (int64, error) {
	var deleted int64
	for key, l := range tx.repo.lines {
		if l.Proyecto == proyecto {
			delete(tx.repo.lines, key)
			deleted++
		}
	}
	for id, g := range tx.repo.gastos {
		if g.Proyecto == proyecto {
			delete(tx.repo.gastos, id)
		}
	}
	return deleted, nil
}

type staticResolver struct {
	keys CatalogKeys
	err  error
}

func (r staticResolver) Resolve(ctx context.Context, proyecto string) (CatalogKeys, error) {
	return r.keys, r.err
}

func seedLine(repo *memoryRepo, proyecto, partida string, presupuesto float64) {
	line := BudgetLine{
		Proyecto:    proyecto,
		DGeneral:    "D01",
		DAuxiliar:   "A02",
		Fuente:      "F1",
		Partida:     partida,
		Presupuesto: presupuesto,
	}
	line.Recompute()
	repo.lines[lineKey(proyecto, partida)] = line
}

func requireInvariant(t *testing.T, l BudgetLine) {
	t.Helper()
	require.InDelta(t, Saldo(l.Presupuesto, l.TotalGastado, l.TotalReconducido), l.SaldoDisponible, 0.0001)
}

func TestPostExpenseRecomputesSaldo(t *testing.T) {
	repo := newMemoryRepo()
	seedLine(repo, "A1", "5151", 1000)
	svc := NewService(nil, repo, nil, nil)
	ctx := context.Background()

	line, gasto, err := svc.PostExpense(ctx, PostExpenseRequest{Proyecto: "A1", Partida: "5151", Importe: 300}, "tester")
	require.NoError(t, err)
	require.NotZero(t, gasto.ID)
	require.InDelta(t, 300, line.TotalGastado, 0.0001)
	require.InDelta(t, 700, line.SaldoDisponible, 0.0001)
	requireInvariant(t, line)
}

func TestPostExpensePermitsOverdraft(t *testing.T) {
	repo := newMemoryRepo()
	seedLine(repo, "A1", "5151", 1000)
	svc := NewService(nil, repo, nil, nil)
	ctx := context.Background()

	_, _, err := svc.PostExpense(ctx, PostExpenseRequest{Proyecto: "A1", Partida: "5151", Importe: 300}, "")
	require.NoError(t, err)

	// No server-side cap: the line may be overdrawn.
	line, _, err := svc.PostExpense(ctx, PostExpenseRequest{Proyecto: "A1", Partida: "5151", Importe: 800}, "")
	require.NoError(t, err)
	require.InDelta(t, 1100, line.TotalGastado, 0.0001)
	require.InDelta(t, -100, line.SaldoDisponible, 0.0001)
	requireInvariant(t, line)
}

func TestPostExpenseRejectsNonPositiveImporte(t *testing.T) {
	repo := newMemoryRepo()
	seedLine(repo, "A1", "5151", 1000)
	svc := NewService(nil, repo, nil, nil)

	_, _, err := svc.PostExpense(context.Background(), PostExpenseRequest{Proyecto: "A1", Partida: "5151", Importe: 0}, "")
	require.ErrorIs(t, err, ErrInvalidImporte)
	require.Empty(t, repo.gastos)
}

func TestPostExpenseResolvesMissingLine(t *testing.T) {
	repo := newMemoryRepo()
	resolver := staticResolver{keys: CatalogKeys{DGeneral: "D01", DAuxiliar: "A02", Fuente: "F1"}}
	svc := NewService(nil, repo, resolver, nil)

	line, _, err := svc.PostExpense(context.Background(), PostExpenseRequest{Proyecto: "A1", Partida: "2611", Importe: 50}, "")
	require.NoError(t, err)
	require.Equal(t, "D01", line.DGeneral)
	require.InDelta(t, 0, line.Presupuesto, 0.0001)
	require.InDelta(t, 50, line.TotalGastado, 0.0001)
	require.InDelta(t, -50, line.SaldoDisponible, 0.0001)
}

func TestPostExpenseFailsWithoutLineOrResolver(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, nil, nil)

	_, _, err := svc.PostExpense(context.Background(), PostExpenseRequest{Proyecto: "A1", Partida: "2611", Importe: 50}, "")
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestDeleteExpenseResyncsLine(t *testing.T) {
	repo := newMemoryRepo()
	seedLine(repo, "A1", "5151", 1000)
	svc := NewService(nil, repo, nil, nil)
	ctx := context.Background()

	_, g1, err := svc.PostExpense(ctx, PostExpenseRequest{Proyecto: "A1", Partida: "5151", Importe: 300}, "")
	require.NoError(t, err)
	_, _, err = svc.PostExpense(ctx, PostExpenseRequest{Proyecto: "A1", Partida: "5151", Importe: 200}, "")
	require.NoError(t, err)

	line, deleted, err := svc.DeleteExpense(ctx, g1.ID, "")
	require.NoError(t, err)
	require.True(t, deleted)
	require.InDelta(t, 200, line.TotalGastado, 0.0001)
	require.InDelta(t, 800, line.SaldoDisponible, 0.0001)
	requireInvariant(t, line)
}

func TestDeleteExpenseUnknownIDIsNoop(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, nil, nil)

	_, deleted, err := svc.DeleteExpense(context.Background(), 9999, "")
	require.NoError(t, err)
	require.False(t, deleted)
}

type flakyExpenseRepo struct {
	*memoryRepo
	getErr error
}

func (r *flakyExpenseRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &flakyExpenseTx{memoryTx: &memoryTx{repo: r.memoryRepo}, getErr: r.getErr})
}

type flakyExpenseTx struct {
	*memoryTx
	getErr error
}

func (tx *flakyExpenseTx) GetExpense(ctx context.Context, id int64) (Expense, error) {
	return Expense{}, tx.getErr
}

func TestDeleteExpenseSurfacesLookupFailure(t *testing.T) {
	repo := &flakyExpenseRepo{
		memoryRepo: newMemoryRepo(),
		getErr:     errors.New("connection reset by peer"),
	}
	svc := NewService(nil, repo, nil, nil)

	_, deleted, err := svc.DeleteExpense(context.Background(), 1, "")
	require.Error(t, err)
	require.False(t, deleted)
}

type failingAudit struct{}

func (failingAudit) Record(context.Context, shared.AuditLog) error {
	return errors.New("audit store down")
}

func TestAuditFailureWarnsButDoesNotFailOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	repo := newMemoryRepo()
	seedLine(repo, "A1", "5151", 1000)
	svc := NewService(logger, repo, nil, failingAudit{})

	line, gasto, err := svc.PostExpense(context.Background(), PostExpenseRequest{Proyecto: "A1", Partida: "5151", Importe: 100}, "tester")
	require.NoError(t, err)
	require.NotZero(t, gasto.ID)
	require.InDelta(t, 100, line.TotalGastado, 0.0001)
	require.Contains(t, buf.String(), "audit record failed")
	require.Contains(t, buf.String(), "audit store down")
}

func TestReallocateConservesTotals(t *testing.T) {
	repo := newMemoryRepo()
	seedLine(repo, "A1", "5151", 1000)
	seedLine(repo, "A1", "5191", 500)
	svc := NewService(nil, repo, nil, nil)

	result, err := svc.Reallocate(context.Background(), ReallocateRequest{
		Proyecto: "A1", PartidaOrigen: "5151", PartidaDestino: "5191", Monto: 200,
	}, "tester")
	require.NoError(t, err)
	require.False(t, result.Negativo)
	require.False(t, result.DestinoNuevo)
	require.InDelta(t, -200, result.Origen.TotalReconducido, 0.0001)
	require.InDelta(t, 200, result.Destino.TotalReconducido, 0.0001)
	require.InDelta(t, 0, result.Origen.TotalReconducido+result.Destino.TotalReconducido, 0.0001)
	require.InDelta(t, 800, result.Origen.SaldoDisponible, 0.0001)
	require.InDelta(t, 700, result.Destino.SaldoDisponible, 0.0001)
	requireInvariant(t, result.Origen)
	requireInvariant(t, result.Destino)
	require.Len(t, repo.movimientos, 1)
}

func TestReallocateCreatesDestinoWithInheritedKeys(t *testing.T) {
	repo := newMemoryRepo()
	seedLine(repo, "A1", "5151", 1000)
	svc := NewService(nil, repo, nil, nil)

	result, err := svc.Reallocate(context.Background(), ReallocateRequest{
		Proyecto: "A1", PartidaOrigen: "5151", PartidaDestino: "5191", Monto: 200,
	}, "")
	require.NoError(t, err)
	require.True(t, result.DestinoNuevo)
	require.Equal(t, "D01", result.Destino.DGeneral)
	require.Equal(t, "A02", result.Destino.DAuxiliar)
	require.Equal(t, "F1", result.Destino.Fuente)
	require.InDelta(t, 200, result.Destino.TotalReconducido, 0.0001)
	require.InDelta(t, 200, result.Destino.SaldoDisponible, 0.0001)
}

func TestReallocateFlagsNegativeOrigin(t *testing.T) {
	repo := newMemoryRepo()
	seedLine(repo, "A1", "5151", 100)
	svc := NewService(nil, repo, nil, nil)

	result, err := svc.Reallocate(context.Background(), ReallocateRequest{
		Proyecto: "A1", PartidaOrigen: "5151", PartidaDestino: "5191", Monto: 300,
	}, "")
	require.NoError(t, err, "overdraft is flagged, never rejected")
	require.True(t, result.Negativo)
	require.InDelta(t, -200, result.Origen.SaldoDisponible, 0.0001)
}

func TestReallocateMissingOrigin(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, nil, nil)

	_, err := svc.Reallocate(context.Background(), ReallocateRequest{
		Proyecto: "A1", PartidaOrigen: "5151", PartidaDestino: "5191", Monto: 10,
	}, "")
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestReallocateSamePartida(t *testing.T) {
	repo := newMemoryRepo()
	seedLine(repo, "A1", "5151", 100)
	svc := NewService(nil, repo, nil, nil)

	_, err := svc.Reallocate(context.Background(), ReallocateRequest{
		Proyecto: "A1", PartidaOrigen: "5151", PartidaDestino: "5151", Monto: 10,
	}, "")
	require.ErrorIs(t, err, ErrSamePartida)
}

func TestUpsertLineCreateThenUpdate(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, nil, nil)
	ctx := context.Background()

	line, err := svc.UpsertLine(ctx, UpsertLineRequest{
		Proyecto: "A1", DGeneral: "D01", DAuxiliar: "A02", Fuente: "F1", Partida: "5151", Presupuesto: 1000,
	})
	require.NoError(t, err)
	require.InDelta(t, 1000, line.SaldoDisponible, 0.0001)

	_, _, err = svc.PostExpense(ctx, PostExpenseRequest{Proyecto: "A1", Partida: "5151", Importe: 400}, "")
	require.NoError(t, err)

	// Raising the allocation keeps the accumulated gasto.
	line, err = svc.UpsertLine(ctx, UpsertLineRequest{
		Proyecto: "A1", DGeneral: "D01", DAuxiliar: "A02", Fuente: "F1", Partida: "5151", Presupuesto: 2000,
	})
	require.NoError(t, err)
	require.InDelta(t, 400, line.TotalGastado, 0.0001)
	require.InDelta(t, 1600, line.SaldoDisponible, 0.0001)
	requireInvariant(t, line)
}

func TestDeleteProjectPurgesLines(t *testing.T) {
	repo := newMemoryRepo()
	seedLine(repo, "A1", "5151", 1000)
	seedLine(repo, "A1", "5191", 500)
	seedLine(repo, "B2", "5151", 800)
	svc := NewService(nil, repo, nil, nil)

	deleted, err := svc.DeleteProject(context.Background(), "A1", "admin")
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	remaining, err := svc.ListLines(context.Background(), "B2")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestRemoveDevengadoExpensesResyncs(t *testing.T) {
	repo := newMemoryRepo()
	seedLine(repo, "A1", "5151", 1000)
	ctx := context.Background()

	devID := int64(7)
	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, _, err := ApplyExpense(ctx, tx, Expense{Proyecto: "A1", Partida: "5151", Importe: 250, DevengadoID: &devID}, nil)
		return err
	})
	require.NoError(t, err)

	err = repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines, err := RemoveDevengadoExpenses(ctx, tx, devID)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		require.InDelta(t, 0, lines[0].TotalGastado, 0.0001)
		require.InDelta(t, 1000, lines[0].SaldoDisponible, 0.0001)
		return nil
	})
	require.NoError(t, err)
}
