package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luciosalva/control-presupuesto/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
// Row locks taken here live until the surrounding transaction ends.
type TxRepository interface {
	GetLineForUpdate(ctx context.Context, proyecto, partida string) (BudgetLine, error)
	InsertLine(ctx context.Context, line BudgetLine) error
	UpdateLine(ctx context.Context, line BudgetLine) error
	InsertExpense(ctx context.Context, g Expense) (int64, error)
	GetExpense(ctx context.Context, id int64) (Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	DeleteExpensesByDevengado(ctx context.Context, devengadoID int64) ([]Expense, error)
	SumExpenses(ctx context.Context, proyecto, partida string) (float64, error)
	InsertReallocation(ctx context.Context, mov Reallocation) (int64, error)
	DeleteProject(ctx context.Context, proyecto string) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds a TxRepository to an externally managed transaction.
// Callers that open their own pgx.Tx use this to apply ledger effects inside
// it, so document writes and budget updates commit together.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListLines returns the budget lines of a project.
func (r *Repository) ListLines(ctx context.Context, proyecto string) ([]BudgetLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT proyecto, dgeneral, dauxiliar, fuente, partida,
presupuesto, total_gastado, total_reconducido, saldo_disponible
FROM presupuesto_detalle
WHERE proyecto = $1
ORDER BY partida ASC`, proyecto)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []BudgetLine{}
	for rows.Next() {
		var l BudgetLine
		if err := rows.Scan(&l.Proyecto, &l.DGeneral, &l.DAuxiliar, &l.Fuente, &l.Partida,
			&l.Presupuesto, &l.TotalGastado, &l.TotalReconducido, &l.SaldoDisponible); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ListExpenses returns the expenses of a (proyecto, partida) pair; an empty
// partida lists the whole project.
func (r *Repository) ListExpenses(ctx context.Context, proyecto, partida string) ([]Expense, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, proyecto, partida, importe, fecha, COALESCE(descripcion, ''), id_devengado
FROM gastos_detalle
WHERE proyecto = $1 AND ($2 = '' OR partida = $2)
ORDER BY fecha ASC, id ASC`, proyecto, partida)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	gastos := []Expense{}
	for rows.Next() {
		var g Expense
		if err := rows.Scan(&g.ID, &g.Proyecto, &g.Partida, &g.Importe, &g.Fecha, &g.Descripcion, &g.DevengadoID); err != nil {
			return nil, err
		}
		gastos = append(gastos, g)
	}
	return gastos, rows.Err()
}

func (r *txRepository) GetLineForUpdate(ctx context.Context, proyecto, partida string) (BudgetLine, error) {
	var l BudgetLine
	err := r.tx.QueryRow(ctx, `SELECT proyecto, dgeneral, dauxiliar, fuente, partida,
presupuesto, total_gastado, total_reconducido, saldo_disponible
FROM presupuesto_detalle
WHERE proyecto = $1 AND partida = $2
FOR UPDATE`, proyecto, partida).
		Scan(&l.Proyecto, &l.DGeneral, &l.DAuxiliar, &l.Fuente, &l.Partida,
			&l.Presupuesto, &l.TotalGastado, &l.TotalReconducido, &l.SaldoDisponible)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BudgetLine{Proyecto: proyecto, Partida: partida}, ErrLineNotFound
		}
		return BudgetLine{}, err
	}
	return l, nil
}

func (r *txRepository) InsertLine(ctx context.Context, line BudgetLine) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO presupuesto_detalle
(proyecto, dgeneral, dauxiliar, fuente, partida, presupuesto, total_gastado, total_reconducido, saldo_disponible)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		line.Proyecto, line.DGeneral, line.DAuxiliar, line.Fuente, line.Partida,
		line.Presupuesto, line.TotalGastado, line.TotalReconducido, line.SaldoDisponible)
	return err
}

func (r *txRepository) UpdateLine(ctx context.Context, line BudgetLine) error {
	_, err := r.tx.Exec(ctx, `UPDATE presupuesto_detalle
SET presupuesto=$3, total_gastado=$4, total_reconducido=$5, saldo_disponible=$6
WHERE proyecto=$1 AND partida=$2`,
		line.Proyecto, line.Partida,
		line.Presupuesto, line.TotalGastado, line.TotalReconducido, line.SaldoDisponible)
	return err
}

func (r *txRepository) InsertExpense(ctx context.Context, g Expense) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO gastos_detalle (proyecto, partida, importe, fecha, descripcion, id_devengado)
VALUES ($1,$2,$3,$4,NULLIF($5,''),$6) RETURNING id`,
		g.Proyecto, g.Partida, g.Importe, g.Fecha, g.Descripcion, g.DevengadoID).Scan(&id)
	return id, err
}

func (r *txRepository) GetExpense(ctx context.Context, id int64) (Expense, error) {
	var g Expense
	err := r.tx.QueryRow(ctx, `SELECT id, proyecto, partida, importe, fecha, COALESCE(descripcion, ''), id_devengado
FROM gastos_detalle WHERE id = $1`, id).
		Scan(&g.ID, &g.Proyecto, &g.Partida, &g.Importe, &g.Fecha, &g.Descripcion, &g.DevengadoID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expense{}, ErrExpenseNotFound
		}
		return Expense{}, err
	}
	return g, nil
}

func (r *txRepository) DeleteExpense(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM gastos_detalle WHERE id = $1`, id)
	return err
}

func (r *txRepository) DeleteExpensesByDevengado(ctx context.Context, devengadoID int64) ([]Expense, error) {
	rows, err := r.tx.Query(ctx, `DELETE FROM gastos_detalle WHERE id_devengado = $1
RETURNING id, proyecto, partida, importe, fecha, COALESCE(descripcion, ''), id_devengado`, devengadoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	deleted := []Expense{}
	for rows.Next() {
		var g Expense
		if err := rows.Scan(&g.ID, &g.Proyecto, &g.Partida, &g.Importe, &g.Fecha, &g.Descripcion, &g.DevengadoID); err != nil {
			return nil, err
		}
		deleted = append(deleted, g)
	}
	return deleted, rows.Err()
}

func (r *txRepository) SumExpenses(ctx context.Context, proyecto, partida string) (float64, error) {
	var total float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(importe), 0) FROM gastos_detalle
WHERE proyecto = $1 AND partida = $2`, proyecto, partida).Scan(&total)
	return total, err
}

func (r *txRepository) InsertReallocation(ctx context.Context, mov Reallocation) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO reconducciones (proyecto, partida_origen, partida_destino, monto, motivo, fecha)
VALUES ($1,$2,$3,$4,NULLIF($5,''),$6) RETURNING id`,
		mov.Proyecto, mov.PartidaOrigen, mov.PartidaDestino, mov.Monto, mov.Motivo, mov.Fecha).Scan(&id)
	return id, err
}

func (r *txRepository) DeleteProject(ctx context.Context, proyecto string) (int64, error) {
	if _, err := r.tx.Exec(ctx, `DELETE FROM gastos_detalle WHERE proyecto = $1`, proyecto); err != nil {
		return 0, err
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM presupuesto_detalle WHERE proyecto = $1`, proyecto)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
