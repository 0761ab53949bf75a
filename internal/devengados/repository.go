package devengados

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luciosalva/control-presupuesto/internal/folio"
	"github.com/luciosalva/control-presupuesto/internal/ledger"
	"github.com/luciosalva/control-presupuesto/internal/platform/db"
)

// Repository persists devengados in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
// Ledger returns a ledger repository bound to the same transaction, so the
// document write and its expense postings commit or roll back together.
type TxRepository interface {
	GetByComprometidoForUpdate(ctx context.Context, comprometidoID int64) (Devengado, error)
	GetForUpdate(ctx context.Context, id int64) (Devengado, error)
	AllocateFolio(ctx context.Context, fecha time.Time) (num int64, code string, err error)
	InsertHeader(ctx context.Context, d Devengado) (int64, error)
	UpdateHeader(ctx context.Context, d Devengado) error
	ReplaceDetalles(ctx context.Context, devengadoID int64, detalles []Detalle) ([]Detalle, error)
	SetEstado(ctx context.Context, id int64, estado string) error
	Ledger() ledger.TxRepository
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("devengados repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const selectDevengado = `SELECT id, folio_num, no_devengado, id_comprometido, proyecto, fecha,
monto_comprometido, monto_devengado, monto_liberado, estado, created_at
FROM devengados`

func scanDevengado(row pgx.Row) (Devengado, error) {
	var d Devengado
	err := row.Scan(&d.ID, &d.FolioNum, &d.NoDevengado, &d.ComprometidoID, &d.Proyecto, &d.Fecha,
		&d.MontoComprometido, &d.MontoDevengado, &d.MontoLiberado, &d.Estado, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Devengado{}, ErrNotFound
	}
	return d, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listDetalles(ctx context.Context, q querier, devengadoID int64) ([]Detalle, error) {
	rows, err := q.Query(ctx, `SELECT id, id_devengado, renglon, partida,
COALESCE(factura, ''), COALESCE(descripcion, ''), importe
FROM devengados_detalle WHERE id_devengado = $1
ORDER BY renglon ASC, id ASC`, devengadoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	detalles := []Detalle{}
	for rows.Next() {
		var d Detalle
		if err := rows.Scan(&d.ID, &d.DevengadoID, &d.Renglon, &d.Partida,
			&d.Factura, &d.Descripcion, &d.Importe); err != nil {
			return nil, err
		}
		detalles = append(detalles, d)
	}
	return detalles, rows.Err()
}

// GetByComprometido loads the devengado of a comprometido, details included.
func (r *Repository) GetByComprometido(ctx context.Context, comprometidoID int64) (Devengado, error) {
	d, err := scanDevengado(r.pool.QueryRow(ctx, selectDevengado+` WHERE id_comprometido = $1`, comprometidoID))
	if err != nil {
		return Devengado{}, err
	}
	d.Detalles, err = listDetalles(ctx, r.pool, d.ID)
	return d, err
}

func (r *txRepository) GetByComprometidoForUpdate(ctx context.Context, comprometidoID int64) (Devengado, error) {
	d, err := scanDevengado(r.tx.QueryRow(ctx, selectDevengado+` WHERE id_comprometido = $1 FOR UPDATE`, comprometidoID))
	if err != nil {
		return Devengado{}, err
	}
	d.Detalles, err = listDetalles(ctx, r.tx, d.ID)
	return d, err
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Devengado, error) {
	d, err := scanDevengado(r.tx.QueryRow(ctx, selectDevengado+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Devengado{}, err
	}
	d.Detalles, err = listDetalles(ctx, r.tx, d.ID)
	return d, err
}

func (r *txRepository) AllocateFolio(ctx context.Context, fecha time.Time) (int64, string, error) {
	alloc := folio.NewAllocator(folio.NewSQLCounters(r.tx))
	num, err := alloc.NextNum(ctx, folio.SerieDevengado)
	if err != nil {
		return 0, "", err
	}
	code, _, err := alloc.NextCode(ctx, folio.SerieDevengado, fecha)
	if err != nil {
		return 0, "", err
	}
	return num, code, nil
}

func (r *txRepository) InsertHeader(ctx context.Context, d Devengado) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO devengados
(folio_num, no_devengado, id_comprometido, proyecto, fecha, monto_comprometido, monto_devengado, monto_liberado, estado)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		d.FolioNum, d.NoDevengado, d.ComprometidoID, d.Proyecto, d.Fecha,
		d.MontoComprometido, d.MontoDevengado, d.MontoLiberado, d.Estado).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateHeader(ctx context.Context, d Devengado) error {
	_, err := r.tx.Exec(ctx, `UPDATE devengados
SET fecha=$2, monto_comprometido=$3, monto_devengado=$4, monto_liberado=$5, estado=$6
WHERE id=$1`,
		d.ID, d.Fecha, d.MontoComprometido, d.MontoDevengado, d.MontoLiberado, d.Estado)
	return err
}

func (r *txRepository) ReplaceDetalles(ctx context.Context, devengadoID int64, detalles []Detalle) ([]Detalle, error) {
	if _, err := r.tx.Exec(ctx, `DELETE FROM devengados_detalle WHERE id_devengado = $1`, devengadoID); err != nil {
		return nil, err
	}
	saved := make([]Detalle, 0, len(detalles))
	for _, d := range detalles {
		d.DevengadoID = devengadoID
		err := r.tx.QueryRow(ctx, `INSERT INTO devengados_detalle
(id_devengado, renglon, partida, factura, descripcion, importe)
VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),$6) RETURNING id`,
			d.DevengadoID, d.Renglon, d.Partida, d.Factura, d.Descripcion, d.Importe).Scan(&d.ID)
		if err != nil {
			return nil, err
		}
		saved = append(saved, d)
	}
	return saved, nil
}

func (r *txRepository) SetEstado(ctx context.Context, id int64, estado string) error {
	_, err := r.tx.Exec(ctx, `UPDATE devengados SET estado = $2 WHERE id = $1`, id, estado)
	return err
}

func (r *txRepository) Ledger() ledger.TxRepository {
	return ledger.NewTxRepository(r.tx)
}
