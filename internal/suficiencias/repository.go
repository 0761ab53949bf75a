package suficiencias

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luciosalva/control-presupuesto/internal/folio"
	"github.com/luciosalva/control-presupuesto/internal/platform/db"
)

// ErrNotFound is returned when no suficiencia matches the lookup.
var ErrNotFound = errors.New("suficiencia no encontrada")

// Repository persists suficiencias in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
// AllocateFolio consumes the next value of the shared SP sequence; the
// consumed number is only visible outside once the transaction commits.
type TxRepository interface {
	AllocateFolio(ctx context.Context, fecha time.Time) (num int64, code string, err error)
	InsertHeader(ctx context.Context, s Suficiencia) (int64, error)
	InsertDetalle(ctx context.Context, d Detalle) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("suficiencias repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// PeekFolio reports the folio number the next saved suficiencia would take
// without consuming it.
func (r *Repository) PeekFolio(ctx context.Context) (int64, error) {
	alloc := folio.NewAllocator(folio.NewSQLCounters(r.pool))
	return alloc.PeekNum(ctx, folio.SerieSuficiencia)
}

// GetByFolioNum loads a full suficiencia, details included, by folio number.
func (r *Repository) GetByFolioNum(ctx context.Context, numero int64) (Suficiencia, error) {
	var s Suficiencia
	err := r.pool.QueryRow(ctx, `SELECT id, folio_num, no_suficiencia, proyecto, dgeneral, dauxiliar,
fuente, COALESCE(programa, ''), fecha, COALESCE(justificacion, ''), subtotal, created_at
FROM suficiencias WHERE folio_num = $1`, numero).
		Scan(&s.ID, &s.FolioNum, &s.NoSuficiencia, &s.Proyecto, &s.DGeneral, &s.DAuxiliar,
			&s.Fuente, &s.Programa, &s.Fecha, &s.Justificacion, &s.Subtotal, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Suficiencia{}, ErrNotFound
		}
		return Suficiencia{}, err
	}
	s.Detalles, err = r.listDetalles(ctx, s.ID)
	return s, err
}

// Get loads a full suficiencia by primary key.
func (r *Repository) Get(ctx context.Context, id int64) (Suficiencia, error) {
	var s Suficiencia
	err := r.pool.QueryRow(ctx, `SELECT id, folio_num, no_suficiencia, proyecto, dgeneral, dauxiliar,
fuente, COALESCE(programa, ''), fecha, COALESCE(justificacion, ''), subtotal, created_at
FROM suficiencias WHERE id = $1`, id).
		Scan(&s.ID, &s.FolioNum, &s.NoSuficiencia, &s.Proyecto, &s.DGeneral, &s.DAuxiliar,
			&s.Fuente, &s.Programa, &s.Fecha, &s.Justificacion, &s.Subtotal, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Suficiencia{}, ErrNotFound
		}
		return Suficiencia{}, err
	}
	s.Detalles, err = r.listDetalles(ctx, s.ID)
	return s, err
}

func (r *Repository) listDetalles(ctx context.Context, suficienciaID int64) ([]Detalle, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, id_suficiencia, renglon, partida,
COALESCE(justificacion, ''), COALESCE(descripcion, ''), importe
FROM suficiencias_detalle WHERE id_suficiencia = $1
ORDER BY renglon ASC, id ASC`, suficienciaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	detalles := []Detalle{}
	for rows.Next() {
		var d Detalle
		if err := rows.Scan(&d.ID, &d.SuficienciaID, &d.Renglon, &d.Partida,
			&d.Justificacion, &d.Descripcion, &d.Importe); err != nil {
			return nil, err
		}
		detalles = append(detalles, d)
	}
	return detalles, rows.Err()
}

func (r *txRepository) AllocateFolio(ctx context.Context, fecha time.Time) (int64, string, error) {
	alloc := folio.NewAllocator(folio.NewSQLCounters(r.tx))
	num, err := alloc.NextNum(ctx, folio.SerieSuficiencia)
	if err != nil {
		return 0, "", err
	}
	code, _, err := alloc.NextCode(ctx, folio.SerieSuficiencia, fecha)
	if err != nil {
		return 0, "", err
	}
	return num, code, nil
}

func (r *txRepository) InsertHeader(ctx context.Context, s Suficiencia) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO suficiencias
(folio_num, no_suficiencia, proyecto, dgeneral, dauxiliar, fuente, programa, fecha, justificacion, subtotal)
VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),$8,NULLIF($9,''),$10) RETURNING id`,
		s.FolioNum, s.NoSuficiencia, s.Proyecto, s.DGeneral, s.DAuxiliar, s.Fuente,
		s.Programa, s.Fecha, s.Justificacion, s.Subtotal).Scan(&id)
	return id, err
}

func (r *txRepository) InsertDetalle(ctx context.Context, d Detalle) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO suficiencias_detalle
(id_suficiencia, renglon, partida, justificacion, descripcion, importe)
VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),$6) RETURNING id`,
		d.SuficienciaID, d.Renglon, d.Partida, d.Justificacion, d.Descripcion, d.Importe).Scan(&id)
	return id, err
}
