package comprometidos

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luciosalva/control-presupuesto/internal/folio"
	"github.com/luciosalva/control-presupuesto/internal/platform/db"
)

var (
	// ErrNotFound is returned when no comprometido matches the lookup.
	ErrNotFound = errors.New("comprometido no encontrado")
	// ErrDuplicate signals that another comprometido already references the
	// suficiencia. The unique index on id_comprometido's parent column is the
	// authoritative guard against concurrent double saves.
	ErrDuplicate = errors.New("la suficiencia ya tiene comprometido")
)

// Repository persists comprometidos in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	GetBySuficiencia(ctx context.Context, suficienciaID int64) (Comprometido, error)
	AllocateFolio(ctx context.Context, fecha time.Time) (num int64, code string, err error)
	InsertHeader(ctx context.Context, c Comprometido) (int64, error)
	InsertDetalle(ctx context.Context, d Detalle) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("comprometidos repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// Get loads a full comprometido by primary key.
func (r *Repository) Get(ctx context.Context, id int64) (Comprometido, error) {
	c, err := scanComprometido(r.pool.QueryRow(ctx, selectComprometido+` WHERE id = $1`, id))
	if err != nil {
		return Comprometido{}, err
	}
	c.Detalles, err = listDetalles(ctx, r.pool, c.ID)
	return c, err
}

// GetBySuficiencia loads the comprometido that references a suficiencia.
func (r *Repository) GetBySuficiencia(ctx context.Context, suficienciaID int64) (Comprometido, error) {
	c, err := scanComprometido(r.pool.QueryRow(ctx, selectComprometido+` WHERE id_suficiencia = $1`, suficienciaID))
	if err != nil {
		return Comprometido{}, err
	}
	c.Detalles, err = listDetalles(ctx, r.pool, c.ID)
	return c, err
}

// GetExpandedBySuficiencia is GetBySuficiencia with the catalog descriptions
// joined in for display.
func (r *Repository) GetExpandedBySuficiencia(ctx context.Context, suficienciaID int64) (Expanded, error) {
	var e Expanded
	err := r.pool.QueryRow(ctx, `SELECT c.id, c.folio_num, c.no_comprometido, c.id_suficiencia,
c.proyecto, c.dgeneral, c.dauxiliar, c.fuente, COALESCE(c.programa, ''), c.fecha, c.subtotal, c.estado, c.created_at,
COALESCE(p.nombre, ''), COALESCE(dg.descripcion, ''), COALESCE(da.descripcion, ''),
COALESCE(f.descripcion, ''), COALESCE(pr.descripcion, '')
FROM comprometidos c
LEFT JOIN cat_proyectos p ON p.clave = c.proyecto
LEFT JOIN cat_dgeneral dg ON dg.clave = c.dgeneral
LEFT JOIN cat_dauxiliar da ON da.clave = c.dauxiliar
LEFT JOIN cat_fuentes f ON f.clave = c.fuente
LEFT JOIN cat_programas pr ON pr.clave = c.programa
WHERE c.id_suficiencia = $1`, suficienciaID).
		Scan(&e.ID, &e.FolioNum, &e.NoComprometido, &e.SuficienciaID,
			&e.Proyecto, &e.DGeneral, &e.DAuxiliar, &e.Fuente, &e.Programa, &e.Fecha, &e.Subtotal, &e.Estado, &e.CreatedAt,
			&e.ProyectoNombre, &e.DGeneralDesc, &e.DAuxiliarDesc, &e.FuenteDesc, &e.ProgramaDesc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expanded{}, ErrNotFound
		}
		return Expanded{}, err
	}
	e.Detalles, err = listDetalles(ctx, r.pool, e.ID)
	return e, err
}

const selectComprometido = `SELECT id, folio_num, no_comprometido, id_suficiencia,
proyecto, dgeneral, dauxiliar, fuente, COALESCE(programa, ''), fecha, subtotal, estado, created_at
FROM comprometidos`

func scanComprometido(row pgx.Row) (Comprometido, error) {
	var c Comprometido
	err := row.Scan(&c.ID, &c.FolioNum, &c.NoComprometido, &c.SuficienciaID,
		&c.Proyecto, &c.DGeneral, &c.DAuxiliar, &c.Fuente, &c.Programa, &c.Fecha, &c.Subtotal, &c.Estado, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Comprometido{}, ErrNotFound
	}
	return c, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listDetalles(ctx context.Context, q querier, comprometidoID int64) ([]Detalle, error) {
	rows, err := q.Query(ctx, `SELECT id, id_comprometido, renglon, partida, COALESCE(descripcion, ''), importe
FROM comprometidos_detalle WHERE id_comprometido = $1
ORDER BY renglon ASC, id ASC`, comprometidoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	detalles := []Detalle{}
	for rows.Next() {
		var d Detalle
		if err := rows.Scan(&d.ID, &d.ComprometidoID, &d.Renglon, &d.Partida, &d.Descripcion, &d.Importe); err != nil {
			return nil, err
		}
		detalles = append(detalles, d)
	}
	return detalles, rows.Err()
}

func (r *txRepository) GetBySuficiencia(ctx context.Context, suficienciaID int64) (Comprometido, error) {
	c, err := scanComprometido(r.tx.QueryRow(ctx, selectComprometido+` WHERE id_suficiencia = $1`, suficienciaID))
	if err != nil {
		return Comprometido{}, err
	}
	c.Detalles, err = listDetalles(ctx, r.tx, c.ID)
	return c, err
}

func (r *txRepository) AllocateFolio(ctx context.Context, fecha time.Time) (int64, string, error) {
	alloc := folio.NewAllocator(folio.NewSQLCounters(r.tx))
	num, err := alloc.NextNum(ctx, folio.SerieComprometido)
	if err != nil {
		return 0, "", err
	}
	code, _, err := alloc.NextCode(ctx, folio.SerieComprometido, fecha)
	if err != nil {
		return 0, "", err
	}
	return num, code, nil
}

// suficienciaConflictConstraint names the unique constraint on
// comprometidos.id_suficiencia. Only a violation of this constraint means a
// concurrent writer already created the comprometido; other unique
// violations (folio_num, the per-year code index) are real failures.
const suficienciaConflictConstraint = "comprometidos_id_suficiencia_key"

func isSuficienciaConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == "23505" &&
		pgErr.ConstraintName == suficienciaConflictConstraint
}

func (r *txRepository) InsertHeader(ctx context.Context, c Comprometido) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO comprometidos
(folio_num, no_comprometido, id_suficiencia, proyecto, dgeneral, dauxiliar, fuente, programa, fecha, subtotal, estado)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),$9,$10,$11) RETURNING id`,
		c.FolioNum, c.NoComprometido, c.SuficienciaID, c.Proyecto, c.DGeneral, c.DAuxiliar,
		c.Fuente, c.Programa, c.Fecha, c.Subtotal, c.Estado).Scan(&id)
	if err != nil {
		if isSuficienciaConflict(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) InsertDetalle(ctx context.Context, d Detalle) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO comprometidos_detalle
(id_comprometido, renglon, partida, descripcion, importe)
VALUES ($1,$2,$3,NULLIF($4,''),$5) RETURNING id`,
		d.ComprometidoID, d.Renglon, d.Partida, d.Descripcion, d.Importe).Scan(&id)
	return id, err
}
