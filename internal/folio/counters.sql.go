package folio

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by pgx.Tx and *pgxpool.Pool. Document repositories
// bind an SQLCounters to their open transaction so the counter row lock is
// held until the document insert commits or rolls back.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SQLCounters persists counters in folio_counters / folio_sequences.
type SQLCounters struct {
	q Querier
}

// NewSQLCounters constructs the store over a transaction or pool.
func NewSQLCounters(q Querier) *SQLCounters {
	return &SQLCounters{q: q}
}

// Increment bumps the (prefijo, anio) consecutivo under the row lock the
// upsert takes, starting at 1 for a fresh key.
func (s *SQLCounters) Increment(ctx context.Context, prefijo string, anio int) (int64, error) {
	var n int64
	err := s.q.QueryRow(ctx, `INSERT INTO folio_counters (prefijo, anio, consecutivo)
VALUES ($1, $2, 1)
ON CONFLICT (prefijo, anio) DO UPDATE SET consecutivo = folio_counters.consecutivo + 1
RETURNING consecutivo`, prefijo, anio).Scan(&n)
	return n, err
}

// IncrementSerie bumps the global folio_num of a series.
func (s *SQLCounters) IncrementSerie(ctx context.Context, serie string) (int64, error) {
	var n int64
	err := s.q.QueryRow(ctx, `INSERT INTO folio_sequences (serie, ultimo)
VALUES ($1, 1)
ON CONFLICT (serie) DO UPDATE SET ultimo = folio_sequences.ultimo + 1
RETURNING ultimo`, serie).Scan(&n)
	return n, err
}

// PeekSerie reads the next folio_num without locking the row.
func (s *SQLCounters) PeekSerie(ctx context.Context, serie string) (int64, error) {
	var ultimo int64
	err := s.q.QueryRow(ctx, `SELECT ultimo FROM folio_sequences WHERE serie = $1`, serie).Scan(&ultimo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 1, nil
		}
		return 0, err
	}
	return ultimo + 1, nil
}
