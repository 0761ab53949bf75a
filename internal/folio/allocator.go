// Package folio mints the sequential document numbers used across the
// budget document chain.
//
// Two sequences exist per document series: the human visible code
// "ECA-MM-XX-NNNN", whose 4-digit consecutivo resets per (prefix, calendar
// year), and folio_num, a monotonic reference that never resets. The legacy
// system serialized allocation with an exclusive table lock and a MAX scan;
// here each (prefix, year) owns a counter row, so concurrent inserts of
// unrelated series no longer block each other while the uniqueness and
// contiguity guarantee is unchanged.
package folio

import (
	"context"
	"fmt"
	"time"
)

// Serie identifies a document series.
type Serie string

const (
	SerieSuficiencia  Serie = "SP"
	SerieComprometido Serie = "CP"
	SerieDevengado    Serie = "DV"
)

// Prefix builds the code prefix for a series and date: "ECA-MM-XX-".
func Prefix(serie Serie, fecha time.Time) string {
	return fmt.Sprintf("ECA-%02d-%s-", int(fecha.Month()), serie)
}

// Counters is the persistence primitive behind the allocator. Increment must
// be atomic per key: no two callers may observe the same value.
type Counters interface {
	// Increment advances the (prefijo, anio) consecutivo and returns it,
	// starting at 1 for a key never seen before.
	Increment(ctx context.Context, prefijo string, anio int) (int64, error)
	// IncrementSerie advances the global folio_num of a series.
	IncrementSerie(ctx context.Context, serie string) (int64, error)
	// PeekSerie returns the folio_num the next allocation would yield,
	// without consuming it.
	PeekSerie(ctx context.Context, serie string) (int64, error)
}

// Allocator mints codes and folio numbers on top of a Counters store.
type Allocator struct {
	counters Counters
}

// NewAllocator constructs an Allocator.
func NewAllocator(c Counters) *Allocator {
	return &Allocator{counters: c}
}

// NextCode allocates the next code for the series at the given date, e.g.
// "ECA-05-SP-0001". Must run inside the transaction that inserts the
// document so a rollback releases the number's lock with it.
func (a *Allocator) NextCode(ctx context.Context, serie Serie, fecha time.Time) (string, int64, error) {
	prefijo := Prefix(serie, fecha)
	n, err := a.counters.Increment(ctx, prefijo, fecha.Year())
	if err != nil {
		return "", 0, fmt.Errorf("folio: next code %s: %w", prefijo, err)
	}
	return fmt.Sprintf("%s%04d", prefijo, n), n, nil
}

// NextNum allocates the next global folio_num for the series.
func (a *Allocator) NextNum(ctx context.Context, serie Serie) (int64, error) {
	n, err := a.counters.IncrementSerie(ctx, string(serie))
	if err != nil {
		return 0, fmt.Errorf("folio: next num %s: %w", serie, err)
	}
	return n, nil
}

// PeekNum previews the next folio_num without consuming it. The value is a
// hint for forms; the authoritative number is minted on save.
func (a *Allocator) PeekNum(ctx context.Context, serie Serie) (int64, error) {
	n, err := a.counters.PeekSerie(ctx, string(serie))
	if err != nil {
		return 0, fmt.Errorf("folio: peek num %s: %w", serie, err)
	}
	return n, nil
}
