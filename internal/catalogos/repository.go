package catalogos

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads catalog tables from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns the entries of a flat catalog.
func (r *Repository) List(ctx context.Context, catalogo string) ([]Item, error) {
	table, ok := flatCatalogs[catalogo]
	if !ok {
		return nil, ErrUnknownCatalog
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT clave, descripcion FROM %s ORDER BY clave ASC`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.Clave, &it.Descripcion); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListProyectos returns the project catalog.
func (r *Repository) ListProyectos(ctx context.Context) ([]Proyecto, error) {
	rows, err := r.pool.Query(ctx, `SELECT clave, nombre, dgeneral, dauxiliar, fuente, COALESCE(programa, '')
FROM cat_proyectos ORDER BY clave ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	proyectos := []Proyecto{}
	for rows.Next() {
		var p Proyecto
		if err := rows.Scan(&p.Clave, &p.Nombre, &p.DGeneral, &p.DAuxiliar, &p.Fuente, &p.Programa); err != nil {
			return nil, err
		}
		proyectos = append(proyectos, p)
	}
	return proyectos, rows.Err()
}

// GetProyecto returns one project row.
func (r *Repository) GetProyecto(ctx context.Context, clave string) (Proyecto, error) {
	var p Proyecto
	err := r.pool.QueryRow(ctx, `SELECT clave, nombre, dgeneral, dauxiliar, fuente, COALESCE(programa, '')
FROM cat_proyectos WHERE clave = $1`, clave).
		Scan(&p.Clave, &p.Nombre, &p.DGeneral, &p.DAuxiliar, &p.Fuente, &p.Programa)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Proyecto{}, ErrProyectoNotFound
		}
		return Proyecto{}, err
	}
	return p, nil
}
