package catalogos

import (
	"context"

	"github.com/luciosalva/control-presupuesto/internal/ledger"
)

// RepositoryPort abstracts catalog reads for the service.
type RepositoryPort interface {
	List(ctx context.Context, catalogo string) ([]Item, error)
	ListProyectos(ctx context.Context) ([]Proyecto, error)
	GetProyecto(ctx context.Context, clave string) (Proyecto, error)
}

// Service serves catalog reads through the cache.
type Service struct {
	repo  RepositoryPort
	cache *Cache
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// List returns a flat catalog, cached.
func (s *Service) List(ctx context.Context, catalogo string) ([]Item, error) {
	if _, ok := flatCatalogs[catalogo]; !ok {
		return nil, ErrUnknownCatalog
	}
	key, err := s.cache.BuildKey(ctx, "catalogos", catalogo)
	if err != nil {
		return nil, err
	}
	var items []Item
	err = s.cache.FetchJSON(ctx, key, &items, func(ctx context.Context) (any, error) {
		return s.repo.List(ctx, catalogo)
	})
	return items, err
}

// ListProyectos returns the project catalog, cached.
func (s *Service) ListProyectos(ctx context.Context) ([]Proyecto, error) {
	key, err := s.cache.BuildKey(ctx, "catalogos", CatalogProyectos)
	if err != nil {
		return nil, err
	}
	var proyectos []Proyecto
	err = s.cache.FetchJSON(ctx, key, &proyectos, func(ctx context.Context) (any, error) {
		return s.repo.ListProyectos(ctx)
	})
	return proyectos, err
}

// Invalidate drops every cached catalog.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Resolver resolves a project's catalog keys for the ledger. Uncached: it
// participates in ledger transactions and must see current data.
type Resolver struct {
	repo RepositoryPort
}

// NewResolver builds a Resolver.
func NewResolver(repo RepositoryPort) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve implements ledger.KeyResolver.
func (r *Resolver) Resolve(ctx context.Context, proyecto string) (ledger.CatalogKeys, error) {
	p, err := r.repo.GetProyecto(ctx, proyecto)
	if err != nil {
		return ledger.CatalogKeys{}, err
	}
	return ledger.CatalogKeys{DGeneral: p.DGeneral, DAuxiliar: p.DAuxiliar, Fuente: p.Fuente}, nil
}
