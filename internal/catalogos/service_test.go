package catalogos

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	listCalls int
	items     []Item
	proyectos map[string]Proyecto
}

func (m *mockRepo) List(ctx context.Context, catalogo string) ([]Item, error) {
	m.listCalls++
	return m.items, nil
}

func (m *mockRepo) ListProyectos(ctx context.Context) ([]Proyecto, error) {
	out := make([]Proyecto, 0, len(m.proyectos))
	for _, p := range m.proyectos {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockRepo) GetProyecto(ctx context.Context, clave string) (Proyecto, error) {
	if p, ok := m.proyectos[clave]; ok {
		return p, nil
	}
	return Proyecto{}, ErrProyectoNotFound
}

func newTestService(t *testing.T, repo *mockRepo) (*Service, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewService(repo, NewCache(client, time.Minute))
	return svc, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestListUsesCache(t *testing.T) {
	repo := &mockRepo{items: []Item{{Clave: "5151", Descripcion: "Equipo de cómputo"}}}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()
	ctx := context.Background()

	first, err := svc.List(ctx, CatalogPartidas)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.List(ctx, CatalogPartidas)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, repo.listCalls, "second read must come from cache")
}

func TestInvalidateBumpsVersion(t *testing.T) {
	repo := &mockRepo{items: []Item{{Clave: "F1", Descripcion: "Recursos propios"}}}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()
	ctx := context.Background()

	_, err := svc.List(ctx, CatalogFuentes)
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx))

	_, err = svc.List(ctx, CatalogFuentes)
	require.NoError(t, err)
	require.Equal(t, 2, repo.listCalls, "invalidation must force a reload")
}

func TestListRejectsUnknownCatalog(t *testing.T) {
	repo := &mockRepo{}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	_, err := svc.List(context.Background(), "no-such-catalog")
	require.ErrorIs(t, err, ErrUnknownCatalog)
}

func TestResolverReturnsProjectKeys(t *testing.T) {
	repo := &mockRepo{proyectos: map[string]Proyecto{
		"A1": {Clave: "A1", Nombre: "Obra pública", DGeneral: "D01", DAuxiliar: "A02", Fuente: "F1"},
	}}
	resolver := NewResolver(repo)

	keys, err := resolver.Resolve(context.Background(), "A1")
	require.NoError(t, err)
	require.Equal(t, "D01", keys.DGeneral)
	require.Equal(t, "A02", keys.DAuxiliar)
	require.Equal(t, "F1", keys.Fuente)

	_, err = resolver.Resolve(context.Background(), "ZZ")
	require.ErrorIs(t, err, ErrProyectoNotFound)
}
