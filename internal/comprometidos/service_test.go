package comprometidos

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luciosalva/control-presupuesto/internal/suficiencias"
)

type memoryRepo struct {
	nextNum int64
	nextID  int64
	docs    map[int64]Comprometido // keyed by id_suficiencia
	// raceDoc, when set, simulates a concurrent save winning between the
	// existence check and the insert.
	raceDoc *Comprometido
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{docs: map[int64]Comprometido{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, (*memoryTx)(m))
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Comprometido, error) {
	for _, c := range m.docs {
		if c.ID == id {
			return c, nil
		}
	}
	return Comprometido{}, ErrNotFound
}

func (m *memoryRepo) GetBySuficiencia(_ context.Context, suficienciaID int64) (Comprometido, error) {
	c, ok := m.docs[suficienciaID]
	if !ok {
		return Comprometido{}, ErrNotFound
	}
	return c, nil
}

func (m *memoryRepo) GetExpandedBySuficiencia(ctx context.Context, suficienciaID int64) (Expanded, error) {
	c, err := m.GetBySuficiencia(ctx, suficienciaID)
	if err != nil {
		return Expanded{}, err
	}
	return Expanded{Comprometido: c, ProyectoNombre: "Proyecto " + c.Proyecto}, nil
}

type memoryTx memoryRepo

func (m *memoryTx) GetBySuficiencia(ctx context.Context, suficienciaID int64) (Comprometido, error) {
	return (*memoryRepo)(m).GetBySuficiencia(ctx, suficienciaID)
}

func (m *memoryTx) AllocateFolio(_ context.Context, fecha time.Time) (int64, string, error) {
	m.nextNum++
	return m.nextNum, fmt.Sprintf("ECA-%02d-CP-%04d", int(fecha.Month()), m.nextNum), nil
}

func (m *memoryTx) InsertHeader(_ context.Context, c Comprometido) (int64, error) {
	if m.raceDoc != nil {
		m.docs[c.SuficienciaID] = *m.raceDoc
		m.raceDoc = nil
		return 0, ErrDuplicate
	}
	if _, exists := m.docs[c.SuficienciaID]; exists {
		return 0, ErrDuplicate
	}
	m.nextID++
	c.ID = m.nextID
	m.docs[c.SuficienciaID] = c
	return c.ID, nil
}

func (m *memoryTx) InsertDetalle(_ context.Context, d Detalle) (int64, error) {
	m.nextID++
	return m.nextID, nil
}

type staticSuficiencias map[int64]suficiencias.Suficiencia

func (s staticSuficiencias) Get(_ context.Context, id int64) (suficiencias.Suficiencia, error) {
	suf, ok := s[id]
	if !ok {
		return suficiencias.Suficiencia{}, suficiencias.ErrNotFound
	}
	return suf, nil
}

func seedSuficiencia() staticSuficiencias {
	return staticSuficiencias{
		7: {
			ID: 7, FolioNum: 7, NoSuficiencia: "ECA-05-SP-0007",
			Proyecto: "P01", DGeneral: "D01", DAuxiliar: "A02", Fuente: "F1",
			Subtotal: 500,
			Detalles: []suficiencias.Detalle{
				{Renglon: 1, Partida: "2111", Importe: 350},
				{Renglon: 2, Partida: "2141", Importe: 150},
			},
		},
	}
}

func TestCreateCarriesSuficienciaForward(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, seedSuficiencia(), nil, nil)

	result, err := svc.Create(context.Background(), CreateRequest{SuficienciaID: 7, Fecha: "2026-05-20"}, "maria")
	require.NoError(t, err)
	require.False(t, result.AlreadyExists)

	doc := result.Comprometido
	require.Equal(t, "ECA-05-CP-0001", doc.NoComprometido)
	require.Equal(t, "P01", doc.Proyecto)
	require.Equal(t, "D01", doc.DGeneral)
	require.Equal(t, EstadoGuardado, doc.Estado)
	require.InDelta(t, 500.0, doc.Subtotal, 1e-9)
	require.Len(t, doc.Detalles, 2)
}

func TestCreateWithEditedDetalles(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, seedSuficiencia(), nil, nil)

	req := CreateRequest{
		SuficienciaID: 7,
		Fecha:         "2026-05-20",
		Detalles: []CreateDetalleRecord{
			{Renglon: 1, Partida: "2111", Importe: 300},
		},
	}
	result, err := svc.Create(context.Background(), req, "maria")
	require.NoError(t, err)
	require.InDelta(t, 300.0, result.Comprometido.Subtotal, 1e-9)
	require.Len(t, result.Comprometido.Detalles, 1)
}

func TestCreateIsIdempotentPerSuficiencia(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, seedSuficiencia(), nil, nil)

	first, err := svc.Create(context.Background(), CreateRequest{SuficienciaID: 7, Fecha: "2026-05-20"}, "maria")
	require.NoError(t, err)

	second, err := svc.Create(context.Background(), CreateRequest{SuficienciaID: 7, Fecha: "2026-06-01"}, "maria")
	require.NoError(t, err)
	require.True(t, second.AlreadyExists)
	require.Equal(t, first.Comprometido.ID, second.Comprometido.ID)
	require.Equal(t, first.Comprometido.FolioNum, second.Comprometido.FolioNum)
}

func TestCreateLosesRaceReturnsWinner(t *testing.T) {
	repo := newMemoryRepo()
	winner := Comprometido{ID: 99, FolioNum: 42, NoComprometido: "ECA-05-CP-0042", SuficienciaID: 7}
	repo.raceDoc = &winner
	svc := NewService(nil, repo, seedSuficiencia(), nil, nil)

	result, err := svc.Create(context.Background(), CreateRequest{SuficienciaID: 7, Fecha: "2026-05-20"}, "maria")
	require.NoError(t, err)
	require.True(t, result.AlreadyExists)
	require.Equal(t, winner.ID, result.Comprometido.ID)
}

func TestCreateUnknownSuficiencia(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, seedSuficiencia(), nil, nil)

	_, err := svc.Create(context.Background(), CreateRequest{SuficienciaID: 123, Fecha: "2026-05-20"}, "maria")
	require.ErrorIs(t, err, suficiencias.ErrNotFound)
	require.Empty(t, repo.docs)
}

func TestBySuficienciaMissing(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, seedSuficiencia(), nil, nil)

	_, err := svc.BySuficiencia(context.Background(), 7)
	require.ErrorIs(t, err, ErrNotFound)
}
