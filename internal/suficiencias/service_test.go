package suficiencias

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luciosalva/control-presupuesto/internal/folio"
)

type memoryRepo struct {
	nextNum  int64
	nextCons int64
	nextID   int64
	docs     map[int64]Suficiencia
	failTx   error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{docs: map[int64]Suficiencia{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.failTx != nil {
		return m.failTx
	}
	snapshotNum, snapshotCons, snapshotID := m.nextNum, m.nextCons, m.nextID
	if err := fn(ctx, (*memoryTx)(m)); err != nil {
		// Rollback: allocated numbers are released with the transaction.
		m.nextNum, m.nextCons, m.nextID = snapshotNum, snapshotCons, snapshotID
		return err
	}
	return nil
}

func (m *memoryRepo) PeekFolio(context.Context) (int64, error) {
	return m.nextNum + 1, nil
}

func (m *memoryRepo) GetByFolioNum(_ context.Context, numero int64) (Suficiencia, error) {
	for _, s := range m.docs {
		if s.FolioNum == numero {
			return s, nil
		}
	}
	return Suficiencia{}, ErrNotFound
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Suficiencia, error) {
	s, ok := m.docs[id]
	if !ok {
		return Suficiencia{}, ErrNotFound
	}
	return s, nil
}

type memoryTx memoryRepo

func (m *memoryTx) AllocateFolio(_ context.Context, fecha time.Time) (int64, string, error) {
	m.nextNum++
	m.nextCons++
	code := folio.Prefix(folio.SerieSuficiencia, fecha)
	return m.nextNum, code + pad4(m.nextCons), nil
}

func (m *memoryTx) InsertHeader(_ context.Context, s Suficiencia) (int64, error) {
	m.nextID++
	s.ID = m.nextID
	m.docs[s.ID] = s
	return s.ID, nil
}

func (m *memoryTx) InsertDetalle(_ context.Context, d Detalle) (int64, error) {
	m.nextID++
	d.ID = m.nextID
	s := m.docs[d.SuficienciaID]
	s.Detalles = append(s.Detalles, d)
	m.docs[d.SuficienciaID] = s
	return d.ID, nil
}

func pad4(n int64) string {
	digits := []byte{'0', '0', '0', '0'}
	for i := 3; i >= 0 && n > 0; i-- {
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits)
}

func validRequest() CreateRequest {
	return CreateRequest{
		Proyecto:  "P01",
		DGeneral:  "D01",
		DAuxiliar: "A02",
		Fuente:    "F1",
		Fecha:     "2026-05-12",
		Detalles: []CreateDetalleRecord{
			{Renglon: 1, Partida: "2111", Descripcion: "Papelería", Importe: 350.50},
			{Renglon: 2, Partida: "2141", Descripcion: "Consumibles", Importe: 149.50},
		},
	}
}

func TestCreateMintsFolioAndSubtotal(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, nil, nil)

	doc, err := svc.Create(context.Background(), validRequest(), "maria")
	require.NoError(t, err)

	require.Equal(t, int64(1), doc.FolioNum)
	require.Equal(t, "ECA-05-SP-0001", doc.NoSuficiencia)
	require.InDelta(t, 500.0, doc.Subtotal, 1e-9)
	require.Len(t, doc.Detalles, 2)
	require.Equal(t, doc.ID, doc.Detalles[0].SuficienciaID)
}

func TestCreateSequentialFolios(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, nil, nil)

	first, err := svc.Create(context.Background(), validRequest(), "maria")
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), validRequest(), "maria")
	require.NoError(t, err)

	require.Equal(t, first.FolioNum+1, second.FolioNum)
	require.Equal(t, "ECA-05-SP-0002", second.NoSuficiencia)
}

func TestCreateRejectsBadFecha(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, nil, nil)

	req := validRequest()
	req.Fecha = "12/05/2026"
	_, err := svc.Create(context.Background(), req, "maria")
	require.Error(t, err)
	require.Empty(t, repo.docs)
}

func TestNextFolioDoesNotConsume(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, nil, nil)

	peek, err := svc.NextFolio(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), peek)

	again, err := svc.NextFolio(context.Background())
	require.NoError(t, err)
	require.Equal(t, peek, again)

	doc, err := svc.Create(context.Background(), validRequest(), "maria")
	require.NoError(t, err)
	require.Equal(t, peek, doc.FolioNum)
}

func TestBuscarByFolio(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, nil, nil)

	doc, err := svc.Create(context.Background(), validRequest(), "maria")
	require.NoError(t, err)

	found, err := svc.Buscar(context.Background(), doc.FolioNum)
	require.NoError(t, err)
	require.Equal(t, doc.NoSuficiencia, found.NoSuficiencia)
	require.Len(t, found.Detalles, 2)

	_, err = svc.Buscar(context.Background(), 9999)
	require.ErrorIs(t, err, ErrNotFound)
}
