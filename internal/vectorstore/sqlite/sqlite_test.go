package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runrag/internal/domain"
	"runrag/internal/vectorstore"
)

func hr(v float64) *float64 { return &v }

func doc(id, name, typ string) domain.StoredDocument {
	return domain.StoredDocument{
		ID:   id,
		Text: "Run Name: " + name,
		Metadata: domain.Metadata{
			Name: name, Type: typ, Date: "2025-07-01 07:00:00", Year: 2025, Month: 7, Week: 27, AvgHR: hr(150),
		},
	}
}

func openTemp(t *testing.T) (*Storage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alice", FileName)
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestStorage_RoundTripsDocumentsInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	require.NoError(t, s.Upsert(ctx,
		[]domain.StoredDocument{doc("1", "Easy Run - 1", "Easy"), doc("2", "Tempo Run - 1", "Tempo")},
		[][]float32{{1, 0, 0}, {0, 1, 0}}))
	require.NoError(t, s.Upsert(ctx, []domain.StoredDocument{doc("3", "Tempo Run - 2", "Tempo")}, [][]float32{{0, 0.5, 0.5}}))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "1", all[0].ID)
	assert.Equal(t, "3", all[2].ID)
	assert.Equal(t, "Run Name: Easy Run - 1", all[0].Text)
	require.NotNil(t, all[0].Metadata.AvgHR)
	assert.Equal(t, 150.0, *all[0].Metadata.AvgHR)
	assert.Equal(t, 27, all[0].Metadata.Week)
}

func TestStorage_SearchRanksAndFilters(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	require.NoError(t, s.Upsert(ctx,
		[]domain.StoredDocument{doc("1", "Easy Run - 1", "Easy"), doc("2", "Tempo Run - 1", "Tempo"), doc("3", "Tempo Run - 2", "Tempo")},
		[][]float32{{1, 0}, {0.2, 1}, {0, 1}}))

	hits, err := s.Search(ctx, []float32{0, 1}, 2, vectorstore.Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "3", hits[0].ID)
	assert.Equal(t, "2", hits[1].ID)

	tempo, err := s.Search(ctx, nil, 0, vectorstore.Filter{Type: "Tempo"})
	require.NoError(t, err)
	require.Len(t, tempo, 2)
	assert.Equal(t, "2", tempo[0].ID)
}

func TestStorage_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)
	require.NoError(t, s.Upsert(ctx, []domain.StoredDocument{doc("1", "Long Run - 1", "Long")}, [][]float32{{0.25, -1.5}}))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	hits, err := reopened.Search(ctx, []float32{0.25, -1.5}, 1, vectorstore.Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Long Run - 1", hits[0].Metadata.Name)
}

func TestStorage_DimensionMismatchAndReset(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	require.NoError(t, s.Upsert(ctx, []domain.StoredDocument{doc("1", "a", "Easy")}, [][]float32{{1, 2}}))

	err := s.Upsert(ctx, []domain.StoredDocument{doc("2", "b", "Easy")}, [][]float32{{1, 2, 3}})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	require.NoError(t, s.Reset(ctx))
	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	require.NoError(t, s.Upsert(ctx, []domain.StoredDocument{doc("2", "b", "Easy")}, [][]float32{{1, 2, 3}}))
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3e-7}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
}
