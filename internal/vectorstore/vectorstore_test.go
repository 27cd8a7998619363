package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbovet/docwell/internal/docmodel"
)

func unitVec(dim int, lead int) []float32 {
	v := make([]float32, dim)
	v[lead%dim] = 1.0
	return v
}

func TestReindexAddsAndReplaces(t *testing.T) {
	ctx := context.Background()
	s, err := New(DefaultConfig(4))
	require.NoError(t, err)

	batch := []docmodel.Chunk{
		{Path: "/docs/a.txt", Offset: 0, Page: 1, Vector: unitVec(4, 0), Text: "one"},
		{Path: "/docs/a.txt", Offset: 10, Page: 1, Vector: unitVec(4, 1), Text: "two"},
	}
	require.NoError(t, s.Reindex(ctx, "/docs/a.txt", batch))
	assert.Equal(t, 2, s.CountForPath("/docs/a.txt"))

	// Reindexing with a smaller batch fully replaces the old chunks.
	require.NoError(t, s.Reindex(ctx, "/docs/a.txt", batch[:1]))
	assert.Equal(t, 1, s.CountForPath("/docs/a.txt"))
}

func TestReindexNeverObservedEmptyMidUpdate(t *testing.T) {
	ctx := context.Background()
	s, err := New(DefaultConfig(4))
	require.NoError(t, err)

	batch := []docmodel.Chunk{{Path: "/docs/a.txt", Offset: 0, Page: 1, Vector: unitVec(4, 0)}}
	require.NoError(t, s.Reindex(ctx, "/docs/a.txt", batch))

	newBatch := []docmodel.Chunk{{Path: "/docs/a.txt", Offset: 5, Page: 1, Vector: unitVec(4, 2)}}
	require.NoError(t, s.Reindex(ctx, "/docs/a.txt", newBatch))

	assert.True(t, s.Contains("/docs/a.txt"))
	assert.Equal(t, 1, s.CountForPath("/docs/a.txt"))
}

func TestReindexRejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s, err := New(DefaultConfig(4))
	require.NoError(t, err)

	batch := []docmodel.Chunk{{Path: "/docs/a.txt", Offset: 0, Vector: unitVec(3, 0)}}
	err = s.Reindex(ctx, "/docs/a.txt", batch)
	require.Error(t, err)
	assert.IsType(t, ErrDimensionMismatch{}, err)
}

func TestDeleteRemovesPath(t *testing.T) {
	ctx := context.Background()
	s, err := New(DefaultConfig(4))
	require.NoError(t, err)

	batch := []docmodel.Chunk{{Path: "/docs/a.txt", Offset: 0, Vector: unitVec(4, 0)}}
	require.NoError(t, s.Reindex(ctx, "/docs/a.txt", batch))
	require.NoError(t, s.Delete(ctx, "/docs/a.txt"))

	assert.False(t, s.Contains("/docs/a.txt"))
	assert.Equal(t, 0, s.Count())
}

func TestSearchReturnsNearestChunk(t *testing.T) {
	ctx := context.Background()
	s, err := New(DefaultConfig(4))
	require.NoError(t, err)

	batch := []docmodel.Chunk{
		{Path: "/docs/a.txt", Offset: 0, Page: 1, Vector: unitVec(4, 0)},
		{Path: "/docs/b.txt", Offset: 0, Page: 1, Vector: unitVec(4, 1)},
	}
	require.NoError(t, s.Reindex(ctx, "/docs/a.txt", batch[:1]))
	require.NoError(t, s.Reindex(ctx, "/docs/b.txt", batch[1:]))

	results, err := s.Search(ctx, unitVec(4, 0), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/docs/a.txt", results[0].Path)
	assert.GreaterOrEqual(t, results[0].Score, float32(0))
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "vectors.hnsw")

	s, err := New(DefaultConfig(4))
	require.NoError(t, err)
	require.NoError(t, s.Reindex(ctx, "/docs/a.txt", []docmodel.Chunk{
		{Path: "/docs/a.txt", Offset: 0, Page: 1, Vector: unitVec(4, 0)},
	}))
	require.NoError(t, s.Save(indexPath))

	loaded, err := New(DefaultConfig(4))
	require.NoError(t, err)
	require.NoError(t, loaded.Load(indexPath))

	assert.Equal(t, 1, loaded.Count())
	assert.True(t, loaded.Contains("/docs/a.txt"))

	dim, err := ReadDimensions(indexPath)
	require.NoError(t, err)
	assert.Equal(t, 4, dim)
}

func TestReadDimensionsFreshStart(t *testing.T) {
	dim, err := ReadDimensions(filepath.Join(t.TempDir(), "missing.hnsw"))
	require.NoError(t, err)
	assert.Equal(t, 0, dim)
}

func TestCloseRejectsFurtherUse(t *testing.T) {
	ctx := context.Background()
	s, err := New(DefaultConfig(4))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Reindex(ctx, "/docs/a.txt", nil)
	assert.Error(t, err)
}
