package filestatus

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbovet/docwell/internal/docmodel"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "status.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec := docmodel.FileStatus{
		Path: "/docs/a.pdf", Folder: "/docs", Status: docmodel.StatusIndexed,
		ParserVer: 1, ChunkCount: 3, FileHash: "abc123",
		LastModified: time.Now().Truncate(time.Second),
		IndexedAt:    time.Now().Truncate(time.Second),
	}
	require.NoError(t, s.Upsert(ctx, rec))

	got, err := s.Get(ctx, "/docs/a.pdf")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Status, got.Status)
	assert.Equal(t, rec.ChunkCount, got.ChunkCount)
	assert.Equal(t, rec.FileHash, got.FileHash)
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Get(context.Background(), "/docs/missing.pdf")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertReplacesExisting(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Upsert(ctx, docmodel.FileStatus{Path: "/docs/a.pdf", Folder: "/docs", Status: docmodel.StatusQueued}))
	require.NoError(t, s.Upsert(ctx, docmodel.FileStatus{Path: "/docs/a.pdf", Folder: "/docs", Status: docmodel.StatusIndexed, ChunkCount: 5}))

	got, err := s.Get(ctx, "/docs/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, docmodel.StatusIndexed, got.Status)
	assert.Equal(t, 5, got.ChunkCount)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Upsert(ctx, docmodel.FileStatus{Path: "/docs/a.pdf", Folder: "/docs", Status: docmodel.StatusIndexed}))
	require.NoError(t, s.Delete(ctx, "/docs/a.pdf"))

	got, err := s.Get(ctx, "/docs/a.pdf")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListByFolderAndAll(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Upsert(ctx, docmodel.FileStatus{Path: "/docs/a.pdf", Folder: "/docs", Status: docmodel.StatusIndexed}))
	require.NoError(t, s.Upsert(ctx, docmodel.FileStatus{Path: "/docs/b.pdf", Folder: "/docs", Status: docmodel.StatusFailed}))
	require.NoError(t, s.Upsert(ctx, docmodel.FileStatus{Path: "/notes/c.txt", Folder: "/notes", Status: docmodel.StatusIndexed}))

	byFolder, err := s.ListByFolder(ctx, "/docs")
	require.NoError(t, err)
	assert.Len(t, byFolder, 2)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFolderStatsAndTotalChunks(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Upsert(ctx, docmodel.FileStatus{Path: "/docs/a.pdf", Folder: "/docs", Status: docmodel.StatusIndexed, ChunkCount: 4}))
	require.NoError(t, s.Upsert(ctx, docmodel.FileStatus{Path: "/docs/b.pdf", Folder: "/docs", Status: docmodel.StatusFailed, ChunkCount: 0}))

	stats, err := s.FolderStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "/docs", stats[0].Folder)
	assert.Equal(t, 2, stats[0].Total)
	assert.Equal(t, 1, stats[0].Indexed)

	total, err := s.TotalChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

func TestLastRetryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	retry := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, s.Upsert(ctx, docmodel.FileStatus{
		Path: "/docs/a.pdf", Folder: "/docs", Status: docmodel.StatusFailed, LastRetry: &retry,
	}))

	got, err := s.Get(ctx, "/docs/a.pdf")
	require.NoError(t, err)
	require.NotNil(t, got.LastRetry)
	assert.True(t, got.LastRetry.Equal(retry))
}
