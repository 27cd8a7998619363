package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbovet/docwell/internal/vectorstore"
)

type fakeEmbedder struct {
	calls   int
	lastQ   bool
	vector  []float32
	failure error
}

func (f *fakeEmbedder) EmbedWithRetry(ctx context.Context, texts []string, isQuery bool) ([][]float32, error) {
	f.calls++
	f.lastQ = isQuery
	if f.failure != nil {
		return nil, f.failure
	}
	return [][]float32{f.vector}, nil
}

type fakeSearcher struct {
	results []vectorstore.Result
	failure error
}

func (f *fakeSearcher) Search(ctx context.Context, q []float32, k int) ([]vectorstore.Result, error) {
	if f.failure != nil {
		return nil, f.failure
	}
	return f.results, nil
}

func TestEngine_Query_RejectsEmptyText(t *testing.T) {
	e := New(&fakeEmbedder{}, &fakeSearcher{})

	_, err := e.Query(context.Background(), "   ")
	require.Error(t, err)
}

func TestEngine_Query_EmbedsWithIsQueryTrue(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	e := New(emb, &fakeSearcher{})

	_, err := e.Query(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls)
	assert.True(t, emb.lastQ)
}

func TestEngine_Query_GroupsByPathAndKeepsBestScore(t *testing.T) {
	searcher := &fakeSearcher{results: []vectorstore.Result{
		{Path: "a.txt", Offset: 0, Score: 0.5, Text: "first passage"},
		{Path: "a.txt", Offset: 40, Score: 0.9, Text: "second passage"},
		{Path: "b.txt", Offset: 0, Score: 0.7, Text: "other file"},
	}}
	e := New(&fakeEmbedder{vector: []float32{1, 0}}, searcher)

	hits, err := e.Query(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "a.txt", hits[0].Path)
	assert.Equal(t, "a.txt", hits[0].FileName)
	assert.InDelta(t, 0.9, hits[0].Score, 1e-6)
	require.Len(t, hits[0].Previews, 2)

	assert.Equal(t, "b.txt", hits[1].Path)
	assert.InDelta(t, 0.7, hits[1].Score, 1e-6)
}

func TestEngine_Query_CapsPreviewsPerFile(t *testing.T) {
	searcher := &fakeSearcher{results: []vectorstore.Result{
		{Path: "a.txt", Offset: 0, Score: 0.9, Text: "p1"},
		{Path: "a.txt", Offset: 10, Score: 0.8, Text: "p2"},
		{Path: "a.txt", Offset: 20, Score: 0.7, Text: "p3"},
	}}
	e := New(&fakeEmbedder{vector: []float32{1, 0}}, searcher)
	e.PreviewsPerFile = 2

	hits, err := e.Query(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Len(t, hits[0].Previews, 2)
}

func TestEngine_Query_PropagatesSearchError(t *testing.T) {
	e := New(&fakeEmbedder{vector: []float32{1, 0}}, &fakeSearcher{failure: errors.New("boom")})

	_, err := e.Query(context.Background(), "hello")
	require.Error(t, err)
}

func TestEngine_Query_PropagatesEmbedError(t *testing.T) {
	e := New(&fakeEmbedder{failure: errors.New("embed down")}, &fakeSearcher{})

	_, err := e.Query(context.Background(), "hello")
	require.Error(t, err)
}
