// Package query implements the read side of the corpus: embed a query
// string, run a nearest-neighbor search over the Vector Table, and
// fold per-chunk hits into one ranked result per file.
package query

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jbovet/docwell/internal/vectorstore"
	"github.com/jbovet/docwell/internal/xerrors"
)

// DefaultK is the candidate count requested from the Vector Table
// when a caller doesn't specify one.
const DefaultK = 100

// DefaultPreviews is the number of passage previews kept per file.
const DefaultPreviews = 3

// Embedder is the subset of the Embedder Supervisor the Query Engine
// needs. Query embeds always go through this interface directly, not
// through the Embedding Queue: queries are latency-sensitive and must
// never wait behind a batch of indexing work.
type Embedder interface {
	EmbedWithRetry(ctx context.Context, texts []string, isQuery bool) ([][]float32, error)
}

// Searcher is the subset of the Vector Table the Query Engine needs.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int) ([]vectorstore.Result, error)
}

// Hit is one ranked file-level result. Score is the best chunk score
// for Path; Previews holds up to a configurable number of passage
// excerpts, ordered by descending chunk score.
type Hit struct {
	Path     string
	FileName string
	Score    float32
	Previews []Preview
}

// Preview is a single passage excerpt backing a Hit.
type Preview struct {
	Text   string
	Title  string
	Page   int
	Offset int
	Score  float32
}

// Engine answers queries against a corpus already populated by the
// indexing pipeline.
type Engine struct {
	embedder Embedder
	vectors  Searcher

	// K is the number of chunk-level candidates requested from the
	// Vector Table per query. PreviewsPerFile caps how many passage
	// excerpts are kept for a single file's Hit.
	K               int
	PreviewsPerFile int
}

// New constructs an Engine with K and PreviewsPerFile set to DefaultK
// and DefaultPreviews. embedder and vectors must both be non-nil.
// Query also falls back to the defaults for a non-positive K or
// PreviewsPerFile.
func New(embedder Embedder, vectors Searcher) *Engine {
	return &Engine{
		embedder:        embedder,
		vectors:         vectors,
		K:               DefaultK,
		PreviewsPerFile: DefaultPreviews,
	}
}

// Query runs text through embed -> search -> group -> rank and
// returns one Hit per matching file, sorted by descending score. An
// empty (after trimming) query is rejected rather than embedded.
func (e *Engine) Query(ctx context.Context, text string) ([]Hit, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, xerrors.ValidationError("query text must not be empty", nil)
	}

	k := e.K
	if k <= 0 {
		k = DefaultK
	}
	previewCap := e.PreviewsPerFile
	if previewCap <= 0 {
		previewCap = DefaultPreviews
	}

	vectors, err := e.embedder.EmbedWithRetry(ctx, []string{trimmed}, true)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, xerrors.InternalError("embedder returned no vector for query", nil)
	}

	results, err := e.vectors.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, xerrors.VectorStoreErr(err)
	}

	return rank(results, previewCap), nil
}

// rank groups chunk-level results by path, keeping the best score and
// up to previewCap passage previews per path, then sorts the grouped
// hits by descending best score. Results within a path arrive already
// sorted by score (vectorstore.Search's contract); rank preserves that
// order when trimming previews.
func rank(results []vectorstore.Result, previewCap int) []Hit {
	order := make([]string, 0)
	byPath := make(map[string]*Hit)

	for _, r := range results {
		hit, ok := byPath[r.Path]
		if !ok {
			hit = &Hit{Path: r.Path, FileName: filepath.Base(r.Path)}
			byPath[r.Path] = hit
			order = append(order, r.Path)
		}
		if r.Score > hit.Score {
			hit.Score = r.Score
		}
		if len(hit.Previews) < previewCap {
			hit.Previews = append(hit.Previews, Preview{
				Text:   r.Text,
				Title:  r.Title,
				Page:   r.Page,
				Offset: r.Offset,
				Score:  r.Score,
			})
		}
	}

	hits := make([]Hit, 0, len(order))
	for _, p := range order {
		hits = append(hits, *byPath[p])
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	return hits
}
