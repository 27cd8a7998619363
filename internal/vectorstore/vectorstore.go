// Package vectorstore implements the Vector Table (C6): the
// embedding index for a corpus, keyed by (path, offset, page) rather
// than by an opaque chunk ID. It is grounded file-for-file on the
// teacher's internal/store/hnsw.go (string<->uint64 id mapping, lazy
// deletion, gob-encoded metadata persistence) with one structural
// change: delete-then-add for a path is composed into a single
// Reindex call so a reader never observes a path with zero chunks
// mid-update.
package vectorstore

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/jbovet/docwell/internal/docmodel"
)

// Config configures the vector table.
type Config struct {
	// Dimensions is the embedding vector length. Fixed at 768 for the
	// model this system ships with.
	Dimensions int

	// Metric is the distance metric: "cos" (cosine) or "l2" (euclidean).
	Metric string

	// M is HNSW max connections per layer.
	M int

	// EfSearch is HNSW query-time search width.
	EfSearch int
}

// DefaultConfig returns sensible defaults for the given dimension.
func DefaultConfig(dimensions int) Config {
	return Config{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}

// ErrDimensionMismatch indicates a vector's length does not match the
// table's configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'docwell index --force')", e.Expected, e.Got)
}

// Result is a single nearest-neighbor hit.
type Result struct {
	Path     string
	Offset   int
	Page     int
	Distance float32
	Score    float32
	Text     string
	Title    string
}

// key identifies one chunk's slot in the table: the path it belongs
// to, plus enough position information to reconstruct a Result
// without a second lookup. Text and Title ride along so the Query
// Engine can build passage previews without a second store keyed by
// (path, offset).
type key struct {
	Path   string
	Offset int
	Page   int
	Text   string
	Title  string
}

func (k key) id() string {
	return fmt.Sprintf("%s@%d", k.Path, k.Offset)
}

// Store is the HNSW-backed vector table. One Store instance owns the
// entire on-disk index; callers must not construct more than one over
// the same path concurrently (the Lifecycle State Machine is the sole
// owner).
type Store struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config Config

	idMap   map[string]uint64 // chunk id -> internal key
	keyMap  map[uint64]key    // internal key -> chunk position
	nextKey uint64

	closed bool
}

type metadata struct {
	IDMap   map[string]uint64
	KeyMap  map[uint64]key
	NextKey uint64
	Config  Config
}

// New creates an empty vector table with the given configuration.
func New(cfg Config) (*Store, error) {
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &Store{
		graph:   graph,
		config:  cfg,
		idMap:   make(map[string]uint64),
		keyMap:  make(map[uint64]key),
		nextKey: 0,
	}, nil
}

// Reindex atomically replaces every chunk belonging to path with
// batch. It is the only way to mutate a path's chunks: the delete of
// the old set and the add of the new set happen under one lock
// acquisition, so a concurrent Search never observes path with zero
// chunks while a reindex is in flight.
func (s *Store) Reindex(ctx context.Context, path string, batch []docmodel.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector table is closed")
	}

	for _, c := range batch {
		if len(c.Vector) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(c.Vector)}
		}
	}

	s.deleteLocked(path)

	for _, c := range batch {
		k := key{Path: c.Path, Offset: c.Offset, Page: c.Page, Text: c.Text, Title: c.Title}
		id := k.id()

		vec := make([]float32, len(c.Vector))
		copy(vec, c.Vector)
		if s.config.Metric == "cos" {
			normalizeVectorInPlace(vec)
		}

		internalKey := s.nextKey
		s.nextKey++

		node := hnsw.MakeNode(internalKey, vec)
		s.graph.Add(node)

		s.idMap[id] = internalKey
		s.keyMap[internalKey] = k
	}

	return nil
}

// deleteLocked removes every chunk belonging to path. Callers must
// hold s.mu. Uses lazy deletion: nodes remain in the graph but are
// orphaned from the id maps, matching the teacher's avoidance of
// coder/hnsw's last-node-delete bug.
func (s *Store) deleteLocked(path string) {
	for id, k := range s.idMap {
		if k.Path != path {
			continue
		}
		internalKey := s.idMap[id]
		delete(s.keyMap, internalKey)
		delete(s.idMap, id)
	}
}

// Delete removes every chunk belonging to path, leaving it with no
// entries (used when a file is removed from the corpus entirely).
func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector table is closed")
	}
	s.deleteLocked(path)
	return nil
}

// Search finds the k nearest chunks to query; grouping results by
// file is left to the caller.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector table is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 {
		return []Result{}, nil
	}

	normalizedQuery := make([]float32, len(query))
	copy(normalizedQuery, query)
	if s.config.Metric == "cos" {
		normalizeVectorInPlace(normalizedQuery)
	}

	nodes := s.graph.Search(normalizedQuery, k)

	results := make([]Result, 0, len(nodes))
	for _, node := range nodes {
		k, exists := s.keyMap[node.Key]
		if !exists {
			continue
		}
		distance := s.graph.Distance(normalizedQuery, node.Value)
		score := distanceToScore(distance, s.config.Metric)
		if score < 0 {
			score = 0
		}
		results = append(results, Result{
			Path:     k.Path,
			Offset:   k.Offset,
			Page:     k.Page,
			Distance: distance,
			Score:    score,
			Text:     k.Text,
			Title:    k.Title,
		})
	}

	return results, nil
}

// Contains reports whether path has any chunks in the table.
func (s *Store) Contains(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	for _, k := range s.idMap {
		if k.Path == path {
			return true
		}
	}
	return false
}

// CountForPath returns how many chunks path currently has.
func (s *Store) CountForPath(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	n := 0
	for _, k := range s.idMap {
		if k.Path == path {
			n++
		}
	}
	return n
}

// Count returns the total number of chunks held across all paths.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// Stats reports table health for compaction decisions: valid chunks
// versus orphaned (lazy-deleted) graph nodes.
type Stats struct {
	ValidChunks int
	GraphNodes  int
	Orphans     int
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Stats{}
	}
	valid := len(s.idMap)
	nodes := s.graph.Len()
	return Stats{ValidChunks: valid, GraphNodes: nodes, Orphans: nodes - valid}
}

// Save persists the index to disk using a temp-file-then-rename swap
// so a crash never leaves a half-written index behind.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("vector table is closed")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	if err := s.saveMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

func (s *Store) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := metadata{
		IDMap:   s.idMap,
		KeyMap:  s.keyMap,
		NextKey: s.nextKey,
		Config:  s.config,
	}

	enc := gob.NewEncoder(file)
	if err := enc.Encode(meta); err != nil {
		if cerr := file.Close(); cerr != nil {
			slog.Warn("failed to close temp metadata file", slog.String("error", cerr.Error()))
		}
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load restores the index and its id mappings from disk.
func (s *Store) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector table is closed")
	}

	if err := s.loadMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	if err := s.graph.Import(reader); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

func (s *Store) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close metadata file", slog.String("error", err.Error()))
		}
	}()

	var meta metadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	s.idMap = meta.IDMap
	s.keyMap = meta.KeyMap
	s.nextKey = meta.NextKey
	s.config = meta.Config
	return nil
}

// Close releases resources. The table cannot be used afterward.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// ReadDimensions reads the configured dimension out of an existing
// table's metadata without loading the full graph. Returns 0 if no
// metadata file exists yet (fresh corpus).
func ReadDimensions(vectorPath string) (int, error) {
	metaPath := vectorPath + ".meta"
	file, err := os.Open(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open metadata: %w", err)
	}
	defer file.Close()

	var meta metadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return 0, fmt.Errorf("decode metadata: %w", err)
	}
	return meta.Config.Dimensions, nil
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts a distance into a [0,1] similarity score:
// max(0, dot(q,v)) for normalized vectors is exactly
// 1 - cosineDistance/2.
func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}
