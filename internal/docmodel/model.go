// Package docmodel holds the corpus data model shared by every stage
// of the indexing and retrieval pipeline: the chunk that gets
// embedded, the per-file status record that drives re-indexing
// decisions, and the aggregate stats views over both.
package docmodel

import "time"

// Chunk is a contiguous passage of a document together with its
// embedding vector and provenance. Chunk.ID is stable and derived
// from Path+Offset so re-embedding the same passage twice yields the
// same identity.
type Chunk struct {
	ID     string    // stable, derived from path+offset
	Path   string
	MTime  int64     // milliseconds since epoch
	Page   int       // 1-based; 0 if not applicable
	Offset int       // character offset within the extracted document text
	Text   string
	Vector []float32 // length == model dimension; unit-normalized
	Type   string    // file extension, without the leading dot
	Title  string    // nearest heading, or the file's base name
}

// FileStatus is the persistent per-file record the Re-index Decision
// Engine and Embedding Queue read and write. One record exists per
// watched file for as long as the file is reachable from any watched
// root.
type FileStatus struct {
	Path         string
	Folder       string // watched root this file was discovered under
	Status       Status
	ParserVer    int
	ChunkCount   int
	ErrorMessage string
	LastModified time.Time
	IndexedAt    time.Time
	FileHash     string // 16-hex MD5 of "path:size:mtime_ms"
	LastRetry    *time.Time
}

// Status is the lifecycle state of a FileStatus record.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusIndexed  Status = "indexed"
	StatusFailed   Status = "failed"
	StatusError    Status = "error"
	StatusOutdated Status = "outdated"
)

// ParserVersions is the compile-time table of parser version per
// extension. Bumping an entry forces re-indexing of every file with
// that extension (see internal/decision).
type ParserVersions map[string]int

// FolderStats is the per-watched-folder rollup inside DatabaseStats.
type FolderStats struct {
	Folder  string
	Total   int
	Indexed int
}

// DatabaseStats is the immutable snapshot served by the Stats Cache.
type DatabaseStats struct {
	IndexedFiles int
	TotalChunks  int
	FolderStats  []FolderStats
	ModelDim     int
}
