// Package filestatus implements the File Status Repository (C4): the
// durable, per-path bookkeeping table that answers "have we indexed
// this file, with which parser version, and did it fail". It is
// grounded on the teacher's SQLite persistence conventions
// (internal/telemetry/store.go's schema-as-string-constant,
// prepared-statement upserts inside explicit transactions), re-keyed
// from the teacher's metrics tables to a per-file indexing-status
// record.
package filestatus

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jbovet/docwell/internal/docmodel"
	"github.com/jbovet/docwell/internal/xerrors"
)

const schema = `
CREATE TABLE IF NOT EXISTS file_status (
	path          TEXT PRIMARY KEY,
	folder        TEXT NOT NULL,
	status        TEXT NOT NULL,
	parser_version INTEGER NOT NULL DEFAULT 0,
	chunk_count   INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	last_modified TIMESTAMP,
	indexed_at    TIMESTAMP,
	file_hash     TEXT NOT NULL DEFAULT '',
	last_retry    TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_file_status_folder ON file_status(folder);
CREATE INDEX IF NOT EXISTS idx_file_status_status ON file_status(status);
`

// Store is the SQLite-backed file status repository. One Store owns
// the on-disk database; the Lifecycle State Machine is its sole owner.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the file status database at path
// and ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, xerrors.FileStatusErr(fmt.Errorf("open database: %w", err))
	}
	db.SetMaxOpenConns(1) // SQLite, single writer; avoids SQLITE_BUSY under the daemon's single process

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, xerrors.FileStatusErr(fmt.Errorf("create schema: %w", err))
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces the record for rec.Path.
func (s *Store) Upsert(ctx context.Context, rec docmodel.FileStatus) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_status
			(path, folder, status, parser_version, chunk_count, error_message, last_modified, indexed_at, file_hash, last_retry)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			folder = excluded.folder,
			status = excluded.status,
			parser_version = excluded.parser_version,
			chunk_count = excluded.chunk_count,
			error_message = excluded.error_message,
			last_modified = excluded.last_modified,
			indexed_at = excluded.indexed_at,
			file_hash = excluded.file_hash,
			last_retry = excluded.last_retry
	`,
		rec.Path, rec.Folder, string(rec.Status), rec.ParserVer, rec.ChunkCount, rec.ErrorMessage,
		nullableTime(rec.LastModified), nullableTime(rec.IndexedAt), rec.FileHash, nullablePtrTime(rec.LastRetry),
	)
	if err != nil {
		return xerrors.FileStatusErr(fmt.Errorf("upsert %s: %w", rec.Path, err))
	}
	return nil
}

// Get returns the record for path, or nil if none exists.
func (s *Store) Get(ctx context.Context, path string) (*docmodel.FileStatus, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, folder, status, parser_version, chunk_count, error_message, last_modified, indexed_at, file_hash, last_retry
		FROM file_status WHERE path = ?
	`, path)
	rec, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.FileStatusErr(fmt.Errorf("get %s: %w", path, err))
	}
	return rec, nil
}

// Delete removes path's record entirely (used when a file is removed
// from the corpus).
func (s *Store) Delete(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM file_status WHERE path = ?`, path); err != nil {
		return xerrors.FileStatusErr(fmt.Errorf("delete %s: %w", path, err))
	}
	return nil
}

// ListByFolder returns every record whose folder matches folder.
func (s *Store) ListByFolder(ctx context.Context, folder string) ([]*docmodel.FileStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, folder, status, parser_version, chunk_count, error_message, last_modified, indexed_at, file_hash, last_retry
		FROM file_status WHERE folder = ?
	`, folder)
	if err != nil {
		return nil, xerrors.FileStatusErr(fmt.Errorf("list folder %s: %w", folder, err))
	}
	return scanAll(rows)
}

// All returns every known record, used by sweeps and stats.
func (s *Store) All(ctx context.Context) ([]*docmodel.FileStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, folder, status, parser_version, chunk_count, error_message, last_modified, indexed_at, file_hash, last_retry
		FROM file_status
	`)
	if err != nil {
		return nil, xerrors.FileStatusErr(fmt.Errorf("list all: %w", err))
	}
	return scanAll(rows)
}

// FolderStats aggregates total and indexed file counts per folder.
func (s *Store) FolderStats(ctx context.Context) ([]docmodel.FolderStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT folder,
		       COUNT(*) AS total,
		       SUM(CASE WHEN status = 'indexed' THEN 1 ELSE 0 END) AS indexed
		FROM file_status
		GROUP BY folder
	`)
	if err != nil {
		return nil, xerrors.FileStatusErr(fmt.Errorf("folder stats: %w", err))
	}
	defer rows.Close()

	var stats []docmodel.FolderStats
	for rows.Next() {
		var fs docmodel.FolderStats
		if err := rows.Scan(&fs.Folder, &fs.Total, &fs.Indexed); err != nil {
			return nil, xerrors.FileStatusErr(fmt.Errorf("scan folder stats: %w", err))
		}
		stats = append(stats, fs)
	}
	return stats, rows.Err()
}

// TotalChunks sums chunk_count across every indexed file.
func (s *Store) TotalChunks(ctx context.Context) (int, error) {
	var total sql.NullInt64
	row := s.db.QueryRowContext(ctx, `SELECT SUM(chunk_count) FROM file_status WHERE status = 'indexed'`)
	if err := row.Scan(&total); err != nil {
		return 0, xerrors.FileStatusErr(fmt.Errorf("total chunks: %w", err))
	}
	return int(total.Int64), nil
}

func scanRow(row *sql.Row) (*docmodel.FileStatus, error) {
	var rec docmodel.FileStatus
	var status string
	var lastModified, indexedAt, lastRetry sql.NullTime
	if err := row.Scan(&rec.Path, &rec.Folder, &status, &rec.ParserVer, &rec.ChunkCount,
		&rec.ErrorMessage, &lastModified, &indexedAt, &rec.FileHash, &lastRetry); err != nil {
		return nil, err
	}
	rec.Status = docmodel.Status(status)
	rec.LastModified = lastModified.Time
	rec.IndexedAt = indexedAt.Time
	if lastRetry.Valid {
		t := lastRetry.Time
		rec.LastRetry = &t
	}
	return &rec, nil
}

func scanAll(rows *sql.Rows) ([]*docmodel.FileStatus, error) {
	defer rows.Close()

	var out []*docmodel.FileStatus
	for rows.Next() {
		var rec docmodel.FileStatus
		var status string
		var lastModified, indexedAt, lastRetry sql.NullTime
		if err := rows.Scan(&rec.Path, &rec.Folder, &status, &rec.ParserVer, &rec.ChunkCount,
			&rec.ErrorMessage, &lastModified, &indexedAt, &rec.FileHash, &lastRetry); err != nil {
			return nil, xerrors.FileStatusErr(fmt.Errorf("scan row: %w", err))
		}
		rec.Status = docmodel.Status(status)
		rec.LastModified = lastModified.Time
		rec.IndexedAt = indexedAt.Time
		if lastRetry.Valid {
			t := lastRetry.Time
			rec.LastRetry = &t
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullablePtrTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
