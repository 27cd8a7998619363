package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jbovet/docwell/internal/chunk"
	"github.com/jbovet/docwell/internal/decision"
	"github.com/jbovet/docwell/internal/docmodel"
	"github.com/jbovet/docwell/internal/protocol"
	"github.com/jbovet/docwell/internal/watcher"
	"github.com/jbovet/docwell/internal/xerrors"
)

// submitPath runs one file through decide -> parse -> chunk -> submit.
// A file that fails decision.ShouldReindex (unchanged since its last
// successful index) is a no-op, not an error.
func (m *Machine) submitPath(ctx context.Context, path string) error {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	p, ok := m.parsers.Get(ext)
	if !ok {
		return nil
	}
	version, _ := m.parsers.Version(ext)

	info, err := os.Stat(path)
	if err != nil {
		// Raced with a delete between enumeration/the watcher event and
		// this call; treat it the same as an OpDelete.
		return m.removePath(ctx, path)
	}

	mtimeMS := info.ModTime().UnixMilli()
	hash := docmodel.FileHash(path, info.Size(), mtimeMS)

	record, _ := m.status.Get(ctx, path)
	if !decision.ShouldReindex(true, version, record, hash, time.Now()) {
		return nil
	}

	segments, err := p.Parse(ctx, path)
	if err != nil {
		_ = m.status.Upsert(ctx, docmodel.FileStatus{
			Path:         path,
			Folder:       filepath.Dir(path),
			Status:       docmodel.StatusFailed,
			ParserVer:    version,
			FileHash:     hash,
			ErrorMessage: err.Error(),
		})
		m.stats.Invalidate()
		return nil
	}

	chunks := chunk.SplitAll(path, mtimeMS, ext, segments, m.chunkOpt)

	m.hashesMu.Lock()
	m.hashes[path] = hash
	m.hashesMu.Unlock()

	return m.queue.Submit(ctx, path, chunks, version, hash)
}

// removePath retracts path from both the Vector Table and the File
// Status Repository, the mirror of submitPath for OpDelete events.
func (m *Machine) removePath(ctx context.Context, path string) error {
	m.queue.Cancel(path)
	if err := m.vectors.Delete(ctx, path); err != nil {
		return xerrors.VectorStoreErr(err)
	}
	if err := m.status.Delete(ctx, path); err != nil {
		return err
	}
	m.hashesMu.Lock()
	delete(m.hashes, path)
	m.hashesMu.Unlock()
	m.stats.Invalidate()
	return nil
}

// consumeWatcherEvents forwards one folder watcher's events into the
// pipeline until ctx is cancelled or the watcher stops. Per-path
// ordering is preserved by the Embedding Queue, not here: this loop
// only decides add/change vs delete and hands off.
func (m *Machine) consumeWatcherEvents(ctx context.Context, w *watcher.HybridWatcher, folder string) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			for _, ev := range batch {
				m.handleEvent(ctx, folder, ev)
			}
		case err, ok := <-w.Errors():
			if !ok {
				continue
			}
			if err != nil {
				slog.Warn("folder watcher error", slog.String("folder", folder), slog.String("error", err.Error()))
			}
		}
	}
}

func (m *Machine) handleEvent(ctx context.Context, folder string, ev watcher.FileEvent) {
	if ev.IsDir {
		return
	}

	// Events carry a path relative to the watched folder; every other
	// collaborator (file status, vector table, the hash map) is keyed
	// by the absolute path enumerateFolder used at startup.
	path := filepath.Join(folder, ev.Path)

	switch ev.Operation {
	case watcher.OpDelete:
		if err := m.removePath(ctx, path); err != nil {
			slog.Warn("failed to remove deleted file", slog.String("path", path), slog.String("error", err.Error()))
		}
	case watcher.OpConfigChange, watcher.OpGitignoreChange:
		// Config reload and gitignore-driven reconciliation are handled
		// elsewhere; this loop only indexes file content changes.
	default:
		if err := m.submitPath(ctx, path); err != nil {
			slog.Warn("failed to submit changed file", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
}

// drainProgress republishes the Embedding Queue's per-file progress
// events as StageProgress events on the machine's own subscriber fanout,
// so a single subscription surfaces both startup progress and ongoing
// indexing activity.
func (m *Machine) drainProgress(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-m.queue.Progress():
			if !ok {
				return
			}
			failed := 0
			if ev.Err != nil {
				failed = 1
			}
			m.publish(protocol.StageProgress{
				Stage:          StageReady,
				FilePath:       ev.Path,
				FilesProcessed: ev.ProcessedChunks,
				FilesTotal:     ev.TotalChunks,
				FilesFailed:    failed,
			})
		}
	}
}
