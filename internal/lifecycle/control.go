package lifecycle

import (
	"context"

	"github.com/jbovet/docwell/internal/docmodel"
	"github.com/jbovet/docwell/internal/embedder"
	"github.com/jbovet/docwell/internal/query"
	"github.com/jbovet/docwell/internal/xerrors"
)

// QueryEngine returns a Query Engine wired to this Machine's embedder
// supervisor and vector table. Safe to call once the Machine has
// reached StageReady; the returned Engine holds no state of its own
// beyond the two collaborators.
func (m *Machine) QueryEngine() *query.Engine {
	return query.New(m.sup, m.vectors)
}

// Stats returns the cached database statistics snapshot, computing it
// if nothing is cached yet.
func (m *Machine) Stats() (docmodel.DatabaseStats, error) {
	return m.stats.Get(m.computeStats)
}

// QueueDepth reports the embedding queue's current backlog, in
// chunks.
func (m *Machine) QueueDepth() int {
	return m.queue.Depth()
}

// PauseIndexing suspends the embedding queue from dequeuing new
// work; in-flight submissions still finish.
func (m *Machine) PauseIndexing() {
	m.queue.Pause()
}

// ResumeIndexing wakes the embedding queue back up.
func (m *Machine) ResumeIndexing() {
	m.queue.Resume()
}

// CancelIndexing drops path's pending submission, if any.
func (m *Machine) CancelIndexing(path string) {
	m.queue.Cancel(path)
}

// ModelReady reports whether the embedder child is currently in a
// state that can serve requests.
func (m *Machine) ModelReady() bool {
	switch m.sup.State() {
	case embedder.StateReady, embedder.StateIdle, embedder.StateEmbedding:
		return true
	}
	return false
}

// ClearDatabase wipes every indexed file from the Vector Table and
// File Status Repository, and invalidates the Stats Cache. Watched
// folders are re-enumerated the next time the daemon starts; ClearDB
// itself doesn't restart watching.
func (m *Machine) ClearDatabase(ctx context.Context) error {
	records, err := m.status.All(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := m.vectors.Delete(ctx, rec.Path); err != nil {
			return xerrors.VectorStoreErr(err)
		}
		if err := m.status.Delete(ctx, rec.Path); err != nil {
			return err
		}
	}
	m.hashesMu.Lock()
	m.hashes = make(map[string]string)
	m.hashesMu.Unlock()
	m.stats.Invalidate()
	return nil
}
