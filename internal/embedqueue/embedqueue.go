// Package embedqueue implements the Embedding Queue (C9): a bounded,
// batched, backpressured pipeline from parsed-and-chunked files to the
// Vector Table and File Status Repository. It is grounded on the
// teacher's internal/async.BackgroundIndexer (start/stop channel
// lifecycle, lock-during-run discipline) for its own run loop, and on
// internal/index/coordinator.go's per-path serialized writer idiom
// for why writes to the same path never interleave at batch
// granularity.
package embedqueue

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jbovet/docwell/internal/docmodel"
	"github.com/jbovet/docwell/internal/xerrors"
)

// Config holds the queue's tunables.
type Config struct {
	MaxQueueSize          int
	BatchSize             int
	MaxTokensPerBatch     int
	BackpressureThreshold int
	Workers               int
}

// DefaultConfig returns the documented production defaults.
func DefaultConfig(workers int) Config {
	if workers < 1 {
		workers = 1
	}
	return Config{
		MaxQueueSize:          2000,
		BatchSize:             32,
		MaxTokensPerBatch:     7000,
		BackpressureThreshold: 1000,
		Workers:               workers,
	}
}

// Embedder is the subset of the Embedder Supervisor's contract this
// queue needs: batch text in, vectors out, with the supervisor's own
// retry/restart policy already applied.
type Embedder interface {
	EmbedWithRetry(ctx context.Context, texts []string, isQuery bool) ([][]float32, error)
}

// VectorWriter is the subset of the Vector Table's contract this
// queue needs.
type VectorWriter interface {
	Reindex(ctx context.Context, path string, batch []docmodel.Chunk) error
	Delete(ctx context.Context, path string) error
}

// StatusWriter is the subset of the File Status Repository's contract
// this queue needs.
type StatusWriter interface {
	Upsert(ctx context.Context, rec docmodel.FileStatus) error
}

// Invalidator is the subset of the Stats Cache's contract this queue
// needs.
type Invalidator interface {
	Invalidate()
}

// ProgressEvent reports batch-level progress for one file, or its
// completion.
type ProgressEvent struct {
	Path            string
	ProcessedChunks int
	TotalChunks     int
	FileComplete    bool
	Err             error
}

// submission is one producer call: a file's full chunk set, already
// parsed and split, awaiting embedding.
type submission struct {
	path       string
	chunks     []docmodel.Chunk
	version    int
	hash       string
	cancelled  bool
	cancelOnce sync.Once
}

// Queue is the bounded, batched, backpressured embedding pipeline.
type Queue struct {
	cfg Config

	embedder Embedder
	vectors  VectorWriter
	status   StatusWriter
	stats    Invalidator

	progress chan ProgressEvent

	mu       sync.Mutex
	depth    int
	queue    *list.List // of *submission, FIFO
	notEmpty *sync.Cond
	cancels  map[string]*submission
	paused   bool

	stopCh chan struct{}
	group  *errgroup.Group
}

// New creates a Queue wired to the given collaborators and starts its
// worker pool.
func New(cfg Config, embedder Embedder, vectors VectorWriter, status StatusWriter, stats Invalidator) *Queue {
	q := &Queue{
		cfg:      cfg,
		embedder: embedder,
		vectors:  vectors,
		status:   status,
		stats:    stats,
		progress: make(chan ProgressEvent, 256),
		queue:    list.New(),
		cancels:  make(map[string]*submission),
		stopCh:   make(chan struct{}),
	}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Depth reports the current number of queued chunks across all
// pending submissions (not counting whatever a worker currently has
// in flight).
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}

// Progress returns the channel progress events are published on.
// Callers must drain it or events will back up behind the buffer.
func (q *Queue) Progress() <-chan ProgressEvent {
	return q.progress
}

// Submit enqueues path's chunks, blocking if the queue is at
// maxQueueSize until depth has drained to backpressureThreshold.
func (q *Queue) Submit(ctx context.Context, path string, chunks []docmodel.Chunk, version int, hash string) error {
	q.mu.Lock()
	if q.depth+len(chunks) > q.cfg.MaxQueueSize {
		for q.depth > q.cfg.BackpressureThreshold {
			q.notEmpty.Wait()
			select {
			case <-ctx.Done():
				q.mu.Unlock()
				return xerrors.Cancelled()
			default:
			}
		}
	}

	sub := &submission{path: path, chunks: chunks, version: version, hash: hash}
	q.cancels[path] = sub
	q.queue.PushBack(sub)
	q.depth += len(chunks)
	q.notEmpty.Signal()
	q.mu.Unlock()
	return nil
}

// Cancel drains in-flight batches for path then discards any pending
// batches. The file is left in its prior File Status: no chunks were
// committed before the file's final write, so no rollback is needed.
func (q *Queue) Cancel(path string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if sub, ok := q.cancels[path]; ok {
		sub.cancelOnce.Do(func() { sub.cancelled = true })
	}
}

// Start launches the worker pool in an errgroup that Stop waits on.
// Workers always return nil, so Stop's returned error is always nil,
// and a panic in a worker is not recovered. Each worker pulls the next
// submission and processes it to completion before pulling another,
// so writes for the same path never interleave at batch granularity.
func (q *Queue) Start(ctx context.Context) {
	group, gctx := errgroup.WithContext(ctx)
	q.group = group
	for i := 0; i < q.cfg.Workers; i++ {
		group.Go(func() error {
			q.worker(gctx)
			return nil
		})
	}
}

// Stop signals all workers to exit after their current submission and
// waits for them to finish.
func (q *Queue) Stop() error {
	close(q.stopCh)
	q.mu.Lock()
	q.notEmpty.Broadcast()
	q.mu.Unlock()
	err := q.group.Wait()
	close(q.progress)
	return err
}

func (q *Queue) worker(ctx context.Context) {
	for {
		sub := q.pop()
		if sub == nil {
			return
		}
		q.process(ctx, sub)
	}
}

// Pause suspends dequeuing new work; submissions already in flight
// still run to completion. Resume wakes workers back up.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	q.notEmpty.Broadcast()
}

func (q *Queue) pop() *submission {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		select {
		case <-q.stopCh:
			return nil
		default:
		}
		if !q.paused && q.queue.Len() > 0 {
			front := q.queue.Front()
			q.queue.Remove(front)
			sub := front.Value.(*submission)
			q.depth -= len(sub.chunks)
			if q.depth <= q.cfg.BackpressureThreshold {
				q.notEmpty.Broadcast()
			}
			return sub
		}
		q.notEmpty.Wait()
	}
}

// process packs sub's chunks into batches bounded by BatchSize and
// MaxTokensPerBatch, embeds each with retry, and commits via a single
// Reindex call so the Vector Table never observes path with zero
// chunks mid-update.
func (q *Queue) process(ctx context.Context, sub *submission) {
	defer delete(q.cancels, sub.path)

	batches := packBatches(sub.chunks, q.cfg.BatchSize, q.cfg.MaxTokensPerBatch)

	vectored := make([]docmodel.Chunk, 0, len(sub.chunks))
	processed := 0

	for _, batch := range batches {
		if q.isCancelled(sub) {
			return
		}

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := q.embedder.EmbedWithRetry(ctx, texts, false)
		if err != nil {
			q.fail(ctx, sub, err)
			return
		}
		for i := range batch {
			batch[i].Vector = vectors[i]
		}
		vectored = append(vectored, batch...)
		processed += len(batch)

		q.emit(ProgressEvent{Path: sub.path, ProcessedChunks: processed, TotalChunks: len(sub.chunks)})
	}

	if err := q.vectors.Reindex(ctx, sub.path, vectored); err != nil {
		q.fail(ctx, sub, err)
		return
	}

	rec := docmodel.FileStatus{
		Path:       sub.path,
		Status:     docmodel.StatusIndexed,
		ParserVer:  sub.version,
		ChunkCount: len(vectored),
		FileHash:   sub.hash,
	}
	if err := q.status.Upsert(ctx, rec); err != nil {
		q.fail(ctx, sub, err)
		return
	}
	q.stats.Invalidate()
	q.emit(ProgressEvent{Path: sub.path, ProcessedChunks: len(vectored), TotalChunks: len(sub.chunks), FileComplete: true})
}

func (q *Queue) isCancelled(sub *submission) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return sub.cancelled
}

// fail removes any chunks already written for path and marks it
// failed.
func (q *Queue) fail(ctx context.Context, sub *submission, cause error) {
	now := time.Now()
	_ = q.vectors.Delete(ctx, sub.path)
	_ = q.status.Upsert(ctx, docmodel.FileStatus{
		Path:         sub.path,
		Status:       docmodel.StatusFailed,
		ParserVer:    sub.version,
		FileHash:     sub.hash,
		ErrorMessage: cause.Error(),
		LastRetry:    &now,
	})
	q.stats.Invalidate()
	q.emit(ProgressEvent{Path: sub.path, FileComplete: true, Err: cause})
}

func (q *Queue) emit(ev ProgressEvent) {
	select {
	case q.progress <- ev:
	case <-q.stopCh:
	}
}

// estimateTokens approximates token count as ceil(len(text)/4).
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// packBatches groups chunks into batches no larger than maxSize
// chunks and no larger than maxTokens estimated tokens. A single
// chunk exceeding maxTokens still gets its own batch rather than
// being dropped.
func packBatches(chunks []docmodel.Chunk, maxSize, maxTokens int) [][]docmodel.Chunk {
	var batches [][]docmodel.Chunk
	var current []docmodel.Chunk
	tokens := 0

	flush := func() {
		if len(current) > 0 {
			batches = append(batches, current)
			current = nil
			tokens = 0
		}
	}

	for _, c := range chunks {
		t := estimateTokens(c.Text)
		if len(current) > 0 && (len(current) >= maxSize || tokens+t > maxTokens) {
			flush()
		}
		current = append(current, c)
		tokens += t
	}
	flush()
	return batches
}
