package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/jbovet/docwell/internal/chunk"
	"github.com/jbovet/docwell/internal/config"
	"github.com/jbovet/docwell/internal/docmodel"
	"github.com/jbovet/docwell/internal/embedder"
	"github.com/jbovet/docwell/internal/embedqueue"
	"github.com/jbovet/docwell/internal/filestatus"
	"github.com/jbovet/docwell/internal/parser"
	"github.com/jbovet/docwell/internal/protocol"
	"github.com/jbovet/docwell/internal/statscache"
	"github.com/jbovet/docwell/internal/vectorstore"
	"github.com/jbovet/docwell/internal/watcher"
	"github.com/jbovet/docwell/internal/xerrors"
)

// StartupConfig holds everything the startup sequence needs to bring
// the daemon from a cold process to StageReady. It is deliberately its
// own small struct rather than a dependency on the CLI's layered
// config loader: the Lifecycle package owns the sequence, not where
// the values ultimately came from.
type StartupConfig struct {
	// DataDir is the directory the daemon owns for its own bookkeeping
	// (vectors/, file_status/, config.json, the instance lock). It is
	// never one of WatchedFolders and is never watched itself.
	DataDir string

	WatchedFolders     []string
	ExcludePatterns    []string
	EmbeddingBatchSize int
	CPUThrottle        string

	Spawner          embedder.Spawner
	VectorDimensions int
}

func (c StartupConfig) vectorsDir() string  { return filepath.Join(c.DataDir, "vectors") }
func (c StartupConfig) vectorsFile() string { return filepath.Join(c.vectorsDir(), "index") }
func (c StartupConfig) versionFile() string { return filepath.Join(c.vectorsDir(), "VERSION") }
func (c StartupConfig) statusFile() string {
	return filepath.Join(c.DataDir, "file_status", "status.db")
}

// dbVersion is written to the vectors/VERSION marker once the vector
// table and file status table are both ready. A mismatch on a future
// launch signals an incompatible on-disk format.
const dbVersion = "1"

// workerCount maps the configured CPU throttle level to the
// embedding queue's worker pool size. An explicit "low" throttle is
// honored as a true single worker; an unset throttle falls back to
// number of CPU cores with a floor of 2, so callers that never set
// StartupConfig.CPUThrottle (tests, in particular) still get a
// pipeline that isn't serialized through one goroutine.
func workerCount(throttle string) int {
	if throttle == "" {
		if n := runtime.NumCPU(); n >= 2 {
			return n
		}
		return 2
	}
	return config.CPUThrottle(throttle).Workers()
}

// Start drives the machine through all eight stages in order,
// constructing and taking ownership of the Vector Table, File Status
// Repository, Stats Cache, Embedding Queue, and Embedder Supervisor.
// It returns once StageReady is reached, or an error (with the
// machine left in StageError) if any stage fails or times out. If the
// instance lock cannot be taken, it returns an error before any spawn
// and the machine stays in StageUninitialized.
func (m *Machine) Start(ctx context.Context, cfg StartupConfig) error {
	if cfg.EmbeddingBatchSize <= 0 {
		cfg.EmbeddingBatchSize = 32
	}
	if cfg.VectorDimensions <= 0 {
		cfg.VectorDimensions = embedder.Dimensions
	}
	m.cfg = cfg
	m.parsers = parser.New()
	m.chunkOpt = chunk.DefaultOptions()

	m.lock = NewInstanceLock(cfg.DataDir)
	acquired, err := m.lock.TryLock()
	if err != nil {
		return m.failStage(err)
	}
	if !acquired {
		return m.failStage(fmt.Errorf("another docwell instance already owns %s", cfg.DataDir))
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if err := m.stageStartingChild(runCtx); err != nil {
		return err
	}
	if err := m.stageInitializingDB(runCtx); err != nil {
		return err
	}
	if err := m.stageLoadingFiles(runCtx); err != nil {
		return err
	}
	if err := m.stageScanningFolder(runCtx); err != nil {
		return err
	}

	return m.transition(StageReady, "ready")
}

func (m *Machine) failStage(cause error) error {
	m.fail(cause)
	return cause
}

// stageStartingChild spawns the embedder child process and waits for
// its ready handshake.
func (m *Machine) stageStartingChild(ctx context.Context) error {
	if err := m.transition(StageStartingChild, "spawning embedder child"); err != nil {
		return m.failStage(err)
	}

	limits := embedder.DefaultLimits()
	limits.InitTimeout = m.timeouts.SpawnSidecar
	m.sup = embedder.New(m.cfg.Spawner, limits)

	spawnCtx, cancel := context.WithTimeout(ctx, m.timeouts.SpawnSidecar)
	defer cancel()
	if err := m.sup.Initialize(spawnCtx); err != nil {
		return m.failStage(err)
	}

	return m.transition(StageChildReady, "embedder child ready")
}

// stageInitializingDB connects the Vector Table and File Status
// Repository, primes the dimension check with a synthetic init row
// that is immediately deleted, writes the db-version marker, and
// pre-warms the Stats Cache.
func (m *Machine) stageInitializingDB(ctx context.Context) error {
	if err := m.transition(StageInitializingDB, "initializing database"); err != nil {
		return m.failStage(err)
	}

	dbCtx, cancel := context.WithTimeout(ctx, m.timeouts.DBInit)
	defer cancel()

	dims, err := vectorstore.ReadDimensions(m.cfg.vectorsFile())
	if err != nil {
		return m.failStage(xerrors.VectorStoreErr(err))
	}
	if dims == 0 {
		dims = m.cfg.VectorDimensions
	}

	vsCfg := vectorstore.DefaultConfig(dims)
	vectors, err := vectorstore.New(vsCfg)
	if err != nil {
		return m.failStage(xerrors.VectorStoreErr(err))
	}
	// A fresh corpus has no index on disk yet; Load failing here just
	// means Reindex below builds the graph from scratch.
	_ = vectors.Load(m.cfg.vectorsFile())

	probe := make([]float32, dims)
	if err := vectors.Reindex(dbCtx, "__init__", []docmodel.Chunk{{Path: "__init__", Vector: probe}}); err != nil {
		return m.failStage(xerrors.VectorStoreErr(err))
	}
	if err := vectors.Delete(dbCtx, "__init__"); err != nil {
		return m.failStage(xerrors.VectorStoreErr(err))
	}
	m.vectors = vectors

	if err := writeVersionMarker(m.cfg.versionFile(), dbVersion); err != nil {
		return m.failStage(xerrors.VectorStoreErr(err))
	}

	if err := os.MkdirAll(filepath.Dir(m.cfg.statusFile()), 0o755); err != nil {
		return m.failStage(xerrors.FileStatusErr(err))
	}
	status, err := filestatus.Open(m.cfg.statusFile())
	if err != nil {
		return m.failStage(err)
	}
	m.status = status

	m.stats = statscache.New()
	if _, err := m.stats.Get(m.computeStats); err != nil {
		return m.failStage(xerrors.FileStatusErr(err))
	}

	return m.transition(StageDBReady, "database ready")
}

func (m *Machine) computeStats() (docmodel.DatabaseStats, error) {
	ctx := context.Background()
	folders, err := m.status.FolderStats(ctx)
	if err != nil {
		return docmodel.DatabaseStats{}, err
	}
	totalChunks, err := m.status.TotalChunks(ctx)
	if err != nil {
		return docmodel.DatabaseStats{}, err
	}
	indexed := 0
	for _, f := range folders {
		indexed += f.Indexed
	}
	return docmodel.DatabaseStats{
		IndexedFiles: indexed,
		TotalChunks:  totalChunks,
		FolderStats:  folders,
		ModelDim:     m.cfg.VectorDimensions,
	}, nil
}

// stageLoadingFiles repopulates the in-memory file-hash map from the
// File Status Repository, publishing progress every 100 records.
func (m *Machine) stageLoadingFiles(ctx context.Context) error {
	if err := m.transition(StageLoadingFiles, "loading indexed files"); err != nil {
		return m.failStage(err)
	}

	loadCtx, cancel := context.WithTimeout(ctx, m.timeouts.DBLoad)
	defer cancel()

	records, err := m.status.All(loadCtx)
	if err != nil {
		return m.failStage(err)
	}

	m.hashesMu.Lock()
	for i, rec := range records {
		m.hashes[rec.Path] = rec.FileHash
		if (i+1)%100 == 0 {
			m.publish(protocol.StageProgress{
				Stage:          StageLoadingFiles,
				Message:        "loading indexed files",
				FilesProcessed: i + 1,
				FilesTotal:     len(records),
			})
		}
	}
	m.hashesMu.Unlock()

	return m.transition(StageScanningFolder, "scanning watched folders")
}

// stageScanningFolder starts the Embedding Queue, performs an initial
// enumeration of every watched folder (submitting any new or changed
// file for indexing), and starts a folder watcher per folder for
// ongoing changes. It returns once every folder's initial enumeration
// has been submitted; the queue itself continues draining in the
// background after Start returns.
func (m *Machine) stageScanningFolder(ctx context.Context) error {
	scanCtx, cancel := context.WithTimeout(ctx, m.timeouts.FolderScan)
	defer cancel()

	qCfg := embedqueue.DefaultConfig(workerCount(m.cfg.CPUThrottle))
	qCfg.BatchSize = m.cfg.EmbeddingBatchSize
	m.queue = embedqueue.New(qCfg, m.sup, m.vectors, m.status, m.stats)
	m.queue.Start(ctx)
	go m.drainProgress(ctx)

	for _, rawFolder := range m.cfg.WatchedFolders {
		folder, err := filepath.Abs(rawFolder)
		if err != nil {
			return m.failStage(err)
		}
		m.publish(protocol.StageProgress{Stage: StageScanningFolder, FolderPath: folder})

		files, err := enumerateFolder(folder, m.cfg.ExcludePatterns, m.parsers)
		if err != nil {
			return m.failStage(err)
		}
		for _, path := range files {
			if err := m.submitPath(scanCtx, path); err != nil {
				return m.failStage(err)
			}
		}

		opts := watcher.Options{IgnorePatterns: m.cfg.ExcludePatterns}.WithDefaults()
		w, err := watcher.NewHybridWatcher(opts)
		if err != nil {
			return m.failStage(err)
		}
		m.watchersMu.Lock()
		m.watchers[folder] = w
		m.watchersMu.Unlock()

		go func(folder string, w *watcher.HybridWatcher) {
			_ = w.Start(ctx, folder)
		}(folder, w)
		go m.consumeWatcherEvents(ctx, w, folder)
	}

	return nil
}
