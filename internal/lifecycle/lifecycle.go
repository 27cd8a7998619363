// Package lifecycle implements the daemon's startup/shutdown state
// machine (C11): the strictly-ordered sequence from first spawn to
// serving queries, with a single sink error state. It is grounded on
// the teacher's internal/preflight.Checker for the "ordered stages,
// each with its own pass/fail and a budget" idiom, generalized from a
// fixed checklist into the eight-state sequence below, and on
// internal/embed.FileLock (gofrs/flock) for single-instance
// enforcement over the data directory.
//
// The Machine is the sole owner of the Vector Table, File Status
// Repository, Embedding Queue, and Embedder Supervisor handles: no
// other package constructs these directly.
package lifecycle

import (
	"sync"
	"time"

	"github.com/jbovet/docwell/internal/chunk"
	"github.com/jbovet/docwell/internal/embedder"
	"github.com/jbovet/docwell/internal/embedqueue"
	"github.com/jbovet/docwell/internal/filestatus"
	"github.com/jbovet/docwell/internal/parser"
	"github.com/jbovet/docwell/internal/protocol"
	"github.com/jbovet/docwell/internal/statscache"
	"github.com/jbovet/docwell/internal/vectorstore"
	"github.com/jbovet/docwell/internal/watcher"
)

// Stage is an alias for the Stage Protocol's enum, so the lifecycle
// and the progress events it publishes always agree on vocabulary.
type Stage = protocol.Stage

const (
	StageUninitialized  = protocol.StageUninitialized
	StageStartingChild  = protocol.StageStartingChild
	StageChildReady     = protocol.StageChildReady
	StageInitializingDB = protocol.StageInitializingDB
	StageDBReady        = protocol.StageDBReady
	StageLoadingFiles   = protocol.StageLoadingFiles
	StageScanningFolder = protocol.StageScanningFolder
	StageReady          = protocol.StageReady
	StageError          = protocol.StageError
)

// Timeouts bounds how long each startup stage may take before the
// machine gives up and transitions to StageError.
type Timeouts struct {
	SpawnSidecar  time.Duration
	DBInit        time.Duration
	DBLoad        time.Duration
	ModelCheck    time.Duration
	ModelDownload time.Duration
	EmbedderInit  time.Duration
	FolderScan    time.Duration
	Ready         time.Duration
}

// DefaultTimeouts returns the documented production budgets.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		SpawnSidecar:  10 * time.Second,
		DBInit:        10 * time.Second,
		DBLoad:        30 * time.Second,
		ModelCheck:    10 * time.Second,
		ModelDownload: 5 * time.Minute,
		EmbedderInit:  30 * time.Second,
		FolderScan:    30 * time.Second,
		Ready:         5 * time.Second,
	}
}

// Machine tracks the current stage and fans out StageProgress events
// to any number of subscribers registered through Subscribe.
type Machine struct {
	mu    sync.RWMutex
	stage Stage
	err   error

	subscribersMu sync.Mutex
	subscribers   []chan protocol.StageProgress

	cfg      StartupConfig
	timeouts Timeouts

	lock     *InstanceLock
	sup      *embedder.Supervisor
	vectors  *vectorstore.Store
	status   *filestatus.Store
	stats    *statscache.Cache
	queue    *embedqueue.Queue
	parsers  *parser.Registry
	chunkOpt chunk.Options

	watchersMu sync.Mutex
	watchers   map[string]*watcher.HybridWatcher

	hashesMu sync.Mutex
	hashes   map[string]string

	cancel func()
}

// NewMachine returns a Machine in StageUninitialized.
func NewMachine() *Machine {
	return &Machine{
		stage:    StageUninitialized,
		timeouts: DefaultTimeouts(),
		watchers: make(map[string]*watcher.HybridWatcher),
		hashes:   make(map[string]string),
	}
}

// Stage returns the current stage.
func (m *Machine) Stage() Stage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stage
}

// Err returns the terminal error, if the machine is in StageError.
func (m *Machine) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Subscribe returns a channel that receives every StageProgress event
// published from this point on. The channel is never closed by
// Subscribe; callers that stop reading simply stop receiving once
// their buffer fills (publishes are non-blocking, so a slow
// subscriber only misses events, it never stalls the machine).
func (m *Machine) Subscribe() <-chan protocol.StageProgress {
	ch := make(chan protocol.StageProgress, 64)
	m.subscribersMu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.subscribersMu.Unlock()
	return ch
}

// transition moves the machine to next, validating legality, and
// publishes a StageProgress event. Returns an error if the transition
// is illegal; the machine's stage is unchanged in that case.
func (m *Machine) transition(next Stage, message string) error {
	m.mu.Lock()
	from := m.stage
	if !CanTransition(from, next) {
		m.mu.Unlock()
		return &IllegalTransitionError{From: from, To: next}
	}
	m.stage = next
	m.mu.Unlock()

	m.publish(protocol.StageProgress{Stage: next, Message: message})
	return nil
}

// fail records cause as the terminal error and transitions to
// StageError. Any transition-legality failure is ignored: StageError
// is reachable from every non-terminal, non-uninitialized stage, so a
// fail before the first spawn attempt (Start's instance-lock check)
// records cause in Err but leaves the stage at StageUninitialized.
func (m *Machine) fail(cause error) {
	m.mu.Lock()
	m.err = cause
	m.mu.Unlock()
	_ = m.transition(StageError, cause.Error())
}

func (m *Machine) publish(ev protocol.StageProgress) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	m.subscribersMu.Lock()
	defer m.subscribersMu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// IllegalTransitionError reports a rejected stage transition.
type IllegalTransitionError struct {
	From Stage
	To   Stage
}

func (e *IllegalTransitionError) Error() string {
	return "illegal transition from " + string(e.From) + " to " + string(e.To)
}
