// Package statscache implements the Stats Cache (C7): a deduplicated,
// invalidatable snapshot of corpus statistics. It holds at most one
// cached snapshot and at most one in-flight calculation, so heavy UI
// polling never causes a thundering herd of recomputation.
//
// This package has no direct teacher equivalent; it is grounded on
// the shape of the teacher's async progress snapshot (a mutex-guarded
// struct with explicit Set/Get) combined with the "one in-flight
// request, many waiters" idiom from the daemon's correlation-id
// protocol, generalized into a dedup-and-invalidate stats cache.
package statscache

import (
	"sync"

	"github.com/jbovet/docwell/internal/docmodel"
)

// CalcFunc computes a fresh DatabaseStats snapshot. It may be slow
// (e.g. scanning the vector table and file-status repository).
type CalcFunc func() (docmodel.DatabaseStats, error)

// Cache is the single-slot, promise-deduplicating stats cache.
type Cache struct {
	mu       sync.Mutex
	cached   *docmodel.DatabaseStats
	inflight *inflightCalc
}

type inflightCalc struct {
	done chan struct{}
	val  docmodel.DatabaseStats
	err  error
}

// New returns an empty Cache: no cached snapshot, no in-flight calc.
func New() *Cache {
	return &Cache{}
}

// Get returns the cached snapshot if present; otherwise it joins an
// in-flight calculation if one is running; otherwise it starts calc,
// memoizes a successful result, and clears the pending slot either
// way. Concurrent callers with no intervening Invalidate share a
// single calc() invocation.
func (c *Cache) Get(calc CalcFunc) (docmodel.DatabaseStats, error) {
	c.mu.Lock()
	if c.cached != nil {
		snap := *c.cached
		c.mu.Unlock()
		return snap, nil
	}
	if c.inflight != nil {
		f := c.inflight
		c.mu.Unlock()
		<-f.done
		return f.val, f.err
	}

	f := &inflightCalc{done: make(chan struct{})}
	c.inflight = f
	c.mu.Unlock()

	val, err := calc()
	f.val, f.err = val, err
	close(f.done)

	c.mu.Lock()
	// Only commit if this is still the in-flight calc: Invalidate
	// does not cancel it, but a newer Get after an Invalidate may have
	// already started its own (and that one should win the cache slot
	// only once it, too, completes — here we simply always cache our
	// own result and clear our own slot, tolerating at most one
	// generation of staleness).
	if c.inflight == f {
		c.inflight = nil
	}
	if err == nil {
		snap := val
		c.cached = &snap
	}
	c.mu.Unlock()

	return val, err
}

// Invalidate drops the cached snapshot. It does not cancel an
// in-flight calculation: that calculation may still commit its
// (possibly now-stale) result, and callers tolerate at-most-one
// generation of staleness.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}
