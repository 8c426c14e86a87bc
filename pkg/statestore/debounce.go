package statestore

import (
	"errors"
	"sync"
	"time"

	"github.com/omc-dev/coordinator/pkg/errs"
	"github.com/omc-dev/coordinator/pkg/log"
)

// MergeFunc combines the current on-disk document with pending in-memory
// updates. It must never blindly prefer pending over disk — see each
// caller's merge rules (pkg/tracker's are keyed-union-plus-max-counters).
type MergeFunc[T any] func(disk, pending T) T

// DebouncedMergeWriter coalesces updates to one shared JSON document across
// the lifetime of a single process and flushes them as one locked
// read-merge-write. The ~100ms timer exists only to batch multiple updates
// made by the same short-lived hook invocation before it exits — it MUST
// NOT be relied on to survive past that invocation, since hooks are
// separate OS processes with no shared memory. Every caller that cares
// about durability calls FlushNow (typically via a deferred call in main)
// before the process exits.
type DebouncedMergeWriter[T any] struct {
	mu         sync.Mutex
	cwd        string
	docName    string // e.g. "subagent-tracking.json"
	lockName   string // e.g. "subagent-tracker" (WithFileLock appends ".lock")
	debounce   time.Duration
	merge      MergeFunc[T]
	pending    T
	hasPending bool
	timer      *time.Timer
}

// NewDebouncedMergeWriter constructs a writer for one document.
func NewDebouncedMergeWriter[T any](cwd, docName, lockName string, debounce time.Duration, merge MergeFunc[T]) *DebouncedMergeWriter[T] {
	return &DebouncedMergeWriter[T]{
		cwd:      cwd,
		docName:  docName,
		lockName: lockName,
		debounce: debounce,
		merge:    merge,
	}
}

// Update applies mutate to the in-memory pending document and (re)starts the
// debounce timer. mutate receives a pointer so it can append/increment in
// place.
func (w *DebouncedMergeWriter[T]) Update(mutate func(pending *T)) {
	w.mu.Lock()
	mutate(&w.pending)
	w.hasPending = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.FlushNow(); err != nil {
			log.WithComponent("statestore").Warn().Err(err).Str("doc", w.docName).Msg("debounced flush failed")
		}
	})
	w.mu.Unlock()
}

// FlushNow performs the locked read-merge-write immediately, regardless of
// the debounce timer's state. It is a no-op if there is nothing pending.
func (w *DebouncedMergeWriter[T]) FlushNow() error {
	w.mu.Lock()
	if !w.hasPending {
		w.mu.Unlock()
		return nil
	}
	pending := w.pending
	w.hasPending = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	return WithFileLock(w.cwd, w.lockName, func() error {
		var disk T
		if err := ReadJSON(DocPath(w.cwd, w.docName), &disk); err != nil {
			if !errors.Is(err, errs.ErrNotFound) && !errors.Is(err, errs.ErrCorrupt) {
				return err
			}
			// NotFound/Corrupt: disk keeps its zero value, matching the
			// "read failures return an empty default document" policy.
		}
		merged := w.merge(disk, pending)
		return AtomicWriteJSON(DocPath(w.cwd, w.docName), merged)
	})
}
