// Package errs defines the sentinel error kinds shared across the
// coordinator. A missing document, a corrupt document and lock contention
// are returned as ErrNotFound, ErrCorrupt and ErrLockContention (directly or
// via Wrap), so callers can tell them apart with errors.Is rather than
// string matching. ErrConflict, ErrSafetyCap and ErrHostAbort are declared
// but no package returns them; other failures are plain fmt errors.
package errs

import "errors"

var (
	// ErrNotFound means a state document or task did not exist. Readers
	// treat this as an empty default, not a hard failure.
	ErrNotFound = errors.New("not found")

	// ErrCorrupt means a JSON document or store column failed to parse.
	// Callers substitute a default value and log; they never propagate
	// this out of a hook.
	ErrCorrupt = errors.New("corrupt state")

	// ErrConflict means a compare-and-swap lost a race (task already
	// claimed, phase already transitioned, etc).
	ErrConflict = errors.New("conflict")

	// ErrLockContention means a file lock could not be acquired within
	// its timeout.
	ErrLockContention = errors.New("lock contention")

	// ErrSafetyCap means an iteration or attempt counter reached its
	// configured maximum.
	ErrSafetyCap = errors.New("safety cap reached")

	// ErrHostAbort means the stop was user-initiated or a context-limit
	// stop; no recovery is attempted.
	ErrHostAbort = errors.New("host abort")
)

// Wrap attaches a message to a sentinel kind while keeping errors.Is working.
func Wrap(kind error, msg string) error {
	return &wrapped{kind: kind, msg: msg}
}

type wrapped struct {
	kind error
	msg  string
}

func (w *wrapped) Error() string { return w.msg + ": " + w.kind.Error() }
func (w *wrapped) Unwrap() error { return w.kind }
