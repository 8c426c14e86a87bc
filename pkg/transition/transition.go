// Package transition implements the transactional step helper used for
// Autopilot phase transitions: an ordered list of steps runs in sequence,
// and if any step fails every step that already ran is unwound in reverse
// order before the error is returned. This gives multi-document phase
// transitions (state file + tracker record + metrics) an all-or-nothing feel
// without a real database transaction spanning them.
package transition

import "fmt"

// Step is one unit of a transition: Do performs the forward action, Undo
// reverses it. Undo is only ever called for steps whose Do already
// succeeded, in the reverse order they ran.
type Step struct {
	Name string
	Do   func() error
	Undo func() error
}

// Result reports what happened running a sequence of steps.
type Result struct {
	Success    bool
	FailedStep string
	Err        error
}

// Run executes steps in order. On the first failure, every previously
// successful step is undone in reverse order; undo errors are not fatal to
// the overall result but are returned via onUndoError if supplied.
func Run(steps []Step, onUndoError func(step string, err error)) Result {
	for i, step := range steps {
		if err := step.Do(); err != nil {
			rollback(steps[:i], onUndoError)
			return Result{Success: false, FailedStep: step.Name, Err: fmt.Errorf("step %q: %w", step.Name, err)}
		}
	}
	return Result{Success: true}
}

func rollback(completed []Step, onUndoError func(step string, err error)) {
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Undo == nil {
			continue
		}
		if err := step.Undo(); err != nil && onUndoError != nil {
			onUndoError(step.Name, err)
		}
	}
}
