package transition

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAllStepsSucceed(t *testing.T) {
	var ran []string
	steps := []Step{
		{Name: "a", Do: func() error { ran = append(ran, "a"); return nil }},
		{Name: "b", Do: func() error { ran = append(ran, "b"); return nil }},
	}
	res := Run(steps, nil)
	require.True(t, res.Success)
	assert.Equal(t, []string{"a", "b"}, ran)
}

// S4 — a failing third step rolls back the first two in reverse order.
func TestRunRollsBackInReverseOrderOnFailure(t *testing.T) {
	var order []string
	steps := []Step{
		{
			Name: "execution",
			Do:   func() error { order = append(order, "do:execution"); return nil },
			Undo: func() error { order = append(order, "undo:execution"); return nil },
		},
		{
			Name: "qa-record",
			Do:   func() error { order = append(order, "do:qa-record"); return nil },
			Undo: func() error { order = append(order, "undo:qa-record"); return nil },
		},
		{
			Name: "qa-state",
			Do:   func() error { return errors.New("disk full") },
		},
	}
	res := Run(steps, nil)
	require.False(t, res.Success)
	assert.Equal(t, "qa-state", res.FailedStep)
	assert.ErrorContains(t, res.Err, "disk full")
	assert.Equal(t, []string{
		"do:execution", "do:qa-record",
		"undo:qa-record", "undo:execution",
	}, order)
}

func TestRunReportsUndoErrorsWithoutFailingRollback(t *testing.T) {
	var undoErrs []string
	steps := []Step{
		{
			Name: "a",
			Do:   func() error { return nil },
			Undo: func() error { return errors.New("cleanup failed") },
		},
		{
			Name: "b",
			Do:   func() error { return errors.New("boom") },
		},
	}
	res := Run(steps, func(step string, err error) {
		undoErrs = append(undoErrs, step+": "+err.Error())
	})
	require.False(t, res.Success)
	assert.Equal(t, []string{"a: cleanup failed"}, undoErrs)
}
