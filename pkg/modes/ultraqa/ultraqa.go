package ultraqa

import (
	"errors"
	"fmt"
	"time"

	"github.com/omc-dev/coordinator/pkg/errs"
	"github.com/omc-dev/coordinator/pkg/modes/registry"
	"github.com/omc-dev/coordinator/pkg/modes/signals"
	"github.com/omc-dev/coordinator/pkg/statestore"
	"github.com/omc-dev/coordinator/pkg/types"
)

const defaultMaxCycle = 5

func path(cwd, sessionID string) string {
	return registry.PathFor(statestore.ModeUltraQA, cwd, sessionID)
}

// Load returns the UltraQA state for a session, or a zero-value
// (Active=false) state if none exists or it is corrupt.
func Load(cwd, sessionID string) (types.UltraQAState, error) {
	var state types.UltraQAState
	err := statestore.ReadJSON(path(cwd, sessionID), &state)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrCorrupt) {
			return types.UltraQAState{}, nil
		}
		return types.UltraQAState{}, err
	}
	return state, nil
}

// Start activates UltraQA for a session, refusing if the registry's mutual
// exclusion rule forbids it (ralph active in the same scope).
func Start(cwd, sessionID, projectPath string, maxCycle int) error {
	if ok, reason := registry.CanStart(registry.UltraQA, cwd, sessionID); !ok {
		return fmt.Errorf("ultraqa cannot start: %s", reason)
	}
	if maxCycle == 0 {
		maxCycle = defaultMaxCycle
	}
	state := types.UltraQAState{
		ModeCommon: types.ModeCommon{
			Active:      true,
			SessionID:   sessionID,
			ProjectPath: projectPath,
			StartedAt:   time.Now().UTC(),
		},
		Cycle:    1,
		MaxCycle: maxCycle,
	}
	return statestore.AtomicWriteJSON(path(cwd, sessionID), &state)
}

// Clear deactivates UltraQA for a session.
func Clear(cwd, sessionID string) error {
	return registry.ClearMode(statestore.ModeUltraQA, cwd, sessionID)
}

// Outcome reports what a QA poll decided.
type Outcome struct {
	Done   bool // QA signalled complete or the cycle cap was reached
	Cycle  int
	Prompt string
}

// Advance scans the transcript for the QA_COMPLETE token; if present (or the
// cycle cap is reached first) it clears the record and reports Done. Other-
// wise it increments the cycle counter and returns a continuation prompt.
func Advance(cwd, sessionID, transcript string) (Outcome, error) {
	state, err := Load(cwd, sessionID)
	if err != nil {
		return Outcome{}, err
	}
	if !state.Active {
		return Outcome{Done: true}, nil
	}

	if signals.HasToken(transcript, signals.QAComplete) {
		if err := Clear(cwd, sessionID); err != nil {
			return Outcome{}, err
		}
		return Outcome{Done: true, Cycle: state.Cycle}, nil
	}

	if state.Cycle >= state.MaxCycle {
		if err := Clear(cwd, sessionID); err != nil {
			return Outcome{}, err
		}
		return Outcome{Done: true, Cycle: state.Cycle}, nil
	}

	state.Cycle++
	if err := statestore.AtomicWriteJSON(path(cwd, sessionID), &state); err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Done:   false,
		Cycle:  state.Cycle,
		Prompt: fmt.Sprintf("UltraQA cycle %d of %d — continue reviewing.", state.Cycle, state.MaxCycle),
	}, nil
}
