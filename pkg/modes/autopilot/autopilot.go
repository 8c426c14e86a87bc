package autopilot

import (
	"errors"
	"fmt"
	"time"

	"github.com/omc-dev/coordinator/pkg/errs"
	"github.com/omc-dev/coordinator/pkg/modes/ralph"
	"github.com/omc-dev/coordinator/pkg/modes/registry"
	"github.com/omc-dev/coordinator/pkg/modes/signals"
	"github.com/omc-dev/coordinator/pkg/modes/ultraqa"
	"github.com/omc-dev/coordinator/pkg/statestore"
	"github.com/omc-dev/coordinator/pkg/transition"
	"github.com/omc-dev/coordinator/pkg/types"
)

const (
	defaultMaxIterations = 10
	defaultMaxRounds     = 3
	defaultQAMaxCycle    = 5
)

func path(cwd, sessionID string) string {
	return registry.PathFor(statestore.ModeAutopilot, cwd, sessionID)
}

// Load returns the Autopilot state for a session, or a zero-value
// (Active=false) state if none exists or it is corrupt.
func Load(cwd, sessionID string) (types.AutopilotState, error) {
	var state types.AutopilotState
	err := statestore.ReadJSON(path(cwd, sessionID), &state)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrCorrupt) {
			return types.AutopilotState{}, nil
		}
		return types.AutopilotState{}, err
	}
	return state, nil
}

func save(cwd, sessionID string, state *types.AutopilotState) error {
	return statestore.AtomicWriteJSON(path(cwd, sessionID), state)
}

// Start begins an Autopilot run, refusing if the registry's mutual
// exclusion rule forbids it (any other mode active in the same scope).
func Start(cwd, sessionID, projectPath, idea string, maxIterations int) error {
	if ok, reason := registry.CanStart(registry.Autopilot, cwd, sessionID); !ok {
		return fmt.Errorf("autopilot cannot start: %s", reason)
	}
	if maxIterations == 0 {
		maxIterations = defaultMaxIterations
	}
	state := types.AutopilotState{
		ModeCommon: types.ModeCommon{
			Active:      true,
			SessionID:   sessionID,
			ProjectPath: projectPath,
			StartedAt:   time.Now().UTC(),
		},
		Phase:          types.PhaseExpansion,
		Iteration:      1,
		MaxIterations:  maxIterations,
		OriginalIdea:   idea,
		PhaseDurations: map[types.AutopilotPhase]time.Duration{},
	}
	return save(cwd, sessionID, &state)
}

// Clear removes the Autopilot record.
func Clear(cwd, sessionID string) error {
	return registry.ClearMode(statestore.ModeAutopilot, cwd, sessionID)
}

// RecordVerdict records one architect verdict into the current validation
// round. When all three verdict types have reported for the round and at
// least one is REJECTED, a new round starts if rounds remain, else the
// pipeline fails. A complete round with NEEDS_FIX but no REJECTED verdict
// starts no new round.
func RecordVerdict(cwd, sessionID string, v types.Verdict) error {
	state, err := Load(cwd, sessionID)
	if err != nil {
		return err
	}
	if !state.Active {
		return errs.ErrNotFound
	}
	if state.Validation == nil {
		state.Validation = &types.ValidationSubRecord{Round: 1, MaxRounds: defaultMaxRounds}
	}

	replaced := false
	for i, existing := range state.Validation.Verdicts {
		if existing.Type == v.Type {
			state.Validation.Verdicts[i] = v
			replaced = true
			break
		}
	}
	if !replaced {
		state.Validation.Verdicts = append(state.Validation.Verdicts, v)
	}

	if roundComplete(state.Validation) && !allApproved(state.Validation) && hasRejected(state.Validation) {
		if state.Validation.Round < state.Validation.MaxRounds {
			state.Validation.Round++
			state.Validation.Verdicts = nil
		} else {
			state.Phase = types.PhaseFailed
		}
	}

	return save(cwd, sessionID, &state)
}

func roundComplete(v *types.ValidationSubRecord) bool {
	seen := map[types.VerdictType]bool{}
	for _, verdict := range v.Verdicts {
		seen[verdict.Type] = true
	}
	return seen[types.VerdictFunctional] && seen[types.VerdictSecurity] && seen[types.VerdictQuality]
}

func allApproved(v *types.ValidationSubRecord) bool {
	if !roundComplete(v) {
		return false
	}
	for _, verdict := range v.Verdicts {
		if verdict.Result != types.VerdictApproved {
			return false
		}
	}
	return true
}

func hasRejected(v *types.ValidationSubRecord) bool {
	for _, verdict := range v.Verdicts {
		if verdict.Result == types.VerdictRejected {
			return true
		}
	}
	return false
}

// Advance runs one stop-event pass over the pipeline: checks the safety
// cap, then looks for the phase-appropriate completion token in transcript
// and drives the corresponding transition.
func Advance(cwd, sessionID, transcript string) (registry.StopDecision, error) {
	state, err := Load(cwd, sessionID)
	if err != nil {
		return registry.StopDecision{}, err
	}
	if !state.Active || state.SessionID != sessionID {
		return registry.StopDecision{ShouldBlock: false}, nil
	}

	if state.Phase == types.PhaseComplete || state.Phase == types.PhaseFailed {
		return registry.StopDecision{ShouldBlock: false}, nil
	}

	if state.Iteration >= state.MaxIterations {
		state.Phase = types.PhaseFailed
		if err := save(cwd, sessionID, &state); err != nil {
			return registry.StopDecision{}, err
		}
		return registry.StopDecision{ShouldBlock: false}, nil
	}

	switch state.Phase {
	case types.PhaseExpansion:
		if signals.HasToken(transcript, signals.ExpansionComplete) {
			state.Phase = types.PhasePlanning
		}
	case types.PhasePlanning:
		if signals.HasToken(transcript, signals.PlanningComplete) {
			state.Phase = types.PhaseExecution
		}
	case types.PhaseExecution:
		if signals.HasToken(transcript, signals.ExecutionComplete) {
			if res := transitionExecutionToQA(cwd, sessionID, &state); !res.Success {
				return registry.StopDecision{}, fmt.Errorf("execution to qa transition: %w", res.Err)
			}
		}
	case types.PhaseQA:
		if signals.HasToken(transcript, signals.QAComplete) {
			if res := transitionQAToValidation(cwd, sessionID, &state); !res.Success {
				return registry.StopDecision{}, fmt.Errorf("qa to validation transition: %w", res.Err)
			}
		}
	case types.PhaseValidation:
		if signals.HasToken(transcript, signals.AutopilotComplete) && allApproved(state.Validation) {
			state.Phase = types.PhaseComplete
		}
	}

	if state.Phase == types.PhaseComplete || state.Phase == types.PhaseFailed {
		if err := save(cwd, sessionID, &state); err != nil {
			return registry.StopDecision{}, err
		}
		return registry.StopDecision{ShouldBlock: false}, nil
	}

	state.Iteration++
	if err := save(cwd, sessionID, &state); err != nil {
		return registry.StopDecision{}, err
	}
	return registry.StopDecision{
		ShouldBlock: true,
		Message:     fmt.Sprintf("Autopilot phase %s (iteration %d of %d).", state.Phase, state.Iteration, state.MaxIterations),
		Mode:        string(registry.Autopilot),
		Metadata:    map[string]any{"phase": state.Phase, "iteration": state.Iteration},
	}, nil
}

// transitionExecutionToQA implements the transactional execution->qa
// transition (spec step order): preserve the Ralph iteration count,
// terminate Ralph and its linked Ultrawork, switch phase to qa, start
// UltraQA. If starting UltraQA fails, the phase switch and preserved
// iteration count are rolled back — but Ralph's termination is NOT
// reversible and is accepted as a side effect (see DESIGN.md's resolution
// of this transition's rollback semantics).
func transitionExecutionToQA(cwd, sessionID string, state *types.AutopilotState) transition.Result {
	steps := []transition.Step{
		{
			Name: "preserve-ralph-iteration",
			Do: func() error {
				ralphState, err := ralph.Load(cwd, sessionID)
				if err != nil {
					return err
				}
				state.Execution = &types.ExecutionSubRecord{RalphIterationsPreserved: ralphState.Iteration}
				return nil
			},
			Undo: func() error { state.Execution = nil; return nil },
		},
		{
			Name: "terminate-ralph",
			Do:   func() error { return ralph.Cancel(cwd, sessionID) },
		},
		{
			Name: "switch-phase-qa",
			Do:   func() error { state.Phase = types.PhaseQA; return nil },
			Undo: func() error { state.Phase = types.PhaseExecution; return nil },
		},
		{
			Name: "start-ultraqa",
			Do:   func() error { return ultraqa.Start(cwd, sessionID, state.ProjectPath, defaultQAMaxCycle) },
		},
	}
	res := transition.Run(steps, nil)
	if err := save(cwd, sessionID, state); err != nil {
		res.Success = false
		res.Err = err
	}
	return res
}

// transitionQAToValidation implements the transactional qa->validation
// transition: initialize the validation sub-record, clear UltraQA, switch
// phase to validation.
func transitionQAToValidation(cwd, sessionID string, state *types.AutopilotState) transition.Result {
	steps := []transition.Step{
		{
			Name: "init-validation",
			Do: func() error {
				state.Validation = &types.ValidationSubRecord{Round: 1, MaxRounds: defaultMaxRounds}
				return nil
			},
			Undo: func() error { state.Validation = nil; return nil },
		},
		{
			Name: "clear-ultraqa",
			Do:   func() error { return ultraqa.Clear(cwd, sessionID) },
		},
		{
			Name: "switch-phase-validation",
			Do:   func() error { state.Phase = types.PhaseValidation; return nil },
			Undo: func() error { state.Phase = types.PhaseQA; return nil },
		},
	}
	res := transition.Run(steps, nil)
	if err := save(cwd, sessionID, state); err != nil {
		res.Success = false
		res.Err = err
	}
	return res
}
