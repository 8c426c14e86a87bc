package ralph

import (
	"errors"
	"fmt"
	"time"

	"github.com/omc-dev/coordinator/pkg/errs"
	"github.com/omc-dev/coordinator/pkg/modes/registry"
	"github.com/omc-dev/coordinator/pkg/modes/verification"
	"github.com/omc-dev/coordinator/pkg/statestore"
	"github.com/omc-dev/coordinator/pkg/types"
)

const defaultMaxIterations = 50

// StartOptions configures a new Ralph loop.
type StartOptions struct {
	ProjectPath     string
	Prompt          string
	MaxIterations   int // 0 => defaultMaxIterations
	LinkUltrawork   bool
	PRDMode         bool
	CurrentStoryID  string
}

func path(cwd, sessionID string) string {
	return registry.PathFor(statestore.ModeRalph, cwd, sessionID)
}

// Load returns the Ralph state for a session, or a zero-value (Active=false)
// state if none exists or it is corrupt.
func Load(cwd, sessionID string) (types.RalphState, error) {
	var state types.RalphState
	err := statestore.ReadJSON(path(cwd, sessionID), &state)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrCorrupt) {
			return types.RalphState{}, nil
		}
		return types.RalphState{}, err
	}
	return state, nil
}

// Start begins a Ralph loop, optionally activating a linked Ultrawork
// record sharing the same session id and project path.
func Start(cwd, sessionID string, opts StartOptions) error {
	max := opts.MaxIterations
	if max == 0 {
		max = defaultMaxIterations
	}
	state := types.RalphState{
		ModeCommon: types.ModeCommon{
			Active:      true,
			SessionID:   sessionID,
			ProjectPath: opts.ProjectPath,
			StartedAt:   time.Now().UTC(),
		},
		Iteration:       1,
		MaxIterations:   max,
		OriginalPrompt:  opts.Prompt,
		LinkedUltrawork: opts.LinkUltrawork,
		PRDMode:         opts.PRDMode,
		CurrentStoryID:  opts.CurrentStoryID,
	}
	if err := statestore.AtomicWriteJSON(path(cwd, sessionID), &state); err != nil {
		return err
	}
	if opts.LinkUltrawork {
		linked := types.UltraworkState{
			ModeCommon: types.ModeCommon{
				Active:      true,
				SessionID:   sessionID,
				ProjectPath: opts.ProjectPath,
				StartedAt:   time.Now().UTC(),
			},
			OriginalPrompt: opts.Prompt,
			LinkedToRalph:  true,
		}
		return statestore.AtomicWriteJSON(registry.PathFor(statestore.ModeUltrawork, cwd, sessionID), &linked)
	}
	return nil
}

// StartVerification begins the architect-verification sub-loop for a
// completion claim text Ralph (or its host) detected in the transcript.
// Subsequent OnStop calls for this session will defer to the verification
// protocol until it resolves.
func StartVerification(cwd, sessionID, claim string) error {
	state, err := Load(cwd, sessionID)
	if err != nil {
		return err
	}
	return verification.Start(cwd, sessionID, claim, state.OriginalPrompt)
}

// Cancel clears the Ralph record, its verification record, and its linked
// Ultrawork (unlinked Ultraworks started independently survive).
func Cancel(cwd, sessionID string) error {
	if err := registry.ClearMode(statestore.ModeRalph, cwd, sessionID); err != nil {
		return err
	}
	if err := verification.Clear(cwd, sessionID); err != nil {
		return err
	}
	return registry.ClearLinkedUltrawork(cwd, sessionID)
}

// OnStop implements the five-step Ralph stop-event algorithm. transcript is
// the session transcript text consulted for verification/architect signals;
// teamPipeline and prd are optional external documents Ralph only reads.
func OnStop(cwd, sessionID, transcript string, teamPipeline *types.TeamPipelineState, prd *types.PRD) (registry.StopDecision, error) {
	state, err := Load(cwd, sessionID)
	if err != nil {
		return registry.StopDecision{}, err
	}
	if !state.Active || state.SessionID != sessionID {
		return registry.StopDecision{ShouldBlock: false}, nil
	}

	// 1. Team-pipeline terminal phase.
	if teamPipeline != nil && teamPipeline.Terminal() {
		if err := Cancel(cwd, sessionID); err != nil {
			return registry.StopDecision{}, err
		}
		return registry.StopDecision{ShouldBlock: false}, nil
	}

	// 2. PRD fully complete.
	if state.PRDMode && prd != nil && prd.AllComplete() {
		if err := Cancel(cwd, sessionID); err != nil {
			return registry.StopDecision{}, err
		}
		return registry.StopDecision{ShouldBlock: false}, nil
	}

	// 3. Pending verification takes over the continuation.
	verState, err := verification.Load(cwd, sessionID)
	if err != nil {
		return registry.StopDecision{}, err
	}
	if verState.Pending {
		outcome, err := verification.Advance(cwd, sessionID, transcript)
		if err != nil {
			return registry.StopDecision{}, err
		}
		if outcome.Approved || outcome.ForceAccepted {
			if err := Cancel(cwd, sessionID); err != nil {
				return registry.StopDecision{}, err
			}
			return registry.StopDecision{ShouldBlock: false}, nil
		}
		return registry.StopDecision{
			ShouldBlock: true,
			Message:     outcome.Prompt,
			Mode:        string(registry.Ralph),
			Metadata:    map[string]any{"iteration": state.Iteration, "verification_pending": true},
		}, nil
	}

	// 4. Iteration cap.
	if state.Iteration >= state.MaxIterations {
		if err := Cancel(cwd, sessionID); err != nil {
			return registry.StopDecision{}, err
		}
		return registry.StopDecision{ShouldBlock: false}, nil
	}

	// 5. Increment and continue.
	state.Iteration++
	if err := statestore.AtomicWriteJSON(path(cwd, sessionID), &state); err != nil {
		return registry.StopDecision{}, err
	}
	return registry.StopDecision{
		ShouldBlock: true,
		Message:     continuationPrompt(state, prd),
		Mode:        string(registry.Ralph),
		Metadata:    map[string]any{"iteration": state.Iteration},
	}, nil
}

func continuationPrompt(state types.RalphState, prd *types.PRD) string {
	msg := fmt.Sprintf("Ralph iteration %d of %d. Original task: %s", state.Iteration, state.MaxIterations, state.OriginalPrompt)
	if state.PRDMode && prd != nil {
		pending := 0
		for _, s := range prd.Stories {
			if !s.Complete {
				pending++
			}
		}
		msg += fmt.Sprintf("\n%d PRD stories remaining; current story: %s", pending, state.CurrentStoryID)
	}
	return msg
}
