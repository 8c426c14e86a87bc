package ultrawork

import (
	"errors"
	"fmt"
	"time"

	"github.com/omc-dev/coordinator/pkg/errs"
	"github.com/omc-dev/coordinator/pkg/modes/registry"
	"github.com/omc-dev/coordinator/pkg/statestore"
	"github.com/omc-dev/coordinator/pkg/types"
)

func path(cwd, sessionID string) string {
	return registry.PathFor(statestore.ModeUltrawork, cwd, sessionID)
}

// Load returns the Ultrawork state for a session, or a zero-value
// (Active=false) state if none exists or it is corrupt.
func Load(cwd, sessionID string) (types.UltraworkState, error) {
	var state types.UltraworkState
	err := statestore.ReadJSON(path(cwd, sessionID), &state)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrCorrupt) {
			return types.UltraworkState{}, nil
		}
		return types.UltraworkState{}, err
	}
	return state, nil
}

// Start activates Ultrawork for a session, independent of any Ralph link.
func Start(cwd, sessionID, projectPath, prompt string) error {
	state := types.UltraworkState{
		ModeCommon: types.ModeCommon{
			Active:      true,
			SessionID:   sessionID,
			ProjectPath: projectPath,
			StartedAt:   time.Now().UTC(),
		},
		OriginalPrompt: prompt,
		LinkedToRalph:  false,
	}
	return statestore.AtomicWriteJSON(path(cwd, sessionID), &state)
}

// Clear deactivates Ultrawork for a session unconditionally.
func Clear(cwd, sessionID string) error {
	return registry.ClearMode(statestore.ModeUltrawork, cwd, sessionID)
}

// OnStop unconditionally blocks while Ultrawork is active, incrementing its
// reinforcement counter on every pass — todos remaining or not.
func OnStop(cwd, sessionID string) (registry.StopDecision, error) {
	state, err := Load(cwd, sessionID)
	if err != nil {
		return registry.StopDecision{}, err
	}
	if !state.Active || state.SessionID != sessionID {
		return registry.StopDecision{ShouldBlock: false}, nil
	}

	state.ReinforcementCount++
	if err := statestore.AtomicWriteJSON(path(cwd, sessionID), &state); err != nil {
		return registry.StopDecision{}, err
	}

	return registry.StopDecision{
		ShouldBlock: true,
		Message:     fmt.Sprintf("Ultrawork reinforcement #%d — keep working: %s", state.ReinforcementCount, state.OriginalPrompt),
		Mode:        string(registry.Ultrawork),
		Metadata:    map[string]any{"reinforcement_count": state.ReinforcementCount},
	}, nil
}
