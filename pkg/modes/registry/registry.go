package registry

import (
	"errors"
	"fmt"
	"os"

	"github.com/omc-dev/coordinator/pkg/errs"
	"github.com/omc-dev/coordinator/pkg/statestore"
	"github.com/omc-dev/coordinator/pkg/types"
)

// Name identifies one of the four top-level modes for CanStart checks.
type Name string

const (
	Ralph     Name = "ralph"
	Ultrawork Name = "ultrawork"
	Autopilot Name = "autopilot"
	UltraQA   Name = "ultraqa"
)

// StopDecision is the shared shape every mode's stop-event handling produces
// before the enforcer wraps it into its final host-facing response.
type StopDecision struct {
	ShouldBlock bool
	Message     string
	Mode        string
	Metadata    map[string]any
}

// activeFlag is the minimal shape every mode document shares, enough to
// answer "is this mode active" without depending on each mode's full type.
type activeFlag struct {
	Active bool `json:"Active"`
}

// PathFor resolves a mode's document path: session-scoped when sessionID is
// non-empty, legacy otherwise. It is per (cwd, sessionID) — two sessions in
// the same working directory are independent per spec's mutual-exclusion
// rule.
func PathFor(mode statestore.Mode, cwd, sessionID string) string {
	if sessionID != "" {
		return statestore.SessionScopedPath(mode, sessionID, cwd)
	}
	return statestore.LegacyPath(mode, cwd)
}

// IsActive reports whether mode has an active state document for
// (cwd, sessionID). A missing or corrupt document is treated as inactive,
// matching the "reads return an empty default" failure policy.
func IsActive(mode statestore.Mode, cwd, sessionID string) bool {
	var flag activeFlag
	err := statestore.ReadJSON(PathFor(mode, cwd, sessionID), &flag)
	if err != nil {
		return false
	}
	return flag.Active
}

// CanStart applies the mutual-exclusion rules: autopilot cannot start while
// any other mode is active; ralph and ultraqa are mutually exclusive of
// each other.
func CanStart(mode Name, cwd, sessionID string) (bool, string) {
	switch mode {
	case Autopilot:
		for _, m := range []statestore.Mode{statestore.ModeRalph, statestore.ModeUltrawork, statestore.ModeUltraQA} {
			if IsActive(m, cwd, sessionID) {
				return false, fmt.Sprintf("autopilot cannot start while %s is active", m)
			}
		}
	case Ralph:
		if IsActive(statestore.ModeUltraQA, cwd, sessionID) {
			return false, "ralph cannot start while ultraqa is active"
		}
	case UltraQA:
		if IsActive(statestore.ModeRalph, cwd, sessionID) {
			return false, "ultraqa cannot start while ralph is active"
		}
	}
	return true, ""
}

// ClearMode deletes a mode's state document. Missing files are not an
// error — clearing an already-cleared mode is a no-op.
func ClearMode(mode statestore.Mode, cwd, sessionID string) error {
	err := os.Remove(PathFor(mode, cwd, sessionID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ClearLinkedUltrawork removes the Ultrawork document for (cwd, sessionID)
// only if it was started with linkedToRalph=true — an unlinked Ultrawork
// started independently in the same session must survive a Ralph cancel.
func ClearLinkedUltrawork(cwd, sessionID string) error {
	var state types.UltraworkState
	err := statestore.ReadJSON(PathFor(statestore.ModeUltrawork, cwd, sessionID), &state)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrCorrupt) {
			return nil
		}
		return err
	}
	if !state.LinkedToRalph {
		return nil
	}
	return ClearMode(statestore.ModeUltrawork, cwd, sessionID)
}
