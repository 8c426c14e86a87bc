package enforcer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/omc-dev/coordinator/pkg/errs"
	"github.com/omc-dev/coordinator/pkg/metrics"
	"github.com/omc-dev/coordinator/pkg/modes/autopilot"
	"github.com/omc-dev/coordinator/pkg/modes/ralph"
	"github.com/omc-dev/coordinator/pkg/modes/registry"
	"github.com/omc-dev/coordinator/pkg/modes/ultrawork"
	"github.com/omc-dev/coordinator/pkg/statestore"
	"github.com/omc-dev/coordinator/pkg/types"
)

const toolErrorMaxAge = 60 * time.Second
const toolErrorRetryLimit = 5
const todoContinuationCap = 5

// Config tunes enforcer behavior beyond the always-on mode priority chain.
type Config struct {
	// EnableTodoContinuation re-enables the legacy fourth-priority
	// todo-continuation block; disabled by default per the current
	// contract (see DESIGN.md's Open Question 2 resolution).
	EnableTodoContinuation bool
}

// Input is everything the enforcer needs to decide a single stop event.
type Input struct {
	SessionID     string
	Cwd           string
	StopReason    string
	UserRequested bool
	Transcript    string
	TeamPipeline  *types.TeamPipelineState
	PRD           *types.PRD
	TodosPending  bool
}

// Decision is the enforcer's output. Continue is always true — blocking is
// expressed entirely through Message, which the host injects into the next
// turn (soft enforcement).
type Decision struct {
	Continue    bool
	ShouldBlock bool
	Message     string
	Mode        string
	Metadata    map[string]any
}

var contextLimitMarkers = []string{"context_limit", "context-limit", "context window", "max_context", "context_window_exceeded"}

var explicitAbortTokens = []string{"user_cancel", "user_interrupt", "ctrl_c", "manual_stop"}
var genericAbortTokens = []string{"abort", "cancel", "interrupt"}

// Enforce decides a single stop event. It never returns an error to the
// caller in a way that should fail the host — callers are expected to
// treat any error as "allow stop, no message" per the propagation policy.
func Enforce(cfg Config, in Input) (Decision, error) {
	if isContextLimit(in.StopReason) {
		return Decision{Continue: true}, nil
	}
	if isUserAbort(in.StopReason, in.UserRequested) {
		return Decision{Continue: true}, nil
	}

	guidance, err := retryGuidance(in.Cwd)
	if err != nil {
		guidance = ""
	}

	if d, ok, err := tryRalph(in); err != nil {
		return Decision{}, err
	} else if ok {
		return finalize(d, guidance), nil
	}

	if d, ok, err := tryAutopilot(in); err != nil {
		return Decision{}, err
	} else if ok {
		return finalize(d, guidance), nil
	}

	if d, ok, err := tryUltrawork(in); err != nil {
		return Decision{}, err
	} else if ok {
		return finalize(d, guidance), nil
	}

	if cfg.EnableTodoContinuation && in.TodosPending {
		d, ok, err := tryTodoContinuation(in)
		if err != nil {
			return Decision{}, err
		}
		if ok {
			return finalize(d, guidance), nil
		}
	}

	return Decision{Continue: true}, nil
}

func tryRalph(in Input) (registry.StopDecision, bool, error) {
	d, err := ralph.OnStop(in.Cwd, in.SessionID, in.Transcript, in.TeamPipeline, in.PRD)
	if err != nil {
		return registry.StopDecision{}, false, err
	}
	metrics.ModeTransitionsTotal.WithLabelValues("ralph", outcome(d.ShouldBlock)).Inc()
	return d, d.ShouldBlock, nil
}

func tryAutopilot(in Input) (registry.StopDecision, bool, error) {
	d, err := autopilot.Advance(in.Cwd, in.SessionID, in.Transcript)
	if err != nil {
		return registry.StopDecision{}, false, err
	}
	metrics.ModeTransitionsTotal.WithLabelValues("autopilot", outcome(d.ShouldBlock)).Inc()
	return d, d.ShouldBlock, nil
}

func tryUltrawork(in Input) (registry.StopDecision, bool, error) {
	d, err := ultrawork.OnStop(in.Cwd, in.SessionID)
	if err != nil {
		return registry.StopDecision{}, false, err
	}
	metrics.ModeTransitionsTotal.WithLabelValues("ultrawork", outcome(d.ShouldBlock)).Inc()
	return d, d.ShouldBlock, nil
}

func tryTodoContinuation(in Input) (registry.StopDecision, bool, error) {
	path := statestore.DocPath(in.Cwd, "todo-continuation-attempts-"+in.SessionID+".json")
	var counter struct{ Attempts int }
	err := statestore.ReadJSON(path, &counter)
	if err != nil && !errors.Is(err, errs.ErrNotFound) && !errors.Is(err, errs.ErrCorrupt) {
		return registry.StopDecision{}, false, err
	}
	if counter.Attempts >= todoContinuationCap {
		return registry.StopDecision{}, false, nil
	}
	counter.Attempts++
	if err := statestore.AtomicWriteJSON(path, &counter); err != nil {
		return registry.StopDecision{}, false, err
	}
	return registry.StopDecision{
		ShouldBlock: true,
		Message:     fmt.Sprintf("Pending todos remain (attempt %d of %d) — continue working through them.", counter.Attempts, todoContinuationCap),
		Mode:        "none",
		Metadata:    map[string]any{"todo_continuation_attempt": counter.Attempts},
	}, true, nil
}

func finalize(d registry.StopDecision, guidance string) Decision {
	msg := d.Message
	if guidance != "" {
		msg = guidance + "\n\n" + msg
	}
	return Decision{
		Continue:    true,
		ShouldBlock: d.ShouldBlock,
		Message:     msg,
		Mode:        d.Mode,
		Metadata:    d.Metadata,
	}
}

func retryGuidance(cwd string) (string, error) {
	var rec types.LastToolError
	err := statestore.ReadJSON(statestore.DocPath(cwd, "last-tool-error.json"), &rec)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrCorrupt) {
			return "", nil
		}
		return "", err
	}
	if time.Since(rec.Timestamp) > toolErrorMaxAge {
		return "", nil
	}
	if rec.RetryCount >= toolErrorRetryLimit {
		return fmt.Sprintf("Tool %q has failed %d times (%s) — try a different approach instead of retrying.", rec.ToolName, rec.RetryCount, rec.Error), nil
	}
	return fmt.Sprintf("Tool %q failed (%s) — consider retrying before continuing.", rec.ToolName, rec.Error), nil
}

func isContextLimit(reason string) bool {
	lower := strings.ToLower(reason)
	for _, marker := range contextLimitMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isUserAbort(reason string, userRequested bool) bool {
	lower := strings.ToLower(reason)
	for _, tok := range explicitAbortTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	if !userRequested {
		return false
	}
	for _, tok := range genericAbortTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

func outcome(blocked bool) string {
	if blocked {
		return "blocked"
	}
	return "allowed"
}
