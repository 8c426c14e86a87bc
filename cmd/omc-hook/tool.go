package main

import (
	"errors"
	"time"

	"github.com/omc-dev/coordinator/pkg/errs"
	"github.com/omc-dev/coordinator/pkg/hooks"
	"github.com/omc-dev/coordinator/pkg/statestore"
	"github.com/omc-dev/coordinator/pkg/tracker"
	"github.com/omc-dev/coordinator/pkg/types"
	"github.com/spf13/cobra"
)

var preToolCmd = &cobra.Command{
	Use:   "pre-tool",
	Short: "Record a tool invocation's start for replay and timing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := resolveCwd(cmd)
		if err != nil {
			return err
		}

		return runHook("tracker", hooks.ToolDecision{Continue: true}, func(in hooks.PreToolInput) (hooks.ToolDecision, error) {
			if in.Cwd != "" {
				cwd = in.Cwd
			}
			if in.AgentID != "" {
				_ = tracker.AppendReplayEvent(cwd, in.SessionID, tracker.ReplayRecord{
					AgentID: in.AgentID,
					Type:    string(types.EventToolStart),
					Attrs:   map[string]any{"tool": in.ToolName},
				})
			}
			return hooks.ToolDecision{Continue: true}, nil
		})
	},
}

var postToolCmd = &cobra.Command{
	Use:   "post-tool",
	Short: "Record a tool invocation's outcome and surface retry guidance for the next stop event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := resolveCwd(cmd)
		if err != nil {
			return err
		}

		return runHook("tracker", hooks.ToolDecision{Continue: true}, func(in hooks.PostToolInput) (hooks.ToolDecision, error) {
			if in.Cwd != "" {
				cwd = in.Cwd
			}

			if in.AgentID != "" {
				t := tracker.New(cwd)
				if err := t.RecordToolUsageWithTiming(in.AgentID, in.ToolName, in.DurationMs, in.Success); err != nil {
					return hooks.ToolDecision{}, err
				}
				_ = tracker.AppendReplayEvent(cwd, in.SessionID, tracker.ReplayRecord{
					AgentID: in.AgentID,
					Type:    string(types.EventToolEnd),
					Attrs:   map[string]any{"tool": in.ToolName, "duration_ms": float64(in.DurationMs)},
				})
			}

			if !in.Success {
				if err := recordToolError(cwd, in); err != nil {
					return hooks.ToolDecision{}, err
				}
			}

			return hooks.ToolDecision{Continue: true}, nil
		})
	},
}

// recordToolError updates the scratch record the enforcer consults for
// retry guidance at the next stop event. The retry count carries over
// across consecutive failures of the same tool with the same error
// message; any other failure resets it to 1.
func recordToolError(cwd string, in hooks.PostToolInput) error {
	path := statestore.DocPath(cwd, "last-tool-error.json")

	var prev types.LastToolError
	err := statestore.ReadJSON(path, &prev)
	if err != nil && !errors.Is(err, errs.ErrNotFound) && !errors.Is(err, errs.ErrCorrupt) {
		return err
	}

	retryCount := 1
	if prev.ToolName == in.ToolName && prev.Error == in.Error {
		retryCount = prev.RetryCount + 1
	}

	return statestore.AtomicWriteJSON(path, types.LastToolError{
		ToolName:         in.ToolName,
		ToolInputPreview: "",
		Error:            in.Error,
		Timestamp:        time.Now().UTC(),
		RetryCount:       retryCount,
	})
}
