package main

import (
	"errors"

	"github.com/omc-dev/coordinator/pkg/enforcer"
	"github.com/omc-dev/coordinator/pkg/errs"
	"github.com/omc-dev/coordinator/pkg/hooks"
	"github.com/omc-dev/coordinator/pkg/statestore"
	"github.com/omc-dev/coordinator/pkg/types"
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Decide whether an active persistent mode blocks the host's stop event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := resolveCwd(cmd)
		if err != nil {
			return err
		}
		todosPending, _ := cmd.Flags().GetBool("todos-pending")
		enableTodoContinuation, _ := cmd.Flags().GetBool("enable-todo-continuation")

		return runHook("stop", hooks.StopDecision{Continue: true}, func(in hooks.StopInput) (hooks.StopDecision, error) {
			if in.Cwd != "" {
				cwd = in.Cwd
			}
			decision, err := enforcer.Enforce(enforcer.Config{EnableTodoContinuation: enableTodoContinuation}, enforcer.Input{
				SessionID:     in.SessionID,
				Cwd:           cwd,
				StopReason:    in.StopReason,
				UserRequested: in.UserRequested,
				Transcript:    in.Transcript,
				TeamPipeline:  loadTeamPipeline(cwd),
				PRD:           loadPRD(cwd),
				TodosPending:  todosPending,
			})
			if err != nil {
				return hooks.StopDecision{}, err
			}
			return hooks.StopDecision{Continue: true, Message: decision.Message}, nil
		})
	},
}

func init() {
	stopCmd.Flags().Bool("todos-pending", false, "Whether the host has pending todos outstanding (drives the optional todo-continuation block)")
	stopCmd.Flags().Bool("enable-todo-continuation", false, "Re-enable the legacy todo-continuation priority tier")
}

// loadTeamPipeline reads the external team-pipeline coordinator's state,
// which Ralph only ever reads. A missing or corrupt document means no
// enclosing pipeline is active.
func loadTeamPipeline(cwd string) *types.TeamPipelineState {
	var state types.TeamPipelineState
	if err := statestore.ReadJSON(statestore.DocPath(cwd, "team-pipeline.json"), &state); err != nil {
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrCorrupt) {
			return nil
		}
		return nil
	}
	return &state
}

// loadPRD reads the optional task-list document driving a Ralph loop.
func loadPRD(cwd string) *types.PRD {
	var prd types.PRD
	if err := statestore.ReadJSON(statestore.DocPath(cwd, "prd.json"), &prd); err != nil {
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrCorrupt) {
			return nil
		}
		return nil
	}
	return &prd
}
