package main

import (
	"github.com/omc-dev/coordinator/pkg/hooks"
	"github.com/omc-dev/coordinator/pkg/tracker"
	"github.com/omc-dev/coordinator/pkg/types"
	"github.com/spf13/cobra"
)

var subagentStartCmd = &cobra.Command{
	Use:   "subagent-start",
	Short: "Record a subagent spawn and report the current running count",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := resolveCwd(cmd)
		if err != nil {
			return err
		}

		return runHook("tracker", hooks.SubagentHookOutput{Continue: true}, func(in hooks.SubagentStartInput) (hooks.SubagentHookOutput, error) {
			if in.Cwd != "" {
				cwd = in.Cwd
			}
			res, err := tracker.New(cwd).OnSubagentStart(tracker.StartInput{
				AgentID:         in.AgentID,
				AgentType:       in.AgentType,
				SessionID:       in.SessionID,
				TaskDescription: in.TaskDescription,
			})
			if err != nil {
				return hooks.SubagentHookOutput{}, err
			}
			return hooks.SubagentHookOutput{
				Continue: true,
				HookSpecificOutput: hooks.HookInfo{
					AgentCount:  res.RunningCount,
					StaleAgents: res.StaleAgents,
				},
			}, nil
		})
	},
}

var subagentStopCmd = &cobra.Command{
	Use:   "subagent-stop",
	Short: "Record a subagent completion or failure",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := resolveCwd(cmd)
		if err != nil {
			return err
		}

		return runHook("tracker", hooks.SubagentHookOutput{Continue: true}, func(in hooks.SubagentStopInput) (hooks.SubagentHookOutput, error) {
			if in.Cwd != "" {
				cwd = in.Cwd
			}
			t := tracker.New(cwd)
			if err := t.OnSubagentStop(tracker.StopInput{
				AgentID:       in.AgentID,
				Success:       in.Success,
				OutputSummary: in.OutputSummary,
			}); err != nil {
				return hooks.SubagentHookOutput{}, err
			}
			counts, err := t.CountByStatus()
			if err != nil {
				return hooks.SubagentHookOutput{}, err
			}
			return hooks.SubagentHookOutput{
				Continue:           true,
				HookSpecificOutput: hooks.HookInfo{AgentCount: counts[types.SubagentRunning]},
			}, nil
		})
	},
}
