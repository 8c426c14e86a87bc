package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/omc-dev/coordinator/pkg/swarm"
	"github.com/omc-dev/coordinator/pkg/types"
	"github.com/spf13/cobra"
)

var swarmCmd = &cobra.Command{
	Use:   "swarm",
	Short: "Operator commands for the task pool (operators reclaim stuck work explicitly — there is no auto-reclaim)",
}

func openPool(cmd *cobra.Command) (*swarm.Pool, string, error) {
	cwd, err := resolveCwd(cmd)
	if err != nil {
		return nil, "", err
	}
	p, err := swarm.Open(cmd.Context(), cwd)
	return p, cwd, err
}

var swarmClaimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim the next available task",
	RunE: func(cmd *cobra.Command, args []string) error {
		workerID, _ := cmd.Flags().GetString("worker")
		files, _ := cmd.Flags().GetStringSlice("files")

		p, _, err := openPool(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		var result swarm.ClaimResult
		if len(files) > 0 {
			result, err = p.ClaimForFiles(cmd.Context(), workerID, files)
		} else {
			result, err = p.Claim(cmd.Context(), workerID)
		}
		if err != nil {
			return err
		}

		if !result.Success {
			color.Yellow("no task claimed: %s", result.Reason)
			return nil
		}
		color.Green("✓ claimed %s", result.TaskID)
		fmt.Printf("  %s\n", result.Description)
		return nil
	},
}

var swarmReleaseCmd = &cobra.Command{
	Use:   "release TASK_ID",
	Short: "Return a claimed task to pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workerID, _ := cmd.Flags().GetString("worker")
		p, _, err := openPool(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		ok, err := p.Release(cmd.Context(), workerID, args[0])
		if err != nil {
			return err
		}
		if !ok {
			color.Yellow("task %s was not claimed by %s", args[0], workerID)
			return nil
		}
		color.Green("✓ released %s", args[0])
		return nil
	},
}

var swarmCompleteCmd = &cobra.Command{
	Use:   "complete TASK_ID",
	Short: "Mark a claimed task done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workerID, _ := cmd.Flags().GetString("worker")
		result, _ := cmd.Flags().GetString("result")
		p, _, err := openPool(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		ok, err := p.Complete(cmd.Context(), workerID, args[0], result)
		if err != nil {
			return err
		}
		if !ok {
			color.Yellow("task %s was not claimed by %s", args[0], workerID)
			return nil
		}
		color.Green("✓ completed %s", args[0])
		return nil
	},
}

var swarmFailCmd = &cobra.Command{
	Use:   "fail TASK_ID",
	Short: "Mark a claimed task failed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workerID, _ := cmd.Flags().GetString("worker")
		errMsg, _ := cmd.Flags().GetString("error")
		p, _, err := openPool(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		ok, err := p.Fail(cmd.Context(), workerID, args[0], errMsg)
		if err != nil {
			return err
		}
		if !ok {
			color.Yellow("task %s was not claimed by %s", args[0], workerID)
			return nil
		}
		color.Red("✗ failed %s: %s", args[0], errMsg)
		return nil
	},
}

var swarmReclaimCmd = &cobra.Command{
	Use:   "reclaim TASK_ID",
	Short: "Move a failed task back to claimed under a new worker (explicit operator action — nothing reclaims automatically)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workerID, _ := cmd.Flags().GetString("worker")
		p, _, err := openPool(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		ok, err := p.ReclaimFailed(cmd.Context(), workerID, args[0])
		if err != nil {
			return err
		}
		if !ok {
			color.Yellow("task %s is not in failed status", args[0])
			return nil
		}
		color.Green("✓ reclaimed %s for %s", args[0], workerID)
		return nil
	},
}

var swarmStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show task pool counts and stale-claim cleanup",
	RunE: func(cmd *cobra.Command, args []string) error {
		leaseTimeout, _ := cmd.Flags().GetDuration("lease-timeout")
		cleanup, _ := cmd.Flags().GetBool("cleanup-stale")

		p, _, err := openPool(cmd)
		if err != nil {
			return err
		}
		defer p.Close()

		if cleanup {
			released, err := p.CleanupStaleClaims(cmd.Context(), leaseTimeout)
			if err != nil {
				return err
			}
			if released > 0 {
				color.Yellow("released %d stale claim(s)", released)
			}
		}

		counts, err := p.StatusCounts(cmd.Context())
		if err != nil {
			return err
		}
		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("%s %d  %s %d  %s %d  %s %d\n",
			bold("pending:"), counts[types.TaskPending],
			bold("claimed:"), counts[types.TaskClaimed],
			bold("done:"), counts[types.TaskDone],
			bold("failed:"), counts[types.TaskFailed])
		return nil
	},
}

func init() {
	swarmCmd.AddCommand(swarmClaimCmd)
	swarmCmd.AddCommand(swarmReleaseCmd)
	swarmCmd.AddCommand(swarmCompleteCmd)
	swarmCmd.AddCommand(swarmFailCmd)
	swarmCmd.AddCommand(swarmReclaimCmd)
	swarmCmd.AddCommand(swarmStatusCmd)

	for _, c := range []*cobra.Command{swarmClaimCmd, swarmReleaseCmd, swarmCompleteCmd, swarmFailCmd, swarmReclaimCmd} {
		c.Flags().String("worker", "", "Worker id performing this operation")
		c.MarkFlagRequired("worker")
	}
	swarmClaimCmd.Flags().StringSlice("files", nil, "Prefer a task whose owned-files/file-patterns match one of these paths")
	swarmCompleteCmd.Flags().String("result", "", "Result text to record on the task")
	swarmFailCmd.Flags().String("error", "", "Error text to record on the task")

	swarmStatusCmd.Flags().Duration("lease-timeout", 5*time.Minute, "Claims older than this with no heartbeat are considered stale")
	swarmStatusCmd.Flags().Bool("cleanup-stale", false, "Release stale claims before reporting status")
}
