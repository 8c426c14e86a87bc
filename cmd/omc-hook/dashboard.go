package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/omc-dev/coordinator/pkg/statestore"
	"github.com/omc-dev/coordinator/pkg/swarm"
	"github.com/omc-dev/coordinator/pkg/tracker"
	"github.com/omc-dev/coordinator/pkg/types"
	"github.com/spf13/cobra"
)

const dashboardDebounce = 300 * time.Millisecond

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Read-only, live-refreshed terminal view of task pool and subagent state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := resolveCwd(cmd)
		if err != nil {
			return err
		}

		redraw(cwd)

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("start dashboard watcher: %w", err)
		}
		defer watcher.Close()

		stateDir := statestore.StateDir(cwd)
		if err := os.MkdirAll(stateDir, 0o755); err != nil {
			return err
		}
		if err := watcher.Add(stateDir); err != nil {
			return fmt.Errorf("watch state dir: %w", err)
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		var debounce *time.Timer
		signals := make(chan struct{}, 1)

		for {
			select {
			case <-sigCh:
				fmt.Println("\nexiting")
				return nil

			case _, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(dashboardDebounce, func() {
					select {
					case signals <- struct{}{}:
					default:
					}
				})

			case <-signals:
				redraw(cwd)

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(os.Stderr, "dashboard watcher error: %v\n", err)
			}
		}
	},
}

func redraw(cwd string) {
	fmt.Print("\033[H\033[2J")
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Println(bold(cyan("omc-hook dashboard")) + "  " + time.Now().Format("15:04:05"))
	fmt.Println()

	printSwarmSection(cwd)
	fmt.Println()
	printTrackerSection(cwd)
}

func printSwarmSection(cwd string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Println(bold("Task pool"))

	ctx := context.Background()
	p, err := swarm.Open(ctx, cwd)
	if err != nil {
		color.Red("  unavailable: %v", err)
		return
	}
	defer p.Close()

	counts, err := p.StatusCounts(ctx)
	if err != nil {
		color.Red("  unavailable: %v", err)
		return
	}
	fmt.Printf("  pending=%d claimed=%d done=%d failed=%d\n",
		counts[types.TaskPending], counts[types.TaskClaimed], counts[types.TaskDone], counts[types.TaskFailed])
}

func printTrackerSection(cwd string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Println(bold("Subagents"))

	t := tracker.New(cwd)
	counts, err := t.CountByStatus()
	if err != nil {
		color.Red("  unavailable: %v", err)
		return
	}
	fmt.Printf("  running=%d completed=%d failed=%d\n",
		counts[types.SubagentRunning], counts[types.SubagentCompleted], counts[types.SubagentFailed])

	efficiency, err := t.ParallelEfficiency()
	if err == nil {
		fmt.Printf("  parallel efficiency: %d%%\n", efficiency)
	}

	interventions, err := t.SuggestInterventions()
	if err != nil || len(interventions) == 0 {
		return
	}
	fmt.Println(bold("Suggested interventions"))
	for _, iv := range interventions {
		marker := "•"
		if iv.AutoExecute {
			marker = color.RedString("✗")
		} else {
			marker = color.YellowString("!")
		}
		fmt.Printf("  %s %s (%s): %s\n", marker, iv.AgentID, iv.Type, iv.Detail)
	}
}
