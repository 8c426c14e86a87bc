// Command omc-hook is the coordinator's CLI entrypoint: a host process
// invokes it once per hook event (stop, subagent-start, subagent-stop,
// pre-tool, post-tool), feeding it a JSON payload on stdin and reading a
// JSON decision back on stdout. The swarm and dashboard subcommands are
// operator tools invoked directly from a shell, not by a host hook.
package main

import (
	"fmt"
	"os"

	"github.com/omc-dev/coordinator/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "omc-hook",
	Short: "omc-hook drives the coordinator's mode enforcement and telemetry from host hook events",
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("cwd", "", "Working directory the coordinator state lives under (defaults to the process cwd)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(subagentStartCmd)
	rootCmd.AddCommand(subagentStopCmd)
	rootCmd.AddCommand(preToolCmd)
	rootCmd.AddCommand(postToolCmd)
	rootCmd.AddCommand(swarmCmd)
	rootCmd.AddCommand(dashboardCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// resolveCwd returns the --cwd flag value, falling back to the process's
// actual working directory so hooks invoked without it still resolve state
// relative to wherever the host launched the process from.
func resolveCwd(cmd *cobra.Command) (string, error) {
	cwd, _ := cmd.Flags().GetString("cwd")
	if cwd != "" {
		return cwd, nil
	}
	return os.Getwd()
}
