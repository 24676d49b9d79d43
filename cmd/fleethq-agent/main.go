// Command fleethq-agent runs the worker agent: it connects to the
// orchestrator, executes deployRepository/removeReplica tasks against the
// local container engine, and reports periodic telemetry.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fleethq/pkg/agent"
	"fleethq/pkg/clock"
	"fleethq/pkg/config"
	"fleethq/pkg/log"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "fleethq-agent",
	Short:   "FleetHQ worker agent: builds and runs deployments on this host",
	Version: Version,
	RunE:    runAgent,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("fleethq-agent version %s (%s)\n", Version, Commit))
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "output logs in JSON format")
	cobra.OnInitialize(initLogging)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg := config.LoadAgent()

	if err := os.MkdirAll(cfg.DeploymentPath, 0o755); err != nil {
		return fmt.Errorf("create deployment path: %w", err)
	}

	a := agent.New(
		cfg.Hostname,
		cfg.DialTarget(),
		agent.NewDockerDriver(),
		agent.NewGoGitDriver(),
		clock.Real{},
		cfg.DeploymentPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Run(ctx)
	return nil
}
