// Command fleethq runs the central orchestrator: the admin HTTP surface,
// the worker transport, the scaling controller and the registry sweep.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fleethq/pkg/config"
	"fleethq/pkg/log"
	"fleethq/pkg/orchestrator"
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
	Use:     "fleethq",
	Short:   "FleetHQ orchestrator: schedules and scales deployments across registered workers",
	Version: Version,
	RunE:    runServe,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("fleethq version %s (%s)\n", Version, Commit))
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "output logs in JSON format")
	cobra.OnInitialize(initLogging)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.LoadOrchestrator()
	serverLog := log.WithComponent("orchestrator")

	o, err := orchestrator.New(cfg)
	if err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	serverLog.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return o.Shutdown(shutdownCtx)
}
