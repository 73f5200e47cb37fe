// Package cli provides the cobra command line interface for the hearthd
// daemon: serve starts the host process, version prints build information.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hearthd/hearthd/internal/app"
	"github.com/hearthd/hearthd/internal/config"
	"github.com/hearthd/hearthd/internal/publish"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Setup registers an installation's tasks and commands on the app before it
// starts. The binary's main supplies it.
type Setup func(*app.App) error

// BuildCLI assembles the root command. setup may be nil for a bare daemon.
func BuildCLI(setup Setup) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "hearthd",
		Short: "hearthd: a scheduled-task host with an HTTP data and command surface",
		Long: `hearthd runs periodic and calendar-scheduled tasks against a shared
data tree and exposes the tree and registered commands over HTTP as JSON.`,
		Version: Version,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (built-in defaults when empty)")

	rootCmd.AddCommand(buildServeCommand(&configFile, setup))

	return rootCmd
}

func buildServeCommand(configFile *string, setup Setup) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the hearthd daemon",
		Long:  "Load the configuration, start all registered tasks and the HTTP server, and run until SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*configFile, setup)
		},
	}
}

func serve(configFile string, setup Setup) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := buildLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	a := app.New(cfg, logger)
	if setup != nil {
		if err := setup(a); err != nil {
			return fmt.Errorf("setup failed: %w", err)
		}
	}
	if cfg.Publish.URL != "" {
		sink := &publish.HTTPSink{URL: cfg.Publish.URL}
		interval := time.Duration(cfg.Publish.IntervalSeconds) * time.Second
		if err := a.AddPublisher("publish", sink, interval); err != nil {
			return fmt.Errorf("failed to register publisher: %w", err)
		}
	}

	if err := a.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	return a.Stop()
}

// buildLogger creates a production zap logger at the configured level.
func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}
