// Command enginectl runs engine operations from the shell against the
// configured backends.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"assistant-engine/internal/bootstrap"
	"assistant-engine/internal/config"
	"assistant-engine/internal/logging"
)

var (
	ownerScope string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "enginectl",
	Short:         "Operate the assistant engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&ownerScope, "owner", "o", "", "owner scope to act for")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.AddCommand(ingestCmd, askCmd, chatCmd, sessionsCmd, purgeCmd, renderCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openApp wires the engine for one command invocation.
func openApp(cmd *cobra.Command) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger := logging.New(logging.Options{Level: level, File: cfg.Log.File})
	app, err := bootstrap.New(cmd.Context(), cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", zap.Error(err))
		return nil, err
	}
	return app, nil
}
