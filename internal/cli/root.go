// Package cli implements the assistant-core CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/neuraplayapp/assistant-core/internal/config"
)

var (
	configPath string
	dbPath     string
	userFlag   string
	verbose    bool

	cfg    *config.Config
	logger = zap.NewNop()
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "assistant-core",
	Short: "Memory-aware request core for a conversational assistant",
	Long: "Routes user messages to an execution mode, extracts and supersedes personal memories, " +
		"and recalls them for personalization. SQLite-backed, single binary.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logger.Sync()
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.assistant-core/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $ASSISTANT_CORE_DB or ~/.assistant-core/memory.db)")
	RootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "default", "User the memories belong to")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging to stderr")
}

func setup(cmd *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		path = filepath.Join(config.DefaultDir(), "config.yaml")
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if dbPath != "" {
		c.Database.Path = dbPath
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	cfg = c

	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{"stderr"}
	level := c.Logging.Level
	if verbose {
		level = "debug"
	}
	if err := zc.Level.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	l, err := zc.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	logger = l.With(zap.String("cmd", cmd.Name()))
	return nil
}

func exitErr(msg string, err error) {
	logger.Error(msg, zap.Error(err))
	_ = logger.Sync()
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
