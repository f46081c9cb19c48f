package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bigrag/internal/config"

	"github.com/spf13/cobra"
)

var (
	flagIndexDir      string
	flagDataDir       string
	flagEmbedProvider string
	flagProvider      string
	flagBackend       string
	flagLogLevel      string
)

// cfg and logger are populated before any subcommand runs.
var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bigrag",
	Short: "Delta indexing and retrieval over a directory of run artifacts",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		applyFlags(cmd)
		logger = cfg.NewLogger()
		slog.SetDefault(logger)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd.Context())
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// applyFlags overrides the loaded configuration with explicitly set flags.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("index-dir") {
		cfg.IndexDir = flagIndexDir
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}
	if flags.Changed("embed-provider") {
		cfg.EmbedProvider = flagEmbedProvider
	}
	if flags.Changed("provider") {
		cfg.UseProvider = flagProvider
	}
	if flags.Changed("backend") {
		cfg.VectorBackend = strings.ToLower(flagBackend)
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagIndexDir, "index-dir", "", "directory to index (overrides INDEX_DIR)")
	pf.StringVar(&flagDataDir, "data-dir", "", "directory holding the index databases (overrides DATA_DIR)")
	pf.StringVar(&flagEmbedProvider, "embed-provider", "", "embedding provider: ollama, openai, voyage, static")
	pf.StringVar(&flagProvider, "provider", "", "answer provider: ollama, openai, anthropic")
	pf.StringVar(&flagBackend, "backend", "", "vector backend: sqlite, postgres")
	pf.StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error")
}
