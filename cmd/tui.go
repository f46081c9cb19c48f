package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"bigrag/internal/config"
	"bigrag/internal/index"
	"bigrag/internal/llm"
	"bigrag/internal/rag"
	"bigrag/internal/tui"
)

func runTUI(ctx context.Context) error {
	root, err := filepath.Abs(cfg.IndexDir)
	if err != nil {
		return err
	}
	cfg.IndexDir = root

	// The alternate screen owns the terminal, so logs go to a file.
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.DataDir, "bigrag.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger = slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: config.ParseLevel(cfg.LogLevel)}))

	idx, err := index.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer idx.Close()

	gen, err := llm.New(cfg)
	if err != nil {
		// Searching still works; asking reports the generation error.
		logger.Warn("answer model unavailable", "provider", cfg.UseProvider, "error", err)
	}

	return tui.Run(ctx, tui.Config{
		AppName:  cfg.AppName,
		Indexer:  idx,
		Pipeline: rag.NewPipeline(idx.Embedder, idx.Vectors, gen, cfg.MaxAnswerDistance, logger),
	})
}
