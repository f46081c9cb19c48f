package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"bigrag/internal/index"

	"github.com/spf13/cobra"
)

var (
	flagWorkers int
	flagUserID  string
)

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Run one delta indexing pass",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			cfg.IndexDir = args[0]
		}
		if cmd.Flags().Changed("workers") {
			cfg.EmbedWorkers = flagWorkers
		}
		root, err := filepath.Abs(cfg.IndexDir)
		if err != nil {
			return err
		}
		cfg.IndexDir = root

		ctx := cmd.Context()
		idx, err := index.Open(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer idx.Close()

		fmt.Printf("Indexing %s...\n", root)
		res, err := idx.Index(ctx, index.RunOptions{UserID: flagUserID})
		if res != nil {
			printResult(res)
		}
		return err
	},
}

func printResult(res *index.Result) {
	fmt.Printf("\nDone in %s (run %s)\n", (time.Duration(res.DurationMS) * time.Millisecond).Round(time.Millisecond), res.RunID)
	fmt.Printf("  Files:   %d new, %d updated, %d deleted, %d unchanged, %d failed\n",
		res.NewFiles, res.UpdatedFiles, res.DeletedFiles, res.UnchangedFiles, res.FailedFiles)
	fmt.Printf("  Chunks:  %d indexed\n", res.IndexedDocuments)
	if res.OrphansPurged > 0 {
		fmt.Printf("  Orphans: %d purged\n", res.OrphansPurged)
	}
}

func init() {
	indexCmd.Flags().IntVar(&flagWorkers, "workers", 4, "parallel embedding workers (overrides EMBED_WORKERS)")
	indexCmd.Flags().StringVar(&flagUserID, "user-id", index.DefaultUserID, "user id stamped on chunks written by this run")
	rootCmd.AddCommand(indexCmd)
}
