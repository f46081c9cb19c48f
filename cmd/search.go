package cmd

import (
	"fmt"
	"strings"

	"bigrag/internal/index"
	"bigrag/internal/llm"
	"bigrag/internal/rag"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var (
	flagK         int
	flagAnswer    bool
	flagSearchUID string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index and optionally answer from the results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		question, err := rag.ValidateQuery(strings.Join(args, " "))
		if err != nil {
			return err
		}

		idx, err := index.Open(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer idx.Close()

		var gen llm.Generator
		if flagAnswer {
			if gen, err = llm.New(cfg); err != nil {
				return err
			}
		}
		p := rag.NewPipeline(idx.Embedder, idx.Vectors, gen, cfg.MaxAnswerDistance, logger)

		s := &rag.State{Question: question, UserID: flagSearchUID, K: flagK}
		stages := []rag.Stage{p.Retrieve}
		if flagAnswer {
			stages = append(stages, p.Generate)
		}
		if err := p.Run(ctx, s, stages...); err != nil {
			return err
		}

		hits := rag.ToHits(s.Results)
		if len(hits) == 0 {
			fmt.Println("No results.")
		}
		for i, h := range hits {
			fmt.Printf("%d. %s (chunk %d, score %.4f)\n   %s\n\n", i+1, h.FilePath, h.ChunkIndex, h.Score, h.Snippet)
		}

		if flagAnswer {
			out, err := glamour.Render(s.Answer, "auto")
			if err != nil {
				out = s.Answer
			}
			fmt.Println(out)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&flagK, "top-k", "k", rag.DefaultK, "number of chunks to retrieve")
	searchCmd.Flags().BoolVar(&flagAnswer, "answer", false, "generate an answer from the retrieved chunks")
	searchCmd.Flags().StringVar(&flagSearchUID, "user-id", "", "only search chunks written for this user id")
	rootCmd.AddCommand(searchCmd)
}
