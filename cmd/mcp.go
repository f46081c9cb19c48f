package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bigrag/internal/index"
	"bigrag/internal/rag"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start a stdio MCP server exposing index search tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	idx, err := index.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer idx.Close()

	// Answers are not exposed over MCP; the calling agent does its own generation.
	pipeline := rag.NewPipeline(idx.Embedder, idx.Vectors, nil, cfg.MaxAnswerDistance, logger)
	return mcpserver.ServeStdio(newMCPServer(idx, pipeline))
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func newMCPServer(idx *index.Indexer, pipeline *rag.Pipeline) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("bigrag", "1.0.0", mcpserver.WithToolCapabilities(false))
	s.AddTool(searchIndexTool(), makeSearchHandler(pipeline))
	s.AddTool(listIndexedFilesTool(), makeListFilesHandler(idx))
	s.AddTool(runDeltaIndexTool(), makeRunDeltaHandler(idx))
	return s
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchIndexTool() mcp.Tool {
	return mcp.NewTool("search_index",
		mcp.WithDescription("Semantically search the indexed run artifacts. Returns the nearest chunks with file paths, chunk indexes and distances."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language query"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of chunks to return (default 5)"),
		),
		mcp.WithString("user_id",
			mcp.Description("Only return chunks written for this user id"),
		),
	)
}

func listIndexedFilesTool() mcp.Tool {
	return mcp.NewTool("list_indexed_files",
		mcp.WithDescription("List every file recorded in the index with its chunk count and content hash."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("prefix",
			mcp.Description("Optional path prefix filter"),
		),
	)
}

func runDeltaIndexTool() mcp.Tool {
	return mcp.NewTool("run_delta_index",
		mcp.WithDescription("Run one delta indexing pass: embed new and changed files, purge deleted ones. Returns the run counts."),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{
			ReadOnlyHint:    mcp.ToBoolPtr(false),
			DestructiveHint: mcp.ToBoolPtr(false),
			IdempotentHint:  mcp.ToBoolPtr(true),
			OpenWorldHint:   mcp.ToBoolPtr(false),
		}),
		mcp.WithString("user_id",
			mcp.Description("User id stamped on chunks written by this run (default global)"),
		),
	)
}

// --- Handler factories ---

func makeSearchHandler(pipeline *rag.Pipeline) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := rag.ValidateQuery(req.GetString("query", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		k := req.GetInt("k", rag.DefaultK)
		if k <= 0 {
			k = rag.DefaultK
		}

		s := &rag.State{Question: query, UserID: req.GetString("user_id", ""), K: k}
		if err := pipeline.Run(ctx, s, pipeline.Retrieve); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatSearchResults(query, rag.ToHits(s.Results))), nil
	}
}

func makeListFilesHandler(idx *index.Indexer) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prefix := req.GetString("prefix", "")

		recs, err := idx.Fingerprints.List()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list files failed: %v", err)), nil
		}

		var sb strings.Builder
		n := 0
		for _, r := range recs {
			if prefix != "" && !strings.HasPrefix(r.Path, prefix) {
				continue
			}
			n++
			fmt.Fprintf(&sb, "- **%s** (%d chunks, sha256 %.12s, modified %s)\n",
				r.Path, len(r.ChunkIDs), r.ContentHash, r.ModifiedAt.Format("2006-01-02 15:04"))
		}
		header := fmt.Sprintf("## Indexed files (%d)\n\n", n)
		return mcp.NewToolResultText(header + sb.String()), nil
	}
}

func makeRunDeltaHandler(idx *index.Indexer) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := idx.Index(ctx, index.RunOptions{UserID: req.GetString("user_id", "")})
		if errors.Is(err, index.ErrRunInProgress) {
			return mcp.NewToolResultError("an indexing run is already in progress"), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("index run failed: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"Run %s finished in %dms: %d new, %d updated, %d deleted, %d unchanged, %d failed files; %d chunks indexed; %d orphans purged.",
			res.RunID, res.DurationMS, res.NewFiles, res.UpdatedFiles, res.DeletedFiles,
			res.UnchangedFiles, res.FailedFiles, res.IndexedDocuments, res.OrphansPurged)), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(query string, hits []rag.Hit) string {
	if len(hits) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d chunks)\n\n", query, len(hits))
	for i, h := range hits {
		fmt.Fprintf(&sb, "### Result %d: `%s`\n\n", i+1, h.FilePath)
		fmt.Fprintf(&sb, "**Chunk:** %d  \n**Score:** %.4f  \n**User:** %s\n\n", h.ChunkIndex, h.Score, h.UserID)
		fmt.Fprintf(&sb, "%s\n\n", h.Snippet)
	}
	return sb.String()
}
