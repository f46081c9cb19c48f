package cmd

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"bigrag/internal/document"
	"bigrag/internal/handler"
	"bigrag/internal/index"
	"bigrag/internal/llm"
	"bigrag/internal/rag"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API (and the MCP endpoint when enabled)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		root, err := filepath.Abs(cfg.IndexDir)
		if err != nil {
			return err
		}
		cfg.IndexDir = root

		logger.Info("starting",
			"app", cfg.AppName,
			"port", cfg.Port,
			"index_dir", cfg.IndexDir,
			"embed_provider", cfg.EmbedProvider,
			"answer_provider", cfg.UseProvider,
			"backend", cfg.VectorBackend,
			"mcp_enabled", cfg.MCPEnabled,
		)

		idx, err := index.Open(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer idx.Close()

		gen, err := llm.New(cfg)
		if err != nil {
			return err
		}
		pipeline := rag.NewPipeline(idx.Embedder, idx.Vectors, gen, cfg.MaxAnswerDistance, logger)

		docs, err := document.NewService(root)
		if err != nil {
			return err
		}

		app := fiber.New(fiber.Config{
			AppName:      cfg.AppName,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute, // POST /rag/embed runs a full delta pass
		})
		app.Use(recover.New())
		app.Use(fiberlogger.New())
		app.Use(cors.New(cors.Config{
			AllowOrigins: []string{cfg.FrontendURL},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
			AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		}))

		handler.NewHealthHandler(cfg.AppName, idx.Fingerprints).Register(app)
		handler.NewRAGHandler(idx, pipeline, docs, logger).Register(app)

		var mcpHTTP *mcpserver.StreamableHTTPServer
		if cfg.MCPEnabled {
			mcpHTTP = mcpserver.NewStreamableHTTPServer(newMCPServer(idx, pipeline))
			go func() {
				logger.Info("MCP endpoint listening", "port", cfg.MCPPort)
				if err := mcpHTTP.Start(":" + cfg.MCPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("MCP server failed", "error", err)
				}
			}()
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if mcpHTTP != nil {
				_ = mcpHTTP.Shutdown(shutdownCtx)
			}
			_ = app.ShutdownWithContext(shutdownCtx)
		}()

		logger.Info("fiber listening", "port", cfg.Port)
		return app.Listen(":" + cfg.Port)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
