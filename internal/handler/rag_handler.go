// Package handler exposes the index over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"bigrag/internal/document"
	"bigrag/internal/embedder"
	"bigrag/internal/index"
	"bigrag/internal/rag"

	"github.com/gofiber/fiber/v3"
)

// Indexer runs one delta pass.
type Indexer interface {
	Index(ctx context.Context, opts index.RunOptions) (*index.Result, error)
}

// Searcher answers search requests.
type Searcher interface {
	Search(ctx context.Context, q, userID string, withAnswer bool) (*rag.Response, error)
}

// RAGHandler handles the /rag endpoints.
type RAGHandler struct {
	indexer  Indexer
	searcher Searcher
	docs     *document.Service
	logger   *slog.Logger
}

// NewRAGHandler creates a new RAG handler.
func NewRAGHandler(indexer Indexer, searcher Searcher, docs *document.Service, logger *slog.Logger) *RAGHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RAGHandler{indexer: indexer, searcher: searcher, docs: docs, logger: logger}
}

// Register sets up RAG routes.
func (h *RAGHandler) Register(router fiber.Router) {
	r := router.Group("/rag")
	r.Post("/embed", h.Embed)
	r.Get("/search", h.Search)
	r.Get("/document", h.GetDocument)
	r.Put("/document", h.PutDocument)
}

// Embed runs one delta index pass synchronously.
func (h *RAGHandler) Embed(c fiber.Ctx) error {
	res, err := h.indexer.Index(c.Context(), index.RunOptions{UserID: c.Query("user_id")})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(res)
}

// Search runs a similarity search with an optional generated answer.
func (h *RAGHandler) Search(c fiber.Ctx) error {
	withAnswer := true
	if v := c.Query("with_answer"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "with_answer must be a boolean"})
		}
		withAnswer = b
	}

	resp, err := h.searcher.Search(c.Context(), c.Query("q"), c.Query("user_id"), withAnswer)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(resp)
}

// GetDocument returns a document's content by file_path.
func (h *RAGHandler) GetDocument(c fiber.Ctx) error {
	doc, err := h.docs.Read(c.Query("file_path"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(doc)
}

// PutDocument saves an edit as the next version of a document.
func (h *RAGHandler) PutDocument(c fiber.Ctx) error {
	var body struct {
		FilePath string `json:"file_path"`
		Content  string `json:"content"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	path, err := h.docs.SaveVersion(body.FilePath, body.Content)
	if err != nil {
		return h.fail(c, err)
	}
	h.logger.Info("document version saved", "from", body.FilePath, "to", path)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"file_path": path})
}

func (h *RAGHandler) fail(c fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.Path(), "status", status, "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rag.ErrInvalidQuery), errors.Is(err, document.ErrOutsideRoot):
		return fiber.StatusBadRequest
	case errors.Is(err, document.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, index.ErrRunInProgress):
		return fiber.StatusConflict
	case errors.Is(err, embedder.ErrEmbeddingUnavailable), errors.Is(err, rag.ErrGeneration):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
