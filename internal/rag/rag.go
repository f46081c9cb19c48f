// Package rag answers questions from the vector index: a retrieve stage finds
// the nearest chunks and a generate stage asks a model to answer from them.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bigrag/internal/embedder"
	"bigrag/internal/llm"
	"bigrag/internal/store"
)

// NoAnswer is returned instead of calling the model when retrieval finds
// nothing relevant.
const NoAnswer = "I don't know based on the indexed documents."

// DefaultK is the number of chunks retrieved per query.
const DefaultK = 5

// SnippetLength is the number of characters of chunk text shown per result.
const SnippetLength = 300

// ErrGeneration wraps failures of the answer model.
var ErrGeneration = errors.New("answer generation failed")

const systemPrompt = `You are a retrieval-augmented assistant for a corpus of run artifacts. Answer the user's question using ONLY the provided context. Cite file names when relevant. If the context is not sufficient to answer safely, say you don't know.`

// State flows through the pipeline stages.
type State struct {
	Question string
	UserID   string
	K        int
	History  []llm.Message
	Results  []store.SearchResult
	Answer   string
}

// Stage is one step of the pipeline.
type Stage func(ctx context.Context, s *State) error

// Pipeline runs retrieve then, optionally, generate.
type Pipeline struct {
	embedder    embedder.Embedder
	vectors     store.VectorStore
	generator   llm.Generator
	maxDistance float64
	logger      *slog.Logger
}

// NewPipeline creates a pipeline. gen may be nil when answers are never
// requested. maxDistance <= 0 treats every retrieved chunk as relevant.
func NewPipeline(emb embedder.Embedder, vs store.VectorStore, gen llm.Generator, maxDistance float64, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{embedder: emb, vectors: vs, generator: gen, maxDistance: maxDistance, logger: logger}
}

// Run executes stages in order, stopping at the first error.
func (p *Pipeline) Run(ctx context.Context, s *State, stages ...Stage) error {
	for _, stage := range stages {
		if err := stage(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Retrieve is the retrieve stage.
func (p *Pipeline) Retrieve(ctx context.Context, s *State) error {
	k := s.K
	if k <= 0 {
		k = DefaultK
	}
	p.logger.Debug("retrieving", "query", s.Question, "k", k, "user_id", s.UserID)

	vec, err := embedder.EmbedSingle(ctx, p.embedder, s.Question)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}
	results, err := p.vectors.SimilaritySearch(ctx, vec, k, store.Filter{UserID: s.UserID})
	if err != nil {
		return fmt.Errorf("vector search: %w", err)
	}
	s.Results = results
	return nil
}

// Generate is the generate stage. It answers only from relevant retrieved
// chunks and returns NoAnswer without calling the model when there are none.
func (p *Pipeline) Generate(ctx context.Context, s *State) error {
	relevant := p.relevant(s.Results)
	if len(relevant) == 0 {
		s.Answer = NoAnswer
		return nil
	}
	if p.generator == nil {
		return fmt.Errorf("%w: no answer model configured", ErrGeneration)
	}

	start := time.Now()
	answer, err := p.generator.Generate(ctx, BuildMessages(relevant, s.History, s.Question))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	p.logger.Debug("answer generated", "chunks", len(relevant), "duration", time.Since(start))
	s.Answer = strings.TrimSpace(answer)
	if s.Answer == "" {
		s.Answer = NoAnswer
	}
	return nil
}

func (p *Pipeline) relevant(results []store.SearchResult) []store.SearchResult {
	if p.maxDistance <= 0 {
		return results
	}
	var out []store.SearchResult
	for _, r := range results {
		if r.Distance <= p.maxDistance {
			out = append(out, r)
		}
	}
	return out
}

// Hit is one search result as returned to clients.
type Hit struct {
	FilePath   string    `json:"file_path"`
	FileName   string    `json:"file_name"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	Snippet    string    `json:"snippet"`
	ChunkIndex int       `json:"chunk_index"`
	FileHash   string    `json:"file_hash"`
	UserID     string    `json:"user_id"`
	Score      float64   `json:"score"`
}

// Response is the result of Search.
type Response struct {
	Query   string  `json:"query"`
	Results []Hit   `json:"results"`
	Answer  *string `json:"answer"`
}

// Search validates q, retrieves DefaultK chunks and, when withAnswer is set,
// generates an answer from them.
func (p *Pipeline) Search(ctx context.Context, q, userID string, withAnswer bool) (*Response, error) {
	query, err := ValidateQuery(q)
	if err != nil {
		return nil, err
	}

	s := &State{Question: query, UserID: userID, K: DefaultK}
	stages := []Stage{p.Retrieve}
	if withAnswer {
		stages = append(stages, p.Generate)
	}
	if err := p.Run(ctx, s, stages...); err != nil {
		return nil, err
	}

	resp := &Response{Query: query, Results: ToHits(s.Results)}
	if withAnswer {
		resp.Answer = &s.Answer
	}
	return resp, nil
}

// ToHits converts store results into client results.
func ToHits(results []store.SearchResult) []Hit {
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		m := r.Chunk.Metadata
		hits = append(hits, Hit{
			FilePath:   m.FilePath,
			FileName:   m.FileName,
			CreatedAt:  m.CreatedAt,
			ModifiedAt: m.ModifiedAt,
			Snippet:    store.Snippet(r.Chunk.Text, SnippetLength),
			ChunkIndex: m.ChunkIndex,
			FileHash:   m.FileHash,
			UserID:     m.UserID,
			Score:      r.Distance,
		})
	}
	return hits
}

// BuildMessages constructs the message list for the model from retrieved
// chunks, conversation history and the current question.
func BuildMessages(chunks []store.SearchResult, history []llm.Message, question string) []llm.Message {
	msgs := []llm.Message{{Role: "system", Content: systemPrompt}}
	msgs = append(msgs, history...)

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nContext:\n", question)
	if len(chunks) == 0 {
		b.WriteString("NO CONTEXT")
	}
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "From %s (chunk %d): %s", c.Chunk.Metadata.FileName, c.Chunk.Metadata.ChunkIndex, c.Chunk.Text)
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: b.String()})
	return msgs
}
