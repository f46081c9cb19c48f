package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"bigrag/internal/chunker"
	"bigrag/internal/chunker/languages"
	"bigrag/internal/config"
	"bigrag/internal/embedder"
	"bigrag/internal/fingerprint"
	"bigrag/internal/store"
	"bigrag/internal/walker"
)

// lockTimeout is how long Open waits for another process to release the
// fingerprint store.
const lockTimeout = 2 * time.Second

// Indexer bundles the stores, embedder and engine built from configuration.
type Indexer struct {
	Root         string
	Engine       *Engine
	Fingerprints fingerprint.Store
	Vectors      store.VectorStore
	Embedder     embedder.Embedder
}

// Open builds every component the engine and search need. The embedder is
// probed for its dimension when the model is not one we know.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Indexer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	emb, err := embedder.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	dim, err := embedder.Probe(ctx, emb)
	if err != nil {
		return nil, fmt.Errorf("probe embedding dimension: %w", err)
	}

	fp, err := fingerprint.Open(cfg.FingerprintDBPath(), lockTimeout)
	if err != nil {
		return nil, err
	}

	dsn := cfg.VectorDBPath()
	if cfg.VectorBackend == store.BackendPostgres {
		dsn = cfg.DatabaseURL
	}
	vs, err := store.Open(ctx, cfg.VectorBackend, dsn, dim)
	if err != nil {
		fp.Close()
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	splitter, err := chunker.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		fp.Close()
		vs.Close()
		return nil, err
	}
	reg := chunker.NewRegistry()
	languages.RegisterAll(reg)

	engine := NewEngine(fp, vs, emb, chunker.NewDocumentChunker(splitter, reg, logger), Config{
		Walk: walker.Options{
			Extensions:  walker.ExtensionSet(walker.DefaultExtensions, reg.Extensions()),
			MaxFileSize: cfg.MaxFileSize,
		},
		Workers: cfg.EmbedWorkers,
	}, logger)

	return &Indexer{
		Root:         cfg.IndexDir,
		Engine:       engine,
		Fingerprints: fp,
		Vectors:      vs,
		Embedder:     emb,
	}, nil
}

// Index runs one delta pass over the configured root.
func (idx *Indexer) Index(ctx context.Context, opts RunOptions) (*Result, error) {
	return idx.Engine.Run(ctx, idx.Root, opts)
}

// Close releases both stores.
func (idx *Indexer) Close() error {
	return errors.Join(idx.Vectors.Close(), idx.Fingerprints.Close())
}
