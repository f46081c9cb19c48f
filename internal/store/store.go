package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrWrite marks a failed insert or delete. The delta engine isolates it to
// the file being written.
var ErrWrite = errors.New("vector store write failed")

// VectorStore is the persistent similarity index over chunk vectors.
type VectorStore interface {
	// Insert adds chunks. A chunk whose ID already exists replaces it.
	Insert(ctx context.Context, chunks []Chunk) error
	// DeleteWhere removes every chunk whose file_path equals filePath and
	// reports how many were removed. No match is not an error.
	DeleteWhere(ctx context.Context, filePath string) (int, error)
	// SimilaritySearch returns up to k chunks nearest to query, closest first.
	SimilaritySearch(ctx context.Context, query []float32, k int, f Filter) ([]SearchResult, error)
	// FilePaths lists the distinct file paths that have chunks, sorted.
	FilePaths(ctx context.Context) ([]string, error)
	// ChunkIDs lists the chunk identifiers stored for filePath in index order.
	ChunkIDs(ctx context.Context, filePath string) ([]string, error)
	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
	// Reset removes every chunk and rebuilds the vector index for dimension.
	Reset(ctx context.Context, dimension int) error
	// Dimension is the vector length the index was built for.
	Dimension() int
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Open opens the vector store for backend. dsn is a file path for sqlite and
// a connection URL for postgres.
func Open(ctx context.Context, backend, dsn string, dimension int) (VectorStore, error) {
	switch backend {
	case "", BackendSQLite:
		return OpenSQLite(ctx, dsn, dimension)
	case BackendPostgres:
		return OpenPostgres(ctx, dsn, dimension)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", backend)
	}
}

func writeErr(op, path string, err error) error {
	if path == "" {
		return fmt.Errorf("%w: %s: %w", ErrWrite, op, err)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrWrite, op, path, err)
}

// Snippet returns text flattened to one line and cut to max runes, with an
// ellipsis when cut.
func Snippet(text string, max int) string {
	r := []rune(text)
	for i, c := range r {
		if c == '\n' || c == '\r' || c == '\t' {
			r[i] = ' '
		}
	}
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max]) + "..."
}
