package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"

	_ "github.com/lib/pq"
)

// PostgresStore implements VectorStore on PostgreSQL with the pgvector
// extension.
type PostgresStore struct {
	db  *sql.DB
	dim atomic.Int64
}

// OpenPostgres connects to databaseURL and creates the schema.
func OpenPostgres(ctx context.Context, databaseURL string, dimension int) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(10)

	if _, err := db.ExecContext(ctx, postgresDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	recorded, err := recordedDimension(ctx, db, "SELECT value FROM bigrag_meta WHERE key = $1")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read dimension: %w", err)
	}
	if recorded > 0 {
		dimension = recorded
	}
	if dimension <= 0 {
		db.Close()
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dimension)
	}
	if _, err := db.ExecContext(ctx, postgresChunksDDL(dimension)); err != nil {
		db.Close()
		return nil, fmt.Errorf("init chunks table: %w", err)
	}

	s := &PostgresStore{db: db}
	s.dim.Store(int64(dimension))
	if recorded == 0 {
		if err := s.SetMeta(ctx, MetaDimension, fmt.Sprint(dimension)); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *PostgresStore) Dimension() int { return int(s.dim.Load()) }

func (s *PostgresStore) Insert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	path := chunks[0].Metadata.FilePath
	dim := s.Dimension()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return writeErr("insert", path, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bigrag_chunks (chunk_key, file_path, file_name, file_hash, chunk_index, created_at, modified_at, user_id, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector)
		ON CONFLICT (chunk_key) DO UPDATE SET
			file_path = excluded.file_path,
			file_name = excluded.file_name,
			file_hash = excluded.file_hash,
			chunk_index = excluded.chunk_index,
			created_at = excluded.created_at,
			modified_at = excluded.modified_at,
			user_id = excluded.user_id,
			content = excluded.content,
			embedding = excluded.embedding`)
	if err != nil {
		return writeErr("insert", path, err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if len(c.Vector) != dim {
			return writeErr("insert", c.ID, fmt.Errorf("vector has %d dimensions, index has %d", len(c.Vector), dim))
		}
		m := c.Metadata
		if _, err := stmt.ExecContext(ctx, c.ID, m.FilePath, m.FileName, m.FileHash, m.ChunkIndex,
			m.CreatedAt.UTC(), m.ModifiedAt.UTC(), m.UserID, c.Text, vectorToString(c.Vector)); err != nil {
			return writeErr("insert", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return writeErr("commit", path, err)
	}
	return nil
}

func (s *PostgresStore) DeleteWhere(ctx context.Context, filePath string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM bigrag_chunks WHERE file_path = $1", filePath)
	if err != nil {
		return 0, writeErr("delete", filePath, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, writeErr("delete", filePath, err)
	}
	return int(n), nil
}

func (s *PostgresStore) SimilaritySearch(ctx context.Context, query []float32, k int, f Filter) ([]SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(query) != s.Dimension() {
		return nil, fmt.Errorf("query has %d dimensions, index has %d", len(query), s.Dimension())
	}

	q := `SELECT c.embedding <-> $1::vector AS distance,
	             c.chunk_key, c.file_path, c.file_name, c.file_hash, c.chunk_index,
	             c.created_at, c.modified_at, c.user_id, c.content
	      FROM bigrag_chunks c`
	args := []any{vectorToString(query)}
	if f.UserID != "" {
		q += " WHERE c.user_id = $2 ORDER BY distance LIMIT $3"
		args = append(args, f.UserID, k)
	} else {
		q += " ORDER BY distance LIMIT $2"
		args = append(args, k)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		m := &r.Chunk.Metadata
		if err := rows.Scan(&r.Distance, &r.Chunk.ID, &m.FilePath, &m.FileName, &m.FileHash, &m.ChunkIndex,
			&m.CreatedAt, &m.ModifiedAt, &m.UserID, &r.Chunk.Text); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *PostgresStore) FilePaths(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, s.db, "SELECT DISTINCT file_path FROM bigrag_chunks ORDER BY file_path")
}

func (s *PostgresStore) ChunkIDs(ctx context.Context, filePath string) ([]string, error) {
	return queryStrings(ctx, s.db, "SELECT chunk_key FROM bigrag_chunks WHERE file_path = $1 ORDER BY chunk_index", filePath)
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bigrag_chunks").Scan(&n)
	return n, err
}

func (s *PostgresStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM bigrag_meta WHERE key = $1", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *PostgresStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO bigrag_meta (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *PostgresStore) Reset(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		dimension = s.Dimension()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return writeErr("reset", "", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS bigrag_chunks"); err != nil {
		return writeErr("reset", "", err)
	}
	if _, err := tx.ExecContext(ctx, postgresChunksDDL(dimension)); err != nil {
		return writeErr("reset", "", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO bigrag_meta (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = excluded.value",
		MetaDimension, fmt.Sprint(dimension)); err != nil {
		return writeErr("reset", "", err)
	}
	if err := tx.Commit(); err != nil {
		return writeErr("reset", "", err)
	}
	s.dim.Store(int64(dimension))
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// vectorToString converts a float32 slice to pgvector text format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = fmt.Sprintf("%g", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
