package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// SQLiteStore implements VectorStore backed by SQLite + sqlite-vec.
type SQLiteStore struct {
	db  *sql.DB
	dim atomic.Int64
}

// OpenSQLite creates or opens a SQLite database at the given path and
// initializes the schema for vectors of the given dimension.
func OpenSQLite(ctx context.Context, dbPath string, dimension int) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	dim, err := initSQLite(ctx, db, dimension)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	s := &SQLiteStore{db: db}
	s.dim.Store(int64(dim))
	return s, nil
}

func (s *SQLiteStore) Dimension() int { return int(s.dim.Load()) }

func (s *SQLiteStore) Insert(ctx context.Context, chunks []Chunk) error {
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

	insChunk, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (chunk_key, file_path, file_name, file_hash, chunk_index, created_at, modified_at, user_id, content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return writeErr("insert", path, err)
	}
	defer insChunk.Close()

	insVec, err := tx.PrepareContext(ctx, "INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)")
	if err != nil {
		return writeErr("insert", path, err)
	}
	defer insVec.Close()

	for _, c := range chunks {
		if len(c.Vector) != dim {
			return writeErr("insert", c.ID, fmt.Errorf("vector has %d dimensions, index has %d", len(c.Vector), dim))
		}

		// Re-inserting an identifier overwrites it.
		var existing int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM chunks WHERE chunk_key = ?", c.ID).Scan(&existing)
		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks WHERE chunk_id = ?", existing); err != nil {
				return writeErr("overwrite", c.ID, err)
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE id = ?", existing); err != nil {
				return writeErr("overwrite", c.ID, err)
			}
		case err != sql.ErrNoRows:
			return writeErr("insert", c.ID, err)
		}

		m := c.Metadata
		res, err := insChunk.ExecContext(ctx, c.ID, m.FilePath, m.FileName, m.FileHash, m.ChunkIndex,
			formatTime(m.CreatedAt), formatTime(m.ModifiedAt), m.UserID, c.Text)
		if err != nil {
			return writeErr("insert", c.ID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return writeErr("insert", c.ID, err)
		}
		blob, err := sqlite_vec.SerializeFloat32(c.Vector)
		if err != nil {
			return writeErr("serialize", c.ID, err)
		}
		if _, err := insVec.ExecContext(ctx, id, blob); err != nil {
			return writeErr("insert embedding", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return writeErr("commit", path, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteWhere(ctx context.Context, filePath string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, writeErr("delete", filePath, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT id FROM chunks WHERE file_path = ?", filePath)
	if err != nil {
		return 0, writeErr("delete", filePath, err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, writeErr("delete", filePath, err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, writeErr("delete", filePath, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks WHERE chunk_id = ?", id); err != nil {
			return 0, writeErr("delete", filePath, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE file_path = ?", filePath); err != nil {
		return 0, writeErr("delete", filePath, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, writeErr("delete", filePath, err)
	}
	return len(ids), nil
}

// maxKNN is the largest k sqlite-vec accepts in a vec0 KNN query.
const maxKNN = 4096

const resultColumns = `c.chunk_key, c.file_path, c.file_name, c.file_hash, c.chunk_index,
		       c.created_at, c.modified_at, c.user_id, c.content`

func (s *SQLiteStore) SimilaritySearch(ctx context.Context, query []float32, k int, f Filter) ([]SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(query) != s.Dimension() {
		return nil, fmt.Errorf("query has %d dimensions, index has %d", len(query), s.Dimension())
	}
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}

	var rows *sql.Rows
	if f.UserID == "" && k <= maxKNN {
		rows, err = s.db.QueryContext(ctx, `
			SELECT knn.distance, `+resultColumns+`
			FROM (
				SELECT chunk_id, distance FROM vec_chunks
				WHERE embedding MATCH ? AND k = ?
			) knn
			JOIN chunks c ON c.id = knn.chunk_id
			ORDER BY knn.distance
		`, blob, k)
	} else {
		// KNN through vec0 cannot see the user_id column and caps k, so these
		// searches rank the candidate rows directly.
		where, args := "", []any{blob}
		if f.UserID != "" {
			where = "WHERE c.user_id = ?"
			args = append(args, f.UserID)
		}
		rows, err = s.db.QueryContext(ctx, `
			SELECT vec_distance_l2(v.embedding, ?) AS distance, `+resultColumns+`
			FROM chunks c
			JOIN vec_chunks v ON v.chunk_id = c.id
			`+where+`
			ORDER BY distance
			LIMIT ?
		`, append(args, k)...)
	}
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var created, modified string
		m := &r.Chunk.Metadata
		if err := rows.Scan(&r.Distance, &r.Chunk.ID, &m.FilePath, &m.FileName, &m.FileHash, &m.ChunkIndex,
			&created, &modified, &m.UserID, &r.Chunk.Text); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		m.CreatedAt = parseTime(created)
		m.ModifiedAt = parseTime(modified)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) FilePaths(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, s.db, "SELECT DISTINCT file_path FROM chunks ORDER BY file_path")
}

func (s *SQLiteStore) ChunkIDs(ctx context.Context, filePath string) ([]string, error) {
	return queryStrings(ctx, s.db, "SELECT chunk_key FROM chunks WHERE file_path = ? ORDER BY chunk_index", filePath)
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) Reset(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		dimension = s.Dimension()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return writeErr("reset", "", err)
	}
	defer tx.Rollback()

	stmts := []string{
		"DROP TABLE IF EXISTS vec_chunks",
		"DELETE FROM chunks",
		vecTableDDL(dimension),
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return writeErr("reset", "", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		MetaDimension, fmt.Sprint(dimension)); err != nil {
		return writeErr("reset", "", err)
	}
	if err := tx.Commit(); err != nil {
		return writeErr("reset", "", err)
	}
	s.dim.Store(int64(dimension))
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryStrings(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
