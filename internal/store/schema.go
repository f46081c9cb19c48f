package store

import (
	"context"
	"database/sql"
	"fmt"
)

const sqliteDDL = `
CREATE TABLE IF NOT EXISTS chunks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    chunk_key   TEXT NOT NULL UNIQUE,
    file_path   TEXT NOT NULL,
    file_name   TEXT NOT NULL,
    file_hash   TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    created_at  TEXT NOT NULL,
    modified_at TEXT NOT NULL,
    user_id     TEXT NOT NULL DEFAULT 'global',
    content     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path);
CREATE INDEX IF NOT EXISTS idx_chunks_user_id ON chunks(user_id);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

func vecTableDDL(dimension int) string {
	return fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_id INTEGER PRIMARY KEY,
    embedding float[%d]
)`, dimension)
}

const postgresDDL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS bigrag_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

func postgresChunksDDL(dimension int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS bigrag_chunks (
    id          BIGSERIAL PRIMARY KEY,
    chunk_key   TEXT NOT NULL UNIQUE,
    file_path   TEXT NOT NULL,
    file_name   TEXT NOT NULL,
    file_hash   TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    modified_at TIMESTAMPTZ NOT NULL,
    user_id     TEXT NOT NULL DEFAULT 'global',
    content     TEXT NOT NULL,
    embedding   vector(%d) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bigrag_chunks_file_path ON bigrag_chunks(file_path);
CREATE INDEX IF NOT EXISTS idx_bigrag_chunks_user_id ON bigrag_chunks(user_id);
`, dimension)
}

// initSQLite creates the schema. The vec0 table is created for dimension
// unless a previous run recorded another one, which is kept until Reset.
func initSQLite(ctx context.Context, db *sql.DB, dimension int) (int, error) {
	if _, err := db.ExecContext(ctx, sqliteDDL); err != nil {
		return 0, err
	}
	recorded, err := recordedDimension(ctx, db, "SELECT value FROM meta WHERE key = ?")
	if err != nil {
		return 0, err
	}
	if recorded > 0 {
		dimension = recorded
	}
	if dimension <= 0 {
		return 0, fmt.Errorf("vector dimension must be positive, got %d", dimension)
	}
	if _, err := db.ExecContext(ctx, vecTableDDL(dimension)); err != nil {
		return 0, err
	}
	if recorded == 0 {
		_, err = db.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES (?, ?)", MetaDimension, fmt.Sprint(dimension))
	}
	return dimension, err
}

func recordedDimension(ctx context.Context, db *sql.DB, query string) (int, error) {
	var v string
	err := db.QueryRowContext(ctx, query, MetaDimension).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n int
	if _, err := fmt.Sscan(v, &n); err != nil {
		return 0, fmt.Errorf("bad recorded dimension %q: %w", v, err)
	}
	return n, nil
}
