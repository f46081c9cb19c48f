package store

import "time"

// ChunkMetadata travels with every vector and is returned verbatim on search.
type ChunkMetadata struct {
	FilePath   string    `json:"file_path"`
	FileName   string    `json:"file_name"`
	FileHash   string    `json:"file_hash"`
	ChunkIndex int       `json:"chunk_index"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	UserID     string    `json:"user_id"`
}

// Chunk is one embedded span of a file.
type Chunk struct {
	ID       string // <file_path>#<chunk_index>
	Text     string
	Vector   []float32
	Metadata ChunkMetadata
}

// Filter restricts a similarity search. Zero value matches everything.
type Filter struct {
	UserID string
}

// SearchResult is a chunk (without its vector) and its distance to the query.
type SearchResult struct {
	Chunk    Chunk
	Distance float64
}

// Meta keys recorded alongside the vectors.
const (
	MetaEmbeddingModel = "embedding_model"
	MetaDimension      = "dimension"
)
