// Package fingerprint persists, per source file, the content hash and chunk
// identifiers of its last successful embedding.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

// ErrLocked is returned by Open when another process holds the store.
var ErrLocked = errors.New("fingerprint store is locked by another process")

var bucketFiles = []byte("files")

// FileRecord is one entry per source file known to the index.
type FileRecord struct {
	Path        string    `json:"path"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
	// ChunkIDs is empty for a file known but never embedded, otherwise the
	// exact identifiers present in the vector store for Path.
	ChunkIDs []string `json:"chunk_ids"`
}

// Store is the fingerprint persistence used by the delta engine.
type Store interface {
	Get(path string) (*FileRecord, error) // nil, nil when absent
	Put(rec FileRecord) error
	Delete(path string) error
	List() ([]FileRecord, error) // sorted by path
	Count() (int, error)
	Reset() error
	Close() error
}

// Hash returns the hex SHA-256 of content.
func Hash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// BoltStore implements Store on a bbolt file. bbolt holds an exclusive file
// lock while open, so two processes can never mutate the same index.
type BoltStore struct {
	db *bbolt.DB
}

// Open creates or opens the store at path, waiting up to lockTimeout for a
// competing process to release it.
func Open(path string, lockTimeout time.Duration) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: lockTimeout})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("open fingerprint store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketFiles)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init fingerprint store: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(path string) (*FileRecord, error) {
	var rec *FileRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketFiles).Get([]byte(path))
		if data == nil {
			return nil
		}
		rec = &FileRecord{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return rec, nil
}

func (s *BoltStore) Put(rec FileRecord) error {
	if rec.Path == "" {
		return errors.New("put: empty path")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFiles).Put([]byte(rec.Path), data)
	})
}

// Delete removes the record for path. Deleting an unknown path is a no-op.
func (s *BoltStore) Delete(path string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFiles).Delete([]byte(path))
	})
}

func (s *BoltStore) List() ([]FileRecord, error) {
	var recs []FileRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFiles).ForEach(func(k, v []byte) error {
			var rec FileRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	// bbolt iterates in byte order already; sort anyway so callers never
	// depend on the backend.
	sort.Slice(recs, func(i, j int) bool { return recs[i].Path < recs[j].Path })
	return recs, nil
}

func (s *BoltStore) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketFiles).Stats().KeyN
		return nil
	})
	return n, err
}

// Reset removes every record.
func (s *BoltStore) Reset() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketFiles); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(bucketFiles)
		return err
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
