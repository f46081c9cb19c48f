package fingerprint

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*BoltStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fingerprints.db")
	s, err := Open(path, time.Second)
	require.NoError(t, err)
	return s, path
}

func TestPutGetDelete(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	got, err := s.Get("/runs/a.md")
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Now().UTC().Truncate(time.Second)
	rec := FileRecord{
		Path:        "/runs/a.md",
		ContentHash: Hash([]byte("hello")),
		CreatedAt:   now,
		ModifiedAt:  now,
		ChunkIDs:    []string{"/runs/a.md#0", "/runs/a.md#1"},
	}
	require.NoError(t, s.Put(rec))

	got, err = s.Get("/runs/a.md")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ContentHash, got.ContentHash)
	assert.Equal(t, rec.ChunkIDs, got.ChunkIDs)
	assert.True(t, now.Equal(got.ModifiedAt))

	require.NoError(t, s.Delete("/runs/a.md"))
	require.NoError(t, s.Delete("/runs/never-existed.md"))
	got, err = s.Get("/runs/a.md")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListSortedAndReset(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	for _, p := range []string{"/c", "/a", "/b"} {
		require.NoError(t, s.Put(FileRecord{Path: p, ContentHash: Hash([]byte(p))}))
	}
	recs, err := s.List()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "/a", recs[0].Path)
	assert.Equal(t, "/c", recs[2].Path)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, s.Reset())
	recs, err = s.List()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestPersistsAcrossReopen(t *testing.T) {
	s, path := openTemp(t)
	require.NoError(t, s.Put(FileRecord{Path: "/x", ContentHash: "h"}))
	require.NoError(t, s.Close())

	s2, err := Open(path, time.Second)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Get("/x")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "h", got.ContentHash)
}

func TestHash(t *testing.T) {
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", Hash([]byte("hello")))
	assert.NotEqual(t, Hash([]byte("hello")), Hash([]byte("hello ")))
}

func TestPutRejectsEmptyPath(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	assert.Error(t, s.Put(FileRecord{}))
}

func TestOpenWhileHeldReportsLocked(t *testing.T) {
	s, path := openTemp(t)
	defer s.Close()

	_, err := Open(path, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrLocked)
}
