package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWalkFiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.md"), "# b")
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "sub", "c.JSON"), "{}")
	writeFile(t, filepath.Join(root, "image.png"), "png")
	writeFile(t, filepath.Join(root, "empty.txt"), "")
	writeFile(t, filepath.Join(root, ".git", "config.txt"), "ignored")
	writeFile(t, filepath.Join(root, "node_modules", "x.md"), "ignored")

	files, err := Walk(root, Options{Extensions: ExtensionSet(DefaultExtensions)})
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		rel = append(rel, f.RelPath)
		assert.True(t, filepath.IsAbs(f.Path))
		assert.False(t, f.ModifiedAt.IsZero())
	}
	assert.Equal(t, []string{"a.txt", "b.md", "sub/c.JSON"}, rel)
}

func TestWalkSkipsOversized(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "small.txt"), "ok")
	writeFile(t, filepath.Join(root, "big.txt"), "0123456789")

	files, err := Walk(root, Options{Extensions: ExtensionSet(DefaultExtensions), MaxFileSize: 5})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "small.txt", files[0].RelPath)
}

func TestWalkIgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, IgnoreFileName), "# comment\narchive\n")
	writeFile(t, filepath.Join(root, "archive", "old.md"), "old")
	writeFile(t, filepath.Join(root, "node_modules", "kept.md"), "kept once defaults are replaced")
	writeFile(t, filepath.Join(root, "run.md"), "run")

	files, err := Walk(root, Options{Extensions: ExtensionSet(DefaultExtensions)})
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		rel = append(rel, f.RelPath)
	}
	assert.Equal(t, []string{"node_modules/kept.md", "run.md"}, rel)
}

func TestWalkMissingRoot(t *testing.T) {
	_, err := Walk(filepath.Join(t.TempDir(), "nope"), Options{Extensions: ExtensionSet(DefaultExtensions)})
	require.Error(t, err)
}

func TestWalkRootIsFile(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "file.txt")
	writeFile(t, p, "x")
	_, err := Walk(p, Options{Extensions: ExtensionSet(DefaultExtensions)})
	require.Error(t, err)
}

func TestExtensionSet(t *testing.T) {
	set := ExtensionSet([]string{".MD", "txt"}, []string{"go"})
	assert.True(t, set["md"])
	assert.True(t, set["txt"])
	assert.True(t, set["go"])
	assert.False(t, set["py"])
}
