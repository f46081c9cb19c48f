package walker

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileInfo holds metadata about a discovered source file.
type FileInfo struct {
	Path       string // absolute, cleaned
	RelPath    string // slash-separated, relative to the walk root
	Size       int64
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// DefaultMaxFileSize is the largest file we'll consider (1 MB).
const DefaultMaxFileSize = 1 << 20

// IgnoreFileName is read from the walk root when present.
const IgnoreFileName = ".bigragignore"

// DefaultExtensions are the plain-text run artifact formats. Code extensions
// come from the chunker registry and are merged in by the caller.
var DefaultExtensions = []string{"mmd", "md", "markdown", "txt", "csv", "json"}

// defaultIgnores are used when no ignore file exists.
var defaultIgnores = []string{
	".git",
	".svn",
	".hg",
	"node_modules",
	"vendor",
	"__pycache__",
	".idea",
	".vscode",
	".bigrag",
}

// Options controls which files are eligible.
type Options struct {
	// Extensions is the set of allowed extensions, lower case without dot.
	Extensions map[string]bool
	// MaxFileSize skips larger files. Zero means DefaultMaxFileSize.
	MaxFileSize int64
}

// Walk traverses the directory tree rooted at root and returns every eligible
// file sorted by absolute path. Any error reading a directory aborts the walk:
// a partial listing would make the missing files look deleted.
func Walk(root string, opts Options) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absRoot)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	ignores := loadIgnorePatterns(absRoot)

	var files []FileInfo
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			rel, _ := filepath.Rel(absRoot, path)
			if matchesIgnore(d.Name(), filepath.ToSlash(rel), ignores) {
				return filepath.SkipDir
			}
			return nil
		}

		// Skip symlinks.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		if !opts.Extensions[ext] {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			// Removed between readdir and stat.
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		// Skip large or empty files.
		if fi.Size() > maxSize || fi.Size() == 0 {
			return nil
		}

		relPath, _ := filepath.Rel(absRoot, path)
		files = append(files, FileInfo{
			Path:       path,
			RelPath:    filepath.ToSlash(relPath),
			Size:       fi.Size(),
			CreatedAt:  ChangeTime(fi),
			ModifiedAt: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// ExtensionSet merges extension lists into a lookup set.
func ExtensionSet(lists ...[]string) map[string]bool {
	set := make(map[string]bool)
	for _, l := range lists {
		for _, ext := range l {
			set[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
		}
	}
	return set
}

// loadIgnorePatterns reads the ignore file from the walk root, falling back to
// the defaults when it is missing or empty.
func loadIgnorePatterns(root string) []string {
	f, err := os.Open(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return defaultIgnores
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if len(patterns) == 0 {
		return defaultIgnores
	}
	return patterns
}

// matchesIgnore checks if a directory name or relative path matches any ignore pattern.
func matchesIgnore(name, relPath string, patterns []string) bool {
	for _, p := range patterns {
		// Exact directory name match (e.g. "node_modules", ".git").
		if name == p {
			return true
		}
		// Path prefix match (e.g. "archive/old").
		if relPath == p || strings.HasPrefix(relPath, p+"/") {
			return true
		}
		if matched, _ := filepath.Match(p, relPath); matched {
			return true
		}
		if matched, _ := filepath.Match(p, name); matched {
			return true
		}
	}
	return false
}
