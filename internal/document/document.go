// Package document reads indexed documents and saves edits as new versioned
// siblings (report.md, report__v1.md, report__v2.md, ...). The next delta run
// picks up each saved version as a new file.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bigrag/internal/walker"
)

var (
	// ErrOutsideRoot rejects paths that resolve outside the index root.
	ErrOutsideRoot = errors.New("invalid file path")
	// ErrNotFound is returned for a path with no file.
	ErrNotFound = errors.New("document not found")
)

const versionMarker = "__v"

// Document is a file's content and timestamps.
type Document struct {
	FileName   string    `json:"file_name"`
	FilePath   string    `json:"file_path"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Service serves documents under one root directory.
type Service struct {
	root string
}

// NewService creates a service rooted at root.
func NewService(root string) (*Service, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &Service{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *Service) Root() string { return s.root }

// Resolve returns the absolute form of path, requiring it to lie under the
// root. Relative paths are taken relative to the root.
func (s *Service) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", ErrOutsideRoot)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	abs := filepath.Clean(path)
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return abs, nil
}

// Read returns the document at path.
func (s *Service) Read(path string) (*Document, error) {
	abs, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Document{
		FileName:   filepath.Base(abs),
		FilePath:   abs,
		Content:    string(content),
		CreatedAt:  walker.ChangeTime(info),
		ModifiedAt: info.ModTime(),
	}, nil
}

// SaveVersion writes content as the version after the latest existing version
// of path and returns the new file's path. The original is never modified.
func (s *Service) SaveVersion(path, content string) (string, error) {
	abs, err := s.Resolve(path)
	if err != nil {
		return "", err
	}
	latest, err := LatestVersion(abs)
	if err != nil {
		return "", err
	}
	next := NextVersionPath(latest)
	if err := os.MkdirAll(filepath.Dir(next), 0o755); err != nil {
		return "", err
	}
	// O_EXCL so a concurrent save cannot be overwritten.
	f, err := os.OpenFile(next, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", next, err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", err
	}
	return next, f.Close()
}

// parseVersion splits a file name into base and version: report__v2.md is
// ("report", 2), report.md is ("report", 0).
func parseVersion(path string) (string, int) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.LastIndex(stem, versionMarker); i >= 0 {
		digits := stem[i+len(versionMarker):]
		if isDigits(digits) {
			if v, err := strconv.Atoi(digits); err == nil {
				return stem[:i], v
			}
		}
	}
	return stem, 0
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// LatestVersion returns the highest-numbered sibling version of path, or
// path itself when none exist.
func LatestVersion(path string) (string, error) {
	base, _ := parseVersion(path)
	ext := filepath.Ext(path)
	dir := filepath.Dir(path)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return path, nil
		}
		return "", err
	}
	best, bestVersion := path, -1
	for _, e := range entries {
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != ext {
			continue
		}
		b, v := parseVersion(e.Name())
		if b == base && v > bestVersion {
			best, bestVersion = filepath.Join(dir, e.Name()), v
		}
	}
	return best, nil
}

// NextVersionPath returns the path of the version after latest.
func NextVersionPath(latest string) string {
	base, v := parseVersion(latest)
	return filepath.Join(filepath.Dir(latest), fmt.Sprintf("%s%s%d%s", base, versionMarker, v+1, filepath.Ext(latest)))
}
