package chunker

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// LanguageSpec defines the tree-sitter grammar and query for a language.
type LanguageSpec struct {
	Name     string
	Language *sitter.Language
	// Query is a tree-sitter S-expression query that captures top-level
	// definitions with @chunk. Chunks prefer to start where a capture starts.
	Query      string
	Extensions []string
}

// Registry maps file extensions to language specs.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*LanguageSpec // extension (without dot) → spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]*LanguageSpec)}
}

// Register adds a language spec under each of its extensions.
func (r *Registry) Register(spec *LanguageSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range spec.Extensions {
		r.specs[strings.ToLower(ext)] = spec
	}
}

// Lookup returns the spec for a file path based on its extension, or nil.
func (r *Registry) Lookup(path string) *LanguageSpec {
	if r == nil {
		return nil
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.specs[ext]
}

// Extensions returns all registered file extensions (without dot), sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.specs))
	for ext := range r.specs {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// declarationStarts parses src and returns the byte offsets of the lines on
// which captured declarations begin, sorted and deduplicated.
func declarationStarts(spec *LanguageSpec, src []byte) ([]int, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(spec.Language)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	defer tree.Close()

	q, err := sitter.NewQuery([]byte(spec.Query), spec.Language)
	if err != nil {
		return nil, fmt.Errorf("compile query for %s: %w", spec.Name, err)
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	seen := make(map[int]bool)
	var starts []int
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			if q.CaptureNameForId(c.Index) != "chunk" {
				continue
			}
			off := lineStart(src, int(c.Node.StartByte()))
			if off > 0 && !seen[off] {
				seen[off] = true
				starts = append(starts, off)
			}
		}
	}
	sort.Ints(starts)
	return starts, nil
}

func lineStart(src []byte, off int) int {
	if off > len(src) {
		off = len(src)
	}
	for off > 0 && src[off-1] != '\n' {
		off--
	}
	return off
}

// runeOffsets converts sorted byte offsets into rune offsets of text. Offsets
// that do not fall on a rune boundary are dropped.
func runeOffsets(text string, byteOffs []int) []int {
	out := make([]int, 0, len(byteOffs))
	j, ri := 0, 0
	for bi := range text {
		for j < len(byteOffs) && byteOffs[j] <= bi {
			if byteOffs[j] == bi {
				out = append(out, ri)
			}
			j++
		}
		if j == len(byteOffs) {
			break
		}
		ri++
	}
	return out
}
