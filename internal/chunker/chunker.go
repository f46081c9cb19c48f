package chunker

import (
	"fmt"
	"unicode"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunk is a contiguous span of a document. Start and End are rune offsets
// into the source text; consecutive chunks may overlap but never leave a gap.
type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// Splitter cuts text into spans of at most Size runes, each overlapping the
// previous one by up to Overlap runes. Cuts prefer paragraph breaks, then line
// breaks, then sentence ends, then any whitespace, before falling back to a
// hard cut.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter validates the size and overlap.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Size returns the target chunk size in runes.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the overlap between consecutive chunks in runes.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the chunks of text. Identical input always yields identical
// boundaries.
func (s *Splitter) Split(text string) []Chunk {
	return s.SplitWithBreaks(text, nil)
}

// SplitWithBreaks is Split with extra preferred cut positions (rune offsets,
// sorted ascending) that outrank every textual boundary.
func (s *Splitter) SplitWithBreaks(text string, preferred []int) []Chunk {
	r := []rune(text)
	n := len(r)
	if n == 0 {
		return nil
	}

	var chunks []Chunk
	start := 0
	for {
		if n-start <= s.size {
			chunks = append(chunks, s.chunk(r, len(chunks), start, n))
			return chunks
		}

		end := s.cut(r, start, preferred)
		chunks = append(chunks, s.chunk(r, len(chunks), start, end))

		// cut guarantees end-overlap > start, so every step makes progress.
		next := end - s.overlap
		for i := next; i < end; i++ {
			if unicode.IsSpace(r[i]) {
				next = i + 1
				break
			}
		}
		start = next
	}
}

func (s *Splitter) chunk(r []rune, idx, start, end int) Chunk {
	return Chunk{Index: idx, Start: start, End: end, Text: string(r[start:end])}
}

// cut picks the end of the chunk beginning at start.
func (s *Splitter) cut(r []rune, start int, preferred []int) int {
	limit := start + s.size
	minEnd := start + s.overlap + 1

	for i := len(preferred) - 1; i >= 0; i-- {
		p := preferred[i]
		if p > limit {
			continue
		}
		if p < minEnd {
			break
		}
		return p
	}

	for _, isBreak := range tiers {
		for p := limit; p >= minEnd; p-- {
			if isBreak(r, p) {
				return p
			}
		}
	}
	return limit
}

// tiers are boundary predicates in priority order. Each reports whether a cut
// just before position p (i.e. after r[p-1]) lands on that kind of boundary.
var tiers = []func(r []rune, p int) bool{
	// paragraph
	func(r []rune, p int) bool { return p >= 2 && r[p-1] == '\n' && r[p-2] == '\n' },
	// line
	func(r []rune, p int) bool { return p >= 1 && r[p-1] == '\n' },
	// sentence
	func(r []rune, p int) bool {
		if p < 2 || !unicode.IsSpace(r[p-1]) {
			return false
		}
		switch r[p-2] {
		case '.', '!', '?':
			return true
		}
		return false
	},
	// whitespace
	func(r []rune, p int) bool { return p >= 1 && unicode.IsSpace(r[p-1]) },
}
