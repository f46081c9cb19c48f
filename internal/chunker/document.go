package chunker

import "log/slog"

// DocumentChunker splits whole files, steering cuts toward declaration
// boundaries for languages the registry knows.
type DocumentChunker struct {
	splitter *Splitter
	registry *Registry
	logger   *slog.Logger
}

// NewDocumentChunker creates a chunker. A nil registry disables code-aware
// boundaries.
func NewDocumentChunker(s *Splitter, r *Registry, logger *slog.Logger) *DocumentChunker {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentChunker{splitter: s, registry: r, logger: logger}
}

// Chunk returns the chunks of a file's content.
func (c *DocumentChunker) Chunk(path string, src []byte) []Chunk {
	text := string(src)
	spec := c.registry.Lookup(path)
	if spec == nil {
		return c.splitter.Split(text)
	}

	starts, err := declarationStarts(spec, src)
	if err != nil {
		c.logger.Debug("declaration boundaries unavailable", "path", path, "error", err)
		return c.splitter.Split(text)
	}
	return c.splitter.SplitWithBreaks(text, runeOffsets(text, starts))
}
