package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"bigrag/internal/fingerprint"
	"bigrag/internal/store"
	"bigrag/internal/walker"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeNew
	outcomeUpdated
	outcomeFailed
)

// fileJob is a file on disk and its record from the previous run, if any.
type fileJob struct {
	file walker.FileInfo
	prev *fingerprint.FileRecord
}

// prepared is a file read, hashed, chunked and embedded, ready to commit.
type prepared struct {
	job     fileJob
	outcome outcome
	hash    string
	chunks  []store.Chunk
	phase   string // set when outcome is outcomeFailed
	err     error
}

// indexFiles prepares files on Workers goroutines and commits them one at a
// time in path order. At most 2*Workers prepared files are held in memory.
func (e *Engine) indexFiles(ctx context.Context, log *slog.Logger, jobs []fileJob, userID string, res *Result, progress ProgressFunc) error {
	if len(jobs) == 0 {
		return nil
	}

	results := make([]chan prepared, len(jobs))
	for i := range results {
		results[i] = make(chan prepared, 1)
	}

	window := semaphore.NewWeighted(int64(2 * e.cfg.Workers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i := range jobs {
			if err := window.Acquire(gctx, 1); err != nil {
				return
			}
			g.Go(func() error {
				results[i] <- e.prepare(gctx, jobs[i], userID)
				return nil
			})
		}
	}()

	var cancelled error
	for i := range jobs {
		var p prepared
		select {
		case p = <-results[i]:
		case <-ctx.Done():
		}
		// Prepared files are not committed once the run is cancelled.
		if cancelled = ctx.Err(); cancelled != nil {
			break
		}
		// A started commit runs to completion so the file is never left half written.
		e.commit(context.WithoutCancel(ctx), log, p, res)
		window.Release(1)
		progress(PhaseIndex, i+1, len(jobs))
	}

	<-launched
	_ = g.Wait()
	return cancelled
}

// prepare does everything for one file that does not touch the stores.
func (e *Engine) prepare(ctx context.Context, job fileJob, userID string) prepared {
	p := prepared{job: job}
	fail := func(phase string, err error) prepared {
		p.outcome, p.phase, p.err = outcomeFailed, phase, err
		return p
	}

	content, err := os.ReadFile(job.file.Path)
	if err != nil {
		return fail("read", err)
	}
	p.hash = fingerprint.Hash(content)
	if job.prev != nil && job.prev.ContentHash == p.hash {
		p.outcome = outcomeUnchanged
		return p
	}
	if err := ctx.Err(); err != nil {
		return fail("embed", err)
	}

	spans := e.chunker.Chunk(job.file.Path, content)
	if len(spans) == 0 {
		return fail("chunk", fmt.Errorf("no chunks produced"))
	}
	texts := make([]string, len(spans))
	for i, s := range spans {
		texts[i] = s.Text
	}
	vecs, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return fail("embed", err)
	}
	if len(vecs) != len(spans) {
		return fail("embed", fmt.Errorf("expected %d embeddings, got %d", len(spans), len(vecs)))
	}

	meta := store.ChunkMetadata{
		FilePath:   job.file.Path,
		FileName:   filepath.Base(job.file.Path),
		FileHash:   p.hash,
		CreatedAt:  job.file.CreatedAt,
		ModifiedAt: job.file.ModifiedAt,
		UserID:     userID,
	}
	p.chunks = make([]store.Chunk, len(spans))
	for i, s := range spans {
		m := meta
		m.ChunkIndex = s.Index
		p.chunks[i] = store.Chunk{ID: ChunkID(job.file.Path, s.Index), Text: s.Text, Vector: vecs[i], Metadata: m}
	}
	if job.prev == nil {
		p.outcome = outcomeNew
	} else {
		p.outcome = outcomeUpdated
	}
	return p
}

// commit applies one prepared file: delete old chunks, insert new ones, then
// record the fingerprint. The record is written last so any earlier failure
// leaves the file looking changed to the next run.
func (e *Engine) commit(ctx context.Context, log *slog.Logger, p prepared, res *Result) {
	path := p.job.file.Path
	switch p.outcome {
	case outcomeUnchanged:
		res.UnchangedFiles++
		return
	case outcomeFailed:
		log.Warn("file failed", "path", path, "phase", p.phase, "error", p.err)
		res.FailedFiles++
		return
	}

	if _, err := e.vectors.DeleteWhere(ctx, path); err != nil {
		log.Warn("file failed", "path", path, "phase", "delete", "error", err)
		res.FailedFiles++
		return
	}
	if err := e.vectors.Insert(ctx, p.chunks); err != nil {
		log.Warn("file failed", "path", path, "phase", "insert", "error", err)
		res.FailedFiles++
		return
	}

	ids := make([]string, len(p.chunks))
	for i, c := range p.chunks {
		ids[i] = c.ID
	}
	rec := fingerprint.FileRecord{
		Path:        path,
		ContentHash: p.hash,
		CreatedAt:   p.job.file.CreatedAt,
		ModifiedAt:  p.job.file.ModifiedAt,
		ChunkIDs:    ids,
	}
	if err := e.fingerprints.Put(rec); err != nil {
		log.Warn("file failed", "path", path, "phase", "record", "error", err)
		res.FailedFiles++
		return
	}

	res.IndexedDocuments += len(p.chunks)
	if p.outcome == outcomeNew {
		res.NewFiles++
		log.Debug("file added", "path", path, "chunks", len(p.chunks))
	} else {
		res.UpdatedFiles++
		log.Debug("file updated", "path", path, "chunks", len(p.chunks))
	}
}

// ChunkID is the stable identifier of a file's chunk.
func ChunkID(path string, index int) string {
	return fmt.Sprintf("%s#%d", path, index)
}
