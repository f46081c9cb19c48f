// Package index implements the delta indexing engine: it brings the vector
// store and the fingerprint store into agreement with a directory tree,
// embedding only files whose content changed.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"bigrag/internal/chunker"
	"bigrag/internal/embedder"
	"bigrag/internal/fingerprint"
	"bigrag/internal/store"
	"bigrag/internal/walker"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// DefaultUserID is stamped on chunks when a run does not name a user.
const DefaultUserID = "global"

// ErrRunInProgress is returned when a run is requested while another one is
// still executing against the same stores.
var ErrRunInProgress = errors.New("an index run is already in progress")

// ScanError reports that the source tree could not be enumerated. It is the
// only failure that aborts a run.
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string { return fmt.Sprintf("scan %s: %v", e.Root, e.Err) }
func (e *ScanError) Unwrap() error { return e.Err }

// Result summarises one run.
type Result struct {
	RunID            string `json:"run_id"`
	IndexedDocuments int    `json:"indexed_documents"`
	NewFiles         int    `json:"new_files"`
	UpdatedFiles     int    `json:"updated_files"`
	DeletedFiles     int    `json:"deleted_files"`
	UnchangedFiles   int    `json:"unchanged_files"`
	FailedFiles      int    `json:"failed_files"`
	OrphansPurged    int    `json:"orphans_purged"`
	DurationMS       int64  `json:"duration_ms"`
}

// Changed reports whether the run mutated the index.
func (r *Result) Changed() bool {
	return r.NewFiles+r.UpdatedFiles+r.DeletedFiles+r.OrphansPurged > 0
}

// ProgressFunc receives progress updates during a run.
type ProgressFunc func(phase string, done, total int)

// Progress phases.
const (
	PhaseScan   = "Scanning files..."
	PhaseDelete = "Removing deleted files..."
	PhaseIndex  = "Indexing files..."
	PhaseSweep  = "Sweeping orphaned chunks..."
)

// Config tunes an Engine.
type Config struct {
	Walk walker.Options
	// Workers bounds concurrent read+chunk+embed work. Zero means NumCPU.
	Workers int
}

// RunOptions are per-run parameters.
type RunOptions struct {
	UserID   string
	Progress ProgressFunc
}

// Engine runs delta indexing. One Engine must own a given pair of stores;
// Run refuses to start while another Run on the same Engine is active.
type Engine struct {
	fingerprints fingerprint.Store
	vectors      store.VectorStore
	embedder     embedder.Embedder
	chunker      *chunker.DocumentChunker
	cfg          Config
	logger       *slog.Logger
	guard        *semaphore.Weighted
}

// NewEngine wires an engine from its collaborators.
func NewEngine(fp fingerprint.Store, vs store.VectorStore, emb embedder.Embedder, ch *chunker.DocumentChunker, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Engine{
		fingerprints: fp,
		vectors:      vs,
		embedder:     emb,
		chunker:      ch,
		cfg:          cfg,
		logger:       logger,
		guard:        semaphore.NewWeighted(1),
	}
}

// Run performs one delta pass over root. Per-file failures are logged,
// counted in FailedFiles and retried by the next run; only a ScanError,
// ErrRunInProgress or context cancellation is returned as an error. A
// cancelled run still returns the counts of what it committed.
func (e *Engine) Run(ctx context.Context, root string, opts RunOptions) (*Result, error) {
	if !e.guard.TryAcquire(1) {
		return nil, ErrRunInProgress
	}
	defer e.guard.Release(1)

	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	log := e.logger.With("run_id", res.RunID)
	if opts.UserID == "" {
		opts.UserID = DefaultUserID
	}
	progress := opts.Progress
	if progress == nil {
		progress = func(string, int, int) {}
	}
	defer func() { res.DurationMS = time.Since(start).Milliseconds() }()

	log.Info("index run started", "root", root, "user_id", opts.UserID)

	if err := e.checkModel(ctx, log); err != nil {
		return nil, err
	}

	progress(PhaseScan, 0, 0)
	files, err := walker.Walk(root, e.cfg.Walk)
	if err != nil {
		return nil, &ScanError{Root: root, Err: err}
	}
	known, err := e.fingerprints.List()
	if err != nil {
		return nil, fmt.Errorf("load fingerprints: %w", err)
	}
	p := plan(files, known)
	progress(PhaseScan, len(files), len(files))
	log.Info("scan complete", "files", len(files), "known", len(known), "to_delete", len(p.toDelete))

	e.deleteFiles(ctx, log, p.toDelete, res, progress)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	if err := e.indexFiles(ctx, log, p.current, opts.UserID, res, progress); err != nil {
		return res, err
	}

	progress(PhaseSweep, 0, 1)
	e.sweepOrphans(ctx, log, res)
	progress(PhaseSweep, 1, 1)

	res.DurationMS = time.Since(start).Milliseconds()
	log.Info("index run finished",
		"new", res.NewFiles, "updated", res.UpdatedFiles, "deleted", res.DeletedFiles,
		"unchanged", res.UnchangedFiles, "failed", res.FailedFiles,
		"orphans", res.OrphansPurged, "chunks", res.IndexedDocuments,
		"duration_ms", res.DurationMS)
	return res, nil
}

// checkModel resets both stores when the embedding model or its dimension
// differs from the one that produced the stored vectors.
func (e *Engine) checkModel(ctx context.Context, log *slog.Logger) error {
	name := e.embedder.Name()
	dim := e.embedder.Dimension()

	recorded, err := e.vectors.GetMeta(ctx, store.MetaEmbeddingModel)
	if err != nil {
		return fmt.Errorf("get meta: %w", err)
	}
	modelChanged := recorded != "" && recorded != name
	dimChanged := dim > 0 && dim != e.vectors.Dimension()
	if modelChanged || dimChanged {
		log.Warn("embedding model changed, re-indexing all files",
			"from", recorded, "to", name, "from_dim", e.vectors.Dimension(), "to_dim", dim)
		if err := e.vectors.Reset(ctx, dim); err != nil {
			return fmt.Errorf("reset vector store: %w", err)
		}
		if err := e.fingerprints.Reset(); err != nil {
			return fmt.Errorf("reset fingerprints: %w", err)
		}
	}
	if recorded != name {
		if err := e.vectors.SetMeta(ctx, store.MetaEmbeddingModel, name); err != nil {
			return fmt.Errorf("set meta: %w", err)
		}
	}
	return nil
}

type runPlan struct {
	current  []fileJob // every file on disk, sorted by path
	toDelete []string  // known paths no longer on disk, sorted
}

// plan diffs the tree against the known records. Whether a known file
// changed is decided later, by hashing, in the pipeline.
func plan(files []walker.FileInfo, known []fingerprint.FileRecord) runPlan {
	byPath := make(map[string]*fingerprint.FileRecord, len(known))
	for i := range known {
		byPath[known[i].Path] = &known[i]
	}

	var p runPlan
	onDisk := make(map[string]bool, len(files))
	for _, f := range files {
		onDisk[f.Path] = true
		p.current = append(p.current, fileJob{file: f, prev: byPath[f.Path]})
	}
	for _, rec := range known {
		if !onDisk[rec.Path] {
			p.toDelete = append(p.toDelete, rec.Path)
		}
	}
	return p
}

func (e *Engine) deleteFiles(ctx context.Context, log *slog.Logger, paths []string, res *Result, progress ProgressFunc) {
	for i, path := range paths {
		if ctx.Err() != nil {
			return
		}
		if _, err := e.vectors.DeleteWhere(ctx, path); err != nil {
			log.Warn("file failed", "path", path, "phase", "delete", "error", err)
			res.FailedFiles++
			continue
		}
		if err := e.fingerprints.Delete(path); err != nil {
			log.Warn("file failed", "path", path, "phase", "forget", "error", err)
			res.FailedFiles++
			continue
		}
		res.DeletedFiles++
		log.Debug("file deleted", "path", path)
		progress(PhaseDelete, i+1, len(paths))
	}
}

// sweepOrphans purges chunks whose path has no fingerprint record. They are
// left behind when a process dies between inserting a file's chunks and
// recording it, and the file is then removed.
func (e *Engine) sweepOrphans(ctx context.Context, log *slog.Logger, res *Result) {
	paths, err := e.vectors.FilePaths(ctx)
	if err != nil {
		log.Warn("orphan sweep skipped", "error", err)
		return
	}
	for _, path := range paths {
		rec, err := e.fingerprints.Get(path)
		if err != nil {
			log.Warn("orphan sweep skipped", "path", path, "error", err)
			continue
		}
		if rec != nil {
			continue
		}
		n, err := e.vectors.DeleteWhere(ctx, path)
		if err != nil {
			log.Warn("orphan purge failed", "path", path, "error", err)
			continue
		}
		res.OrphansPurged++
		log.Info("orphaned chunks purged", "path", path, "chunks", n)
	}
}
