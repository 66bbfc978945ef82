package bt

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

// Location is a named local directory tree that is backed up as a unit.
type Location struct {
	Name string
	Root string
}

// Phase is a step of a single location run.
type Phase string

const (
	PhaseScanningCache      Phase = "ScanningCache"
	PhaseScanningFilesystem Phase = "ScanningFilesystem"
	PhaseReporting          Phase = "Reporting"
	PhaseDone               Phase = "Done"
)

// DefaultProgressInterval is the number of files between progress log lines.
const DefaultProgressInterval = 50000

// RunOptions controls a single Engine.Run.
type RunOptions struct {
	// DryRun computes and reports the diff without touching the vault or the cache.
	DryRun bool
	// Reset empties the cache (and the location's history record) before scanning.
	Reset bool
	// ProgressInterval is the number of scanned files between progress logs.
	// Zero or a negative value disables progress logging.
	ProgressInterval int
}

// RunResult summarizes one run of one location.
type RunResult struct {
	Location Location
	DryRun   bool

	Added   []string
	Updated []string
	Deleted []string
	Skipped int
	Errors  []string

	AddedBytes   int64
	UpdatedBytes int64
	TotalBytes   int64

	StartedAt time.Time
	Duration  time.Duration
}

// Failed reports whether any file failed during the run.
func (r *RunResult) Failed() bool {
	return len(r.Errors) > 0
}

// TransferredBytes is the size of everything uploaded (or, in a dry run,
// everything that would have been uploaded).
func (r *RunResult) TransferredBytes() int64 {
	return r.AddedBytes + r.UpdatedBytes
}

// change classifies a scanned file against the cache.
type change int

const (
	changeNone change = iota
	changeAdded
	changeUpdated
)

// Engine reconciles one location's filesystem state with its fingerprint
// cache and the vault.
type Engine struct {
	store    FingerprintStore
	vault    Vault
	fsmgr    FilesystemManager
	strategy FingerprintStrategy
	history  HistoryLedger
	reporter *Reporter
	logger   Logger
	clock    Clock
}

// NewEngine creates an Engine for a single location's store.
// vault may be nil: the run then behaves as a dry run. history and reporter
// are optional.
func NewEngine(store FingerprintStore, vault Vault, fsmgr FilesystemManager, strategy FingerprintStrategy, history HistoryLedger, reporter *Reporter, logger Logger, clock Clock) *Engine {
	return &Engine{
		store:    store,
		vault:    vault,
		fsmgr:    fsmgr,
		strategy: strategy,
		history:  history,
		reporter: reporter,
		logger:   logger,
		clock:    clock,
	}
}

// Run backs up loc.
//
// Per-file failures are collected in the result and never stop the run.
// An error is returned only when the run cannot be trusted: the root is
// missing, or the cache cannot be read or written. If ctx is cancelled, the
// work completed so far is committed to the cache and ctx.Err() is returned
// together with the partial result.
func (e *Engine) Run(ctx context.Context, loc Location, opts RunOptions) (*RunResult, error) {
	scoped := *e
	scoped.logger = With(e.logger, "location", loc.Name)
	return scoped.run(ctx, loc, opts)
}

func (e *Engine) run(ctx context.Context, loc Location, opts RunOptions) (*RunResult, error) {
	dryRun := opts.DryRun || e.vault == nil
	result := &RunResult{
		Location:  loc,
		DryRun:    dryRun,
		StartedAt: e.clock.Now(),
	}

	root, err := e.fsmgr.Resolve(loc.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLocationRoot, loc.Root, err)
	}
	if !root.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrLocationRoot, loc.Root)
	}

	cached, err := e.loadCache(loc, opts.Reset, dryRun)
	if err != nil {
		return nil, err
	}

	e.enter(PhaseScanningCache)
	var removed []string
	cancelErr := e.scanCache(ctx, cached, dryRun, result, &removed)

	var upserts []CacheEntry
	if cancelErr == nil {
		e.enter(PhaseScanningFilesystem)
		upserts, cancelErr = e.scanFilesystem(ctx, root, cached, dryRun, opts.ProgressInterval, result)
	}

	e.enter(PhaseReporting)
	if !dryRun {
		if err := e.store.Upsert(upserts); err != nil {
			return result, fmt.Errorf("updating cache: %w", err)
		}
		if err := e.store.DeleteAll(removed); err != nil {
			return result, fmt.Errorf("removing deleted files from cache: %w", err)
		}
	}
	result.Duration = e.clock.Now().Sub(result.StartedAt)

	if !dryRun && cancelErr == nil && !result.Failed() && e.history != nil {
		if err := e.history.SetLastBackup(loc.Root, e.clock.Now()); err != nil {
			e.logger.Warn("updating history failed", "error", err)
		}
	}

	if e.reporter != nil {
		e.reporter.Report(ctx, result)
	}
	e.enter(PhaseDone)

	return result, cancelErr
}

// loadCache returns the cached fingerprints keyed by path, applying a reset
// first if requested. A dry-run reset only pretends the cache is empty.
func (e *Engine) loadCache(loc Location, reset, dryRun bool) (map[string]Fingerprint, error) {
	if reset {
		if dryRun {
			e.logger.Info("dry run: treating cache as empty")
			return map[string]Fingerprint{}, nil
		}
		if err := e.store.Clear(); err != nil {
			return nil, fmt.Errorf("clearing cache: %w", err)
		}
		if e.history != nil {
			if err := e.history.Remove(loc.Root); err != nil {
				return nil, fmt.Errorf("clearing history: %w", err)
			}
		}
		e.logger.Info("cache cleared")
		return map[string]Fingerprint{}, nil
	}

	entries, err := e.store.ListAll()
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}
	cached := make(map[string]Fingerprint, len(entries))
	for _, entry := range entries {
		cached[entry.Path] = entry.Fingerprint
	}
	return cached, nil
}

// scanCache finds cached files that no longer exist, deletes their objects
// and collects the paths whose cache entries can be dropped.
func (e *Engine) scanCache(ctx context.Context, cached map[string]Fingerprint, dryRun bool, result *RunResult, removed *[]string) error {
	paths := make([]string, 0, len(cached))
	for p := range cached {
		paths = append(paths, p)
	}
	slices.SortFunc(paths, cmp.Compare[string])

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		gone, err := e.deleteStale(ctx, p, dryRun)
		if err != nil {
			e.recordError(result, &FileError{Path: p, Err: err})
			continue
		}
		if !gone {
			continue
		}
		if !dryRun {
			*removed = append(*removed, p)
		}
		result.Deleted = append(result.Deleted, p)
	}
	return nil
}

// deleteStale reports whether the cached file at p is gone from disk and,
// outside a dry run, deletes its remote object.
func (e *Engine) deleteStale(ctx context.Context, p string, dryRun bool) (bool, error) {
	exists, err := e.fsmgr.IsRegularFile(p)
	if err != nil {
		return false, fmt.Errorf("checking file: %w", err)
	}
	if exists {
		return false, nil
	}
	if !dryRun {
		if err := e.vault.DeleteObject(ctx, ObjectKey(p)); err != nil {
			return false, fmt.Errorf("deleting remote object: %w", err)
		}
	}
	e.logger.Debug("file deleted", "path", DisplayPath(p))
	return true, nil
}

// scanFilesystem walks root, uploads new and changed files and returns the
// cache entries to commit for the successful ones.
func (e *Engine) scanFilesystem(ctx context.Context, root *Path, cached map[string]Fingerprint, dryRun bool, progressInterval int, result *RunResult) ([]CacheEntry, error) {
	var upserts []CacheEntry
	scanned := 0

	for path, walkErr := range e.fsmgr.Walk(root) {
		if err := ctx.Err(); err != nil {
			return upserts, err
		}
		if walkErr != nil {
			p := root.String()
			if path != nil {
				p = path.String()
			}
			e.recordError(result, &FileError{Path: p, Err: walkErr})
			continue
		}

		ignored, err := e.fsmgr.IsIgnored(path, root.String())
		if err != nil {
			e.recordError(result, &FileError{Path: path.String(), Err: err})
			continue
		}
		if ignored {
			continue
		}

		scanned++
		if progressInterval > 0 && scanned%progressInterval == 0 {
			e.logger.Info("progress", "files", scanned)
		}

		size := path.Size()
		result.TotalBytes += size

		fp, kind, err := e.processFile(ctx, path, cached, dryRun)
		if err != nil {
			e.recordError(result, &FileError{Path: path.String(), Err: err})
			continue
		}

		switch kind {
		case changeNone:
			result.Skipped++
			continue
		case changeAdded:
			result.Added = append(result.Added, path.String())
			result.AddedBytes += size
		case changeUpdated:
			result.Updated = append(result.Updated, path.String())
			result.UpdatedBytes += size
		}
		if !dryRun {
			upserts = append(upserts, CacheEntry{Path: path.String(), Fingerprint: fp})
		}
	}

	return upserts, nil
}

// processFile fingerprints a single file, classifies it against the cache
// and uploads it when it is new or changed.
func (e *Engine) processFile(ctx context.Context, path *Path, cached map[string]Fingerprint, dryRun bool) (Fingerprint, change, error) {
	fp, err := e.strategy.Fingerprint(path)
	if err != nil {
		return Fingerprint{}, changeNone, fmt.Errorf("fingerprinting: %w", err)
	}

	old, known := cached[path.String()]
	if known && old.Equal(fp) {
		return fp, changeNone, nil
	}

	kind := changeAdded
	if known {
		kind = changeUpdated
	}

	if !dryRun {
		if err := e.vault.UploadFile(ctx, path.String()); err != nil {
			return Fingerprint{}, changeNone, fmt.Errorf("uploading: %w", err)
		}
		if err := e.checkUnchanged(path); err != nil {
			return Fingerprint{}, changeNone, err
		}
	}

	e.logger.Debug("file backed up", "path", DisplayPath(path.String()), "new", kind == changeAdded)
	return fp, kind, nil
}

// checkUnchanged re-stats path after an upload and fails if its size or
// modification time differ from what the walk saw.
func (e *Engine) checkUnchanged(path *Path) error {
	before := path.Info()
	if before == nil {
		return nil
	}
	after, err := e.fsmgr.Stat(path)
	if err != nil {
		return fmt.Errorf("re-stat file: %w", err)
	}
	if after.Size() != before.Size() || !after.ModTime().Equal(before.ModTime()) {
		return ErrFileChanged
	}
	return nil
}

func (e *Engine) recordError(result *RunResult, err error) {
	msg := err.Error()
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		e.logger.Error("file failed", "path", DisplayPath(fileErr.Path), "error", fileErr.Err)
	} else {
		e.logger.Error(msg)
	}
	result.Errors = append(result.Errors, msg)
}

func (e *Engine) enter(phase Phase) {
	e.logger.Debug("phase", "phase", string(phase))
}
