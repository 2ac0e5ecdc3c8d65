package playlist

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/franz/playlist-janitor/internal/index"
	"github.com/franz/playlist-janitor/internal/meta"
	"github.com/franz/playlist-janitor/internal/report"
	"github.com/franz/playlist-janitor/internal/store"
	"github.com/franz/playlist-janitor/internal/util"
)

// Invalidator drops cached suggestion snapshots
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Config holds importer configuration
type Config struct {
	Store       *store.Store
	Index       *index.Index
	Invalidator Invalidator // nil = delete snapshots through Store
	Logger      *report.EventLogger
}

// Importer loads playlist files into the track population
type Importer struct {
	store       *store.Store
	index       *index.Index
	invalidator Invalidator
	logger      *report.EventLogger
}

// NewImporter creates an importer
func NewImporter(cfg *Config) *Importer {
	return &Importer{
		store:       cfg.Store,
		index:       cfg.Index,
		invalidator: cfg.Invalidator,
		logger:      cfg.Logger,
	}
}

// ImportResult summarizes one imported playlist
type ImportResult struct {
	Playlist string
	Format   Format
	Entries  int
	Indexed  int // distinct track paths indexed
	Failed   int
	Pruned   int64
	Duration time.Duration
}

// Import parses the playlist at path and replaces its stored entries.
// The track words of its paths are re-indexed and every cached suggestion
// snapshot is dropped.
func (im *Importer) Import(ctx context.Context, path string) (*ImportResult, error) {
	started := time.Now()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	pl, err := Parse(abs)
	if err != nil {
		im.logger.LogImport(abs, 0, err)
		return nil, err
	}

	refs := make([]*store.TrackRef, len(pl.Entries))
	entries := make([]index.Entry, 0, len(pl.Entries))
	seen := make(map[string]bool, len(pl.Entries))
	for i, e := range pl.Entries {
		refs[i] = &store.TrackRef{
			Path:         e.Path,
			Normalized:   meta.NormalizePath(e.Path),
			Position:     e.Position,
			SourceFormat: string(pl.Format),
		}
		if !seen[e.Path] {
			seen[e.Path] = true
			entries = append(entries, index.Entry{OwnerPath: e.Path, RawName: meta.BaseName(e.Path)})
		}
	}

	if err := im.store.ReplacePlaylist(ctx, &store.Playlist{Path: abs, Format: string(pl.Format)}, refs); err != nil {
		im.logger.LogImport(abs, 0, err)
		return nil, err
	}

	batch, err := im.index.IndexBatch(ctx, store.TrackRefs, entries)
	if err != nil {
		im.logger.LogImport(abs, len(refs), err)
		return nil, err
	}

	// Paths this playlist no longer references may have lost their last owner
	pruned, err := im.index.Prune(ctx, store.TrackRefs)
	if err != nil {
		return nil, err
	}

	if err := im.invalidateAll(ctx); err != nil {
		return nil, err
	}

	result := &ImportResult{
		Playlist: abs,
		Format:   pl.Format,
		Entries:  len(refs),
		Indexed:  batch.Owners,
		Failed:   batch.Failed,
		Pruned:   pruned,
		Duration: time.Since(started),
	}

	util.DebugLog("Imported %s: %d entries, %d distinct paths", abs, result.Entries, result.Indexed)
	im.logger.LogImport(abs, result.Entries, nil)

	return result, nil
}

// ImportAll imports every playlist found under the given roots. A playlist
// that fails to import is logged and skipped.
func (im *Importer) ImportAll(ctx context.Context, roots []string) ([]*ImportResult, []error) {
	var results []*ImportResult
	var errs []error

	for _, root := range roots {
		paths, err := Find(root)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", root, err))
			continue
		}

		for _, p := range paths {
			if err := ctx.Err(); err != nil {
				return results, append(errs, err)
			}

			res, err := im.Import(ctx, p)
			if err != nil {
				util.ErrorLog("Failed to import %s: %v", p, err)
				errs = append(errs, fmt.Errorf("%s: %w", p, err))
				continue
			}
			results = append(results, res)
		}
	}

	return results, errs
}

// Remove deletes a stored playlist and its track rows
func (im *Importer) Remove(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	existing, err := im.store.GetPlaylist(ctx, abs)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: playlist %s", util.ErrNotFound, abs)
	}

	if err := im.store.DeletePlaylist(ctx, abs); err != nil {
		return err
	}
	if _, err := im.index.Prune(ctx, store.TrackRefs); err != nil {
		return err
	}
	return im.invalidateAll(ctx)
}

func (im *Importer) invalidateAll(ctx context.Context) error {
	if im.invalidator != nil {
		return im.invalidator.InvalidateAll(ctx)
	}
	_, err := im.store.DeleteAllSnapshots(ctx)
	return err
}
