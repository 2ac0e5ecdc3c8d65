package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/franz/playlist-janitor/internal/store"
	"github.com/franz/playlist-janitor/internal/util"
	"github.com/google/uuid"
)

// ItemError is one failure while applying a suggestion. Playlist is empty
// when the failure is not tied to a single playlist file.
type ItemError struct {
	TrackPath string
	MusicPath string
	Playlist  string
	Err       error
}

func (e ItemError) Error() string {
	if e.Playlist != "" {
		return fmt.Sprintf("%s -> %s in %s: %v", e.TrackPath, e.MusicPath, e.Playlist, e.Err)
	}
	return fmt.Sprintf("%s -> %s: %v", e.TrackPath, e.MusicPath, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// ApplyResult summarizes an apply run
type ApplyResult struct {
	RunID                string
	Applied              int
	Failed               int
	TracksUpdated        int
	PlaylistFilesUpdated int
	Errors               []ItemError
	Duration             time.Duration
}

// ApplySuggestions retargets every track reference of each suggestion to its
// music path and rewrites the playlists that contained it. Items are applied
// independently; a failing item is recorded in Errors and the rest proceed.
func (e *Engine) ApplySuggestions(ctx context.Context, selected []store.Suggestion) (*ApplyResult, error) {
	return e.apply(ctx, "", selected)
}

// ApplyCached applies the suggestions of the snapshot f.Key that pass f.
// The snapshot is computed first if needed.
func (e *Engine) ApplyCached(ctx context.Context, f Filters) (*ApplyResult, error) {
	res, err := e.GenerateSuggestions(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(res.Suggestions) == 0 {
		return &ApplyResult{RunID: uuid.New().String(), Errors: []ItemError{}}, nil
	}
	return e.apply(ctx, res.Key, res.Suggestions)
}

func (e *Engine) apply(ctx context.Context, cacheKey string, selected []store.Suggestion) (*ApplyResult, error) {
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no suggestions selected", util.ErrInvalidInput)
	}
	for i, sg := range selected {
		if sg.TrackPath == "" || sg.MusicPath == "" {
			return nil, fmt.Errorf("%w: suggestion %d is missing a path", util.ErrInvalidInput, i)
		}
	}
	if e.rewriter == nil {
		return nil, fmt.Errorf("%w: no playlist rewriter configured", util.ErrInvalidInput)
	}

	started := time.Now()
	result := &ApplyResult{
		RunID:  uuid.New().String(),
		Errors: []ItemError{},
	}
	util.InfoLog("Applying %d suggestion(s) (run %s)", len(selected), result.RunID)

	seen := make(map[string]bool, len(selected))
	for _, sg := range selected {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if seen[sg.TrackPath] {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{
				TrackPath: sg.TrackPath,
				MusicPath: sg.MusicPath,
				Err:       fmt.Errorf("%w: track already applied in this run", util.ErrInvalidInput),
			})
			continue
		}
		seen[sg.TrackPath] = true

		e.applyOne(ctx, result, sg)
	}

	result.Duration = time.Since(started)

	if err := e.store.RecordApplyRun(ctx, &store.ApplyRun{
		RunID:                result.RunID,
		CacheKey:             cacheKey,
		StartedAt:            started,
		CompletedAt:          time.Now(),
		Applied:              result.Applied,
		Failed:               result.Failed,
		TracksUpdated:        result.TracksUpdated,
		PlaylistFilesUpdated: result.PlaylistFilesUpdated,
	}); err != nil {
		util.WarnLog("Failed to record apply run %s: %v", result.RunID, err)
	}

	if result.Failed > 0 {
		util.WarnLog("Applied %d, failed %d", result.Applied, result.Failed)
	} else {
		util.SuccessLog("Applied %d suggestion(s), %d playlist file(s) updated", result.Applied, result.PlaylistFilesUpdated)
	}

	return result, nil
}

// applyOne updates the store, then every playlist file, then the cached
// snapshots for one suggestion
func (e *Engine) applyOne(ctx context.Context, result *ApplyResult, sg store.Suggestion) {
	failures := 0
	var firstErr error
	fail := func(playlist string, err error) {
		failures++
		if firstErr == nil {
			firstErr = err
		}
		result.Errors = append(result.Errors, ItemError{
			TrackPath: sg.TrackPath,
			MusicPath: sg.MusicPath,
			Playlist:  playlist,
			Err:       err,
		})
	}

	playlists, err := e.store.PlaylistsContaining(ctx, sg.TrackPath)
	if err != nil {
		fail("", err)
	} else if len(playlists) == 0 {
		fail("", fmt.Errorf("%w: no playlist references %s", util.ErrNotFound, sg.TrackPath))
	}

	if failures == 0 {
		n, err := e.index.Retarget(ctx, sg.TrackPath, sg.MusicPath)
		if err != nil {
			fail("", fmt.Errorf("%w: %v", util.ErrExternalWrite, err))
		} else {
			result.TracksUpdated += int(n)

			for _, pl := range playlists {
				changed, err := e.rewriter.RewritePath(ctx, pl, sg.TrackPath, sg.MusicPath)
				e.logger.LogRewrite(result.RunID, pl, sg.TrackPath, sg.MusicPath, changed, err)
				if err != nil {
					fail(pl, fmt.Errorf("%w: %v", util.ErrExternalWrite, err))
					continue
				}
				if changed {
					result.PlaylistFilesUpdated++
				} else {
					util.DebugLog("Playlist %s had no entry for %s", pl, sg.TrackPath)
				}
			}

			// Snapshots are stale for this track even when a rewrite failed:
			// the store already points at the new path
			if _, err := e.store.RemoveTrackFromSnapshots(ctx, sg.TrackPath); err != nil {
				fail("", err)
			}
		}
	}

	if failures > 0 {
		result.Failed++
	} else {
		result.Applied++
	}
	e.logger.LogApply(result.RunID, sg.TrackPath, sg.MusicPath, sg.Score, len(playlists), firstErr)
}
