package index

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/franz/playlist-janitor/internal/meta"
	"github.com/franz/playlist-janitor/internal/store"
	"github.com/franz/playlist-janitor/internal/util"
	"github.com/gofrs/flock"
)

// RebuildResult summarizes a full rebuild of one population
type RebuildResult struct {
	Population   store.Population
	Owners       int
	WordsWritten int
	Failed       int
	Duration     time.Duration
	// InProgress is set when another process holds the rebuild lock.
	// Nothing was rebuilt and the counters are zero.
	InProgress bool
	// Shared is set when this call joined a rebuild already running in this process
	Shared bool
}

// LockPath returns the cross-process rebuild lock file for pop
func (ix *Index) LockPath(pop store.Population) string {
	dbPath := ix.store.Path()
	name := filepath.Base(dbPath) + "." + string(pop) + ".lock"
	dir := ix.lockDir
	if dir == "" {
		dir = filepath.Dir(dbPath)
	}
	return filepath.Join(dir, name)
}

// RebuildAll clears the word table of pop and re-derives it from the owner
// table in keyset-paginated batches. Concurrent calls in this process share
// one rebuild; onProgress is only wired to the call that started it.
// A started rebuild runs to completion even if ctx is cancelled, so the
// index is never left half cleared; cancellation only stops the wait.
// A completed rebuild clears every cached suggestion snapshot.
func (ix *Index) RebuildAll(ctx context.Context, pop store.Population, onProgress util.ProgressFunc) (*RebuildResult, error) {
	if !pop.Valid() {
		return nil, fmt.Errorf("%w: unknown population %q", util.ErrInvalidInput, string(pop))
	}

	leader := false
	ch := ix.rebuilds.DoChan(string(pop), func() (interface{}, error) {
		leader = true
		return ix.rebuild(context.WithoutCancel(ctx), pop, onProgress)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		result := *r.Val.(*RebuildResult)
		result.Shared = r.Shared && !leader
		return &result, nil
	}
}

func (ix *Index) rebuild(ctx context.Context, pop store.Population, onProgress util.ProgressFunc) (*RebuildResult, error) {
	fl := flock.New(ix.LockPath(pop))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire rebuild lock: %w", err)
	}
	if !locked {
		util.InfoLog("Rebuild of %s index already running in another process", pop)
		return &RebuildResult{Population: pop, InProgress: true}, nil
	}
	defer fl.Unlock()

	started := time.Now()
	result := &RebuildResult{Population: pop}

	total, err := ix.store.CountOwners(ctx, pop)
	if err != nil {
		return nil, err
	}

	relay := util.NewProgressRelay(onProgress)
	defer func() {
		relay.Close()
		<-relay.Done()
	}()
	relay.Report(util.Progress{Stage: "index " + string(pop), Processed: 0, Total: total})

	mu, err := ix.lockFor(pop)
	if err != nil {
		return nil, err
	}
	mu.Lock()
	err = ix.store.ClearWords(ctx, pop)
	mu.Unlock()
	if err != nil {
		return nil, err
	}

	util.DebugLog("Rebuilding %s index: %d owners in batches of %d", pop, total, ix.batchSize)

	after := ""
	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := ix.store.OwnerPage(ctx, pop, after, ix.batchSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		entries := make([]Entry, len(page))
		for i, owner := range page {
			entries[i] = Entry{OwnerPath: owner, RawName: meta.BaseName(owner)}
		}

		batch, err := ix.IndexBatch(ctx, pop, entries)
		if err != nil {
			return nil, err
		}
		result.Owners += batch.Owners
		result.WordsWritten += batch.WordsWritten
		result.Failed += batch.Failed

		processed += len(page)
		relay.Report(util.Progress{Stage: "index " + string(pop), Processed: processed, Total: total})
		after = page[len(page)-1]
	}

	result.Duration = time.Since(started)

	if err := ix.store.RecordIndexBuild(ctx, &store.IndexBuild{
		Population:   pop,
		Owners:       result.Owners,
		WordsWritten: result.WordsWritten,
		Failed:       result.Failed,
		StartedAt:    started,
		CompletedAt:  time.Now(),
	}); err != nil {
		return nil, err
	}

	// Snapshots were computed against the old index
	if n, err := ix.store.DeleteAllSnapshots(ctx); err != nil {
		return nil, err
	} else if n > 0 {
		util.DebugLog("Invalidated %d suggestion snapshot(s) after %s rebuild", n, pop)
	}

	ix.logger.LogIndex(string(pop), result.Owners, result.WordsWritten, result.Failed, result.Duration)

	return result, nil
}
