package reconcile

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/franz/playlist-janitor/internal/match"
	"github.com/franz/playlist-janitor/internal/meta"
	"github.com/franz/playlist-janitor/internal/store"
	"github.com/franz/playlist-janitor/internal/util"
	"github.com/gosimple/slug"
	"golang.org/x/sync/errgroup"
)

// DefaultKey is the cache key used when none is given
const DefaultKey = "default"

// progressChunk is how many tracks are searched between progress reports
const progressChunk = 50

// Filters selects which part of a snapshot is returned
type Filters struct {
	Key           string
	Type          store.MatchType // empty = every band
	MinSimilarity float64
	Limit         int // 0 = unlimited
	Offset        int
}

func (f Filters) validate() error {
	if f.Type != "" && !f.Type.Valid() {
		return fmt.Errorf("%w: unknown match type %q", util.ErrInvalidInput, string(f.Type))
	}
	if f.MinSimilarity < 0 || f.MinSimilarity > 1 || math.IsNaN(f.MinSimilarity) {
		return fmt.Errorf("%w: min similarity %v outside [0,1]", util.ErrInvalidInput, f.MinSimilarity)
	}
	if f.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", util.ErrInvalidInput, f.Limit)
	}
	if f.Offset < 0 {
		return fmt.Errorf("%w: negative offset %d", util.ErrInvalidInput, f.Offset)
	}
	return nil
}

// Stats counts suggestions per band
type Stats struct {
	Total  int `json:"total"`
	Exact  int `json:"exact"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// SuggestionsResult is one page of a suggestion snapshot
type SuggestionsResult struct {
	Key         string             `json:"cache_key"`
	Suggestions []store.Suggestion `json:"suggestions"`
	// Total is the number of suggestions passing the filters, before paging
	Total int `json:"total"`
	// Stats describes the whole snapshot, ignoring filters
	Stats    Stats     `json:"stats"`
	Cached   bool      `json:"cached"`
	CachedAt time.Time `json:"cached_at"`
	// Shared is set when this call waited on a sweep started by another caller
	Shared   bool          `json:"shared,omitempty"`
	Duration time.Duration `json:"duration"`
}

// CacheKey turns a user supplied key into its stored form
func CacheKey(raw string) string {
	key := slug.Make(raw)
	if key == "" {
		return DefaultKey
	}
	return key
}

// GenerateSuggestions returns the snapshot stored under f.Key, computing it
// first when there is none. Concurrent calls for the same key share one sweep,
// and a sweep keeps running when the caller that started it gives up.
func (e *Engine) GenerateSuggestions(ctx context.Context, f Filters) (*SuggestionsResult, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	key := CacheKey(f.Key)
	started := time.Now()

	snap, err := e.store.GetSnapshot(ctx, key)
	if err != nil {
		return nil, err
	}

	cached := snap != nil
	shared := false
	if snap == nil {
		res, sh, err := e.joinSweep(ctx, key)
		if err != nil {
			return nil, err
		}
		snap = res.snap
		cached = res.cached
		shared = sh
	}

	result := page(snap, f)
	result.Cached = cached
	result.Shared = shared
	result.Duration = time.Since(started)

	if cached {
		e.logger.LogSuggest(key, result.Stats.Total, true, result.Duration)
	}

	return result, nil
}

type sweepResult struct {
	snap   *store.SuggestionSnapshot
	cached bool
}

// joinSweep runs the sweep for key or waits for the one already running.
// The sweep is detached from the cancellation of whichever caller started it;
// each caller stops waiting when its own ctx is done.
func (e *Engine) joinSweep(ctx context.Context, key string) (sweepResult, bool, error) {
	leader := false
	ch := e.sweeps.DoChan(key, func() (interface{}, error) {
		leader = true
		sctx := context.WithoutCancel(ctx)

		// A sweep that finished after our lookup already stored the key
		existing, err := e.store.GetSnapshot(sctx, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return sweepResult{snap: existing, cached: true}, nil
		}
		snap, err := e.sweep(sctx, key)
		if err != nil {
			return nil, err
		}
		return sweepResult{snap: snap}, nil
	})

	select {
	case <-ctx.Done():
		return sweepResult{}, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return sweepResult{}, false, r.Err
		}
		// leader is written before the result is sent
		return r.Val.(sweepResult), r.Shared && !leader, nil
	}
}

// sweep searches the inventory for every unmatched track and stores the
// best candidate of each as the snapshot for key
func (e *Engine) sweep(ctx context.Context, key string) (*store.SuggestionSnapshot, error) {
	started := time.Now()

	refs, err := e.Unmatched(ctx)
	if err != nil {
		return nil, err
	}
	total := len(refs)
	util.InfoLog("Searching replacements for %d unmatched track(s)", total)

	relay := util.NewProgressRelay(e.onProgress)
	defer func() {
		relay.Close()
		<-relay.Done()
	}()
	relay.Report(util.Progress{Stage: "suggest", Processed: 0, Total: total})

	found := make([]*store.Suggestion, total)
	var processed atomic.Int64

	opts := match.Options{
		Limit:      e.candidates,
		Threshold:  e.threshold,
		Population: store.Inventory,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, ref := range refs {
		if i%progressChunk == 0 {
			if err := gctx.Err(); err != nil {
				break
			}
		}

		g.Go(func() error {
			matches, err := e.matcher.Search(gctx, meta.BaseName(ref.Path), opts)
			if err != nil {
				return fmt.Errorf("search for %s failed: %w", ref.Path, err)
			}
			for _, m := range matches {
				if m.Path == ref.Path {
					continue
				}
				found[i] = &store.Suggestion{
					TrackPath:       ref.Path,
					TrackNormalized: ref.Normalized,
					MusicPath:       m.Path,
					MusicNormalized: m.Normalized,
					Score:           m.Score,
					MatchType:       Band(m.Score),
					MatchedWords:    m.MatchedWords,
				}
				break
			}

			n := int(processed.Add(1))
			if n%progressChunk == 0 || n == total {
				relay.Report(util.Progress{Stage: "suggest", Processed: n, Total: total})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	suggestions := make([]store.Suggestion, 0, total)
	for _, sg := range found {
		if sg != nil {
			suggestions = append(suggestions, *sg)
		}
	}
	sortSuggestions(suggestions)

	snap := &store.SuggestionSnapshot{
		Key:         key,
		CreatedAt:   time.Now(),
		Suggestions: suggestions,
	}
	snap.Recount()

	if err := e.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, err
	}

	duration := time.Since(started)
	util.DebugLog("Suggestion sweep %q: %d of %d tracks have a candidate (%s)", key, snap.Total, total, duration)
	e.logger.LogSuggest(key, snap.Total, false, duration)

	return snap, nil
}

func sortSuggestions(suggestions []store.Suggestion) {
	sort.Slice(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TrackPath != b.TrackPath {
			return a.TrackPath < b.TrackPath
		}
		return a.MusicPath < b.MusicPath
	})
}

// page re-derives bands, filters and slices a snapshot without modifying it
func page(snap *store.SuggestionSnapshot, f Filters) *SuggestionsResult {
	result := &SuggestionsResult{
		Key:         snap.Key,
		CachedAt:    snap.CreatedAt,
		Suggestions: []store.Suggestion{},
	}

	filtered := make([]store.Suggestion, 0, len(snap.Suggestions))
	for _, sg := range snap.Suggestions {
		sg.MatchType = Band(sg.Score)

		result.Stats.Total++
		switch sg.MatchType {
		case store.MatchExact:
			result.Stats.Exact++
		case store.MatchHigh:
			result.Stats.High++
		case store.MatchMedium:
			result.Stats.Medium++
		case store.MatchLow:
			result.Stats.Low++
		}

		if f.Type != "" && sg.MatchType != f.Type {
			continue
		}
		if sg.Score < f.MinSimilarity {
			continue
		}
		filtered = append(filtered, sg)
	}

	result.Total = len(filtered)
	if f.Offset >= len(filtered) {
		return result
	}
	filtered = filtered[f.Offset:]
	if f.Limit > 0 && len(filtered) > f.Limit {
		filtered = filtered[:f.Limit]
	}
	result.Suggestions = filtered
	return result
}
