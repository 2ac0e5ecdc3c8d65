package reconcile

import (
	"context"
	"fmt"

	"github.com/franz/playlist-janitor/internal/index"
	"github.com/franz/playlist-janitor/internal/match"
	"github.com/franz/playlist-janitor/internal/report"
	"github.com/franz/playlist-janitor/internal/store"
	"github.com/franz/playlist-janitor/internal/util"
	"golang.org/x/sync/singleflight"
)

// Band thresholds
const (
	exactScore  = 0.9
	highScore   = 0.7
	mediumScore = 0.5
)

// Rewriter replaces a track path inside one playlist file.
// It reports whether the file changed.
type Rewriter interface {
	RewritePath(ctx context.Context, playlistPath, oldPath, newPath string) (bool, error)
}

// Config holds engine configuration
type Config struct {
	Store    *store.Store
	Index    *index.Index
	Matcher  *match.Matcher // nil = match.New(Index)
	Rewriter Rewriter
	Logger   *report.EventLogger

	Threshold  float64 // minimum candidate score, 0 = 0.5
	Candidates int     // candidates fetched per track, 0 = 5
	Workers    int     // concurrent searches per sweep, 0 = 4

	// OnProgress receives sweep progress. It may drop intermediate updates.
	OnProgress util.ProgressFunc
}

// Engine finds inventory replacements for playlist tracks whose files moved
// or were renamed, caches them per key and applies accepted ones.
type Engine struct {
	store      *store.Store
	index      *index.Index
	matcher    *match.Matcher
	rewriter   Rewriter
	logger     *report.EventLogger
	threshold  float64
	candidates int
	workers    int
	onProgress util.ProgressFunc

	sweeps singleflight.Group
}

// New creates an engine. Store and Index are required.
func New(cfg *Config) (*Engine, error) {
	if cfg.Store == nil || cfg.Index == nil {
		return nil, fmt.Errorf("%w: engine needs a store and an index", util.ErrInvalidInput)
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %v outside [0,1]", util.ErrInvalidInput, cfg.Threshold)
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = match.DefaultThreshold
	}
	if cfg.Candidates <= 0 {
		cfg.Candidates = 5
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Matcher == nil {
		cfg.Matcher = match.New(cfg.Index)
	}

	return &Engine{
		store:      cfg.Store,
		index:      cfg.Index,
		matcher:    cfg.Matcher,
		rewriter:   cfg.Rewriter,
		logger:     cfg.Logger,
		threshold:  cfg.Threshold,
		candidates: cfg.Candidates,
		workers:    cfg.Workers,
		onProgress: cfg.OnProgress,
	}, nil
}

// Threshold returns the minimum candidate score in effect
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Band classifies a score
func Band(score float64) store.MatchType {
	switch {
	case score >= exactScore:
		return store.MatchExact
	case score >= highScore:
		return store.MatchHigh
	case score >= mediumScore:
		return store.MatchMedium
	default:
		return store.MatchLow
	}
}

// Unmatched returns one reference per distinct track path whose normalized
// name matches no inventory file
func (e *Engine) Unmatched(ctx context.Context) ([]*store.TrackRef, error) {
	return e.store.UnmatchedTracks(ctx)
}

// Invalidate drops the snapshot stored under key. A missing snapshot is not an error.
func (e *Engine) Invalidate(ctx context.Context, key string) error {
	key = CacheKey(key)
	deleted, err := e.store.DeleteSnapshot(ctx, key)
	if err != nil {
		return err
	}
	if deleted {
		util.DebugLog("Invalidated suggestion snapshot %q", key)
	}
	return nil
}

// InvalidateAll drops every stored snapshot
func (e *Engine) InvalidateAll(ctx context.Context) error {
	n, err := e.store.DeleteAllSnapshots(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		util.DebugLog("Invalidated %d suggestion snapshot(s)", n)
	}
	return nil
}
