package index

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/franz/playlist-janitor/internal/meta"
	"github.com/franz/playlist-janitor/internal/report"
	"github.com/franz/playlist-janitor/internal/store"
	"github.com/franz/playlist-janitor/internal/util"
	"golang.org/x/sync/singleflight"
)

const defaultBatchSize = 500

// Entry is one owner to index: its path and the raw filename its words come from
type Entry struct {
	OwnerPath string
	RawName   string
}

// Occurrence is one position of a word inside an owner's normalized name
type Occurrence struct {
	OwnerPath string
	Position  int
	Length    int
}

// BatchResult summarizes an IndexBatch call
type BatchResult struct {
	Owners       int
	WordsWritten int
	Failed       int
	Failures     []store.OwnerFailure
}

// Reader answers word lookups for one population. It is only valid inside Read.
type Reader interface {
	WordsOf(ctx context.Context, ownerPath string) ([]string, error)
	OwnersOf(ctx context.Context, word string) ([]Occurrence, error)
}

// Config holds index configuration
type Config struct {
	Store     *store.Store
	BatchSize int // owners per rebuild batch
	Logger    *report.EventLogger
	// LockDir overrides the directory of the cross-process rebuild lock files.
	// Defaults to the database's directory.
	LockDir string
}

// Index maintains the word tables of both populations
type Index struct {
	store     *store.Store
	batchSize int
	logger    *report.EventLogger
	lockDir   string

	locks    map[store.Population]*sync.RWMutex
	rebuilds singleflight.Group
}

// New creates an index over cfg.Store
func New(cfg *Config) *Index {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	locks := make(map[store.Population]*sync.RWMutex, len(store.Populations))
	for _, pop := range store.Populations {
		locks[pop] = &sync.RWMutex{}
	}

	return &Index{
		store:     cfg.Store,
		batchSize: batchSize,
		logger:    cfg.Logger,
		lockDir:   cfg.LockDir,
		locks:     locks,
	}
}

func (ix *Index) lockFor(pop store.Population) (*sync.RWMutex, error) {
	mu, ok := ix.locks[pop]
	if !ok {
		return nil, fmt.Errorf("%w: unknown population %q", util.ErrInvalidInput, string(pop))
	}
	return mu, nil
}

// WordsFor derives the word rows of one owner from its raw filename
func WordsFor(ownerPath, rawName string) []store.Word {
	tokens := meta.Tokenize(meta.Normalize(rawName))
	words := make([]store.Word, len(tokens))
	for i, tok := range tokens {
		words[i] = store.Word{
			OwnerPath: ownerPath,
			Word:      tok.Word,
			Position:  tok.Position,
			Length:    len(tok.Word),
		}
	}
	return words
}

// Index replaces the words of one owner with those derived from rawName.
// An empty name leaves the owner with no words.
func (ix *Index) Index(ctx context.Context, ownerPath, rawName string, pop store.Population) error {
	if ownerPath == "" {
		return fmt.Errorf("%w: empty owner path", util.ErrInvalidInput)
	}
	mu, err := ix.lockFor(pop)
	if err != nil {
		return err
	}

	words := WordsFor(ownerPath, rawName)

	mu.Lock()
	defer mu.Unlock()

	if err := ix.store.ReplaceWords(ctx, pop, ownerPath, words); err != nil {
		return fmt.Errorf("failed to index %s: %w", ownerPath, err)
	}
	return nil
}

// IndexBatch indexes many owners in one transaction. Owners that cannot be
// written are counted in Failed and skipped; the rest of the batch commits.
func (ix *Index) IndexBatch(ctx context.Context, pop store.Population, entries []Entry) (BatchResult, error) {
	var result BatchResult

	mu, err := ix.lockFor(pop)
	if err != nil {
		return result, err
	}

	batch := make([]store.OwnerWords, 0, len(entries))
	written := make(map[string]int, len(entries))
	for _, e := range entries {
		if e.OwnerPath == "" {
			result.Failed++
			result.Failures = append(result.Failures, store.OwnerFailure{
				Err: fmt.Errorf("%w: empty owner path", util.ErrInvalidInput),
			})
			continue
		}
		words := WordsFor(e.OwnerPath, e.RawName)
		batch = append(batch, store.OwnerWords{Owner: e.OwnerPath, Words: words})
		written[e.OwnerPath] = len(words)
	}

	if len(batch) == 0 {
		return result, nil
	}

	mu.Lock()
	failures, err := ix.store.ReplaceWordsBatch(ctx, pop, batch)
	mu.Unlock()
	if err != nil {
		return result, fmt.Errorf("failed to index batch: %w", err)
	}

	failed := make(map[string]bool, len(failures))
	for _, f := range failures {
		util.WarnLog("Skipping %s during indexing: %v", f.Owner, f.Err)
		failed[f.Owner] = true
	}
	result.Failed += len(failures)
	result.Failures = append(result.Failures, failures...)

	for _, ow := range batch {
		if failed[ow.Owner] {
			continue
		}
		result.Owners++
		result.WordsWritten += written[ow.Owner]
	}

	return result, nil
}

// WordsOf returns the distinct indexed words of ownerPath, sorted
func (ix *Index) WordsOf(ctx context.Context, ownerPath string, pop store.Population) ([]string, error) {
	var words []string
	err := ix.Read(ctx, pop, func(r Reader) error {
		var err error
		words, err = r.WordsOf(ctx, ownerPath)
		return err
	})
	return words, err
}

// OwnersOf returns every occurrence of word, ordered by owner then position
func (ix *Index) OwnersOf(ctx context.Context, word string, pop store.Population) ([]Occurrence, error) {
	var occ []Occurrence
	err := ix.Read(ctx, pop, func(r Reader) error {
		var err error
		occ, err = r.OwnersOf(ctx, word)
		return err
	})
	return occ, err
}

// Read runs fn while holding the population's read lock, so every lookup fn
// makes sees the same set of committed batches
func (ix *Index) Read(ctx context.Context, pop store.Population, fn func(Reader) error) error {
	mu, err := ix.lockFor(pop)
	if err != nil {
		return err
	}

	mu.RLock()
	defer mu.RUnlock()

	return fn(&reader{store: ix.store, pop: pop})
}

// Retarget points every track reference at oldPath to newPath and moves the
// track words with it, in one transaction. Returns the number of rows updated.
func (ix *Index) Retarget(ctx context.Context, oldPath, newPath string) (int64, error) {
	if oldPath == "" || newPath == "" {
		return 0, fmt.Errorf("%w: empty path", util.ErrInvalidInput)
	}
	mu, err := ix.lockFor(store.TrackRefs)
	if err != nil {
		return 0, err
	}

	newNormalized := meta.NormalizePath(newPath)
	words := WordsFor(newPath, meta.BaseName(newPath))

	mu.Lock()
	defer mu.Unlock()

	var updated int64
	err = ix.store.Transaction(ctx, func(tx *sql.Tx) error {
		n, err := ix.store.RetargetTracksTx(ctx, tx, oldPath, newPath, newNormalized)
		if err != nil {
			return err
		}
		updated = n

		if err := ix.store.DeleteWordsTx(ctx, tx, store.TrackRefs, oldPath); err != nil {
			return err
		}
		return ix.store.ReplaceWordsTx(ctx, tx, store.TrackRefs, newPath, words)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to retarget %s: %w", oldPath, err)
	}

	return updated, nil
}

// Prune removes word rows whose owner no longer exists
func (ix *Index) Prune(ctx context.Context, pop store.Population) (int64, error) {
	mu, err := ix.lockFor(pop)
	if err != nil {
		return 0, err
	}

	mu.Lock()
	defer mu.Unlock()

	return ix.store.PruneOrphanWords(ctx, pop)
}

// DeleteInventory removes inventory files and their words under the inventory write lock
func (ix *Index) DeleteInventory(ctx context.Context, paths []string) (int64, error) {
	mu, err := ix.lockFor(store.Inventory)
	if err != nil {
		return 0, err
	}

	mu.Lock()
	defer mu.Unlock()

	return ix.store.DeleteMusicFiles(ctx, paths)
}

type reader struct {
	store *store.Store
	pop   store.Population
}

func (r *reader) WordsOf(ctx context.Context, ownerPath string) ([]string, error) {
	return r.store.WordsOf(ctx, r.pop, ownerPath)
}

func (r *reader) OwnersOf(ctx context.Context, word string) ([]Occurrence, error) {
	rows, err := r.store.OwnersOf(ctx, r.pop, word)
	if err != nil {
		return nil, err
	}
	occ := make([]Occurrence, len(rows))
	for i, w := range rows {
		occ[i] = Occurrence{OwnerPath: w.OwnerPath, Position: w.Position, Length: w.Length}
	}
	return occ, nil
}
