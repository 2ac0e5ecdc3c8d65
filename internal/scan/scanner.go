package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/franz/playlist-janitor/internal/index"
	"github.com/franz/playlist-janitor/internal/meta"
	"github.com/franz/playlist-janitor/internal/report"
	"github.com/franz/playlist-janitor/internal/store"
	"github.com/franz/playlist-janitor/internal/util"
	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/pool"
)

const defaultBatchSize = 500

// Scanner builds the inventory from a directory tree
type Scanner struct {
	store       *store.Store
	index       *index.Index
	logger      *report.EventLogger
	extensions  map[string]bool
	concurrency int
	batchSize   int
	readTags    bool
	prune       bool
}

// Config holds scanner configuration
type Config struct {
	Store          *store.Store
	Index          *index.Index
	Logger         *report.EventLogger
	AdditionalExts []string
	Concurrency    int  // tag readers, 0 = 4
	BatchSize      int  // files per upsert/index batch, 0 = 500
	ReadTags       bool // read artist/title tags
	Prune          bool // drop inventory rows under the root that were not seen
}

// New creates a new Scanner
func New(cfg *Config) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	extMap := make(map[string]bool)
	for _, ext := range cfg.AdditionalExts {
		extMap[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	return &Scanner{
		store:       cfg.Store,
		index:       cfg.Index,
		logger:      cfg.Logger,
		extensions:  extMap,
		concurrency: cfg.Concurrency,
		batchSize:   cfg.BatchSize,
		readTags:    cfg.ReadTags,
		prune:       cfg.Prune,
	}
}

// Result represents a scan result
type Result struct {
	Root         string
	FilesSeen    int
	FilesIndexed int
	WordsWritten int
	TagsRead     int
	Pruned       int
	Errors       []error
	Duration     time.Duration
}

// Scan walks root, upserts every media file into the inventory and indexes
// its words. Unreadable files and tags are recorded in Errors and skipped.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	started := time.Now()

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", util.ErrInvalidInput, abs)
	}

	util.InfoLog("Starting scan of: %s", abs)
	result := &Result{Root: abs, Errors: make([]error, 0)}

	var bar *progressbar.ProgressBar
	if util.ShowProgressBar() {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	seen := make(map[string]bool)
	batch := make([]string, 0, s.batchSize)
	batches := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.processBatch(ctx, batch, result); err != nil {
			return err
		}
		batches++
		if bar != nil {
			bar.Describe(fmt.Sprintf("Scanning | %d indexed | %d errors", result.FilesIndexed, len(result.Errors)))
			bar.Set(result.FilesSeen)
		} else if batches%10 == 0 {
			util.InfoLog("Progress: %d files seen, %d indexed", result.FilesSeen, result.FilesIndexed)
		}
		batch = batch[:0]
		return nil
	}

	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			util.WarnLog("Error accessing path %s: %v", path, err)
			result.Errors = append(result.Errors, fmt.Errorf("access error: %s: %w", path, err))
			return nil
		}
		if d.IsDir() || !s.isMediaFile(path) {
			return nil
		}

		seen[path] = true
		result.FilesSeen++
		batch = append(batch, path)
		if len(batch) >= s.batchSize {
			return flush()
		}
		return nil
	})
	if walkErr == nil {
		walkErr = flush()
	}

	if bar != nil {
		bar.Finish()
	}

	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) {
			return result, walkErr
		}
		return result, fmt.Errorf("walk error: %w", walkErr)
	}

	if s.prune {
		pruned, err := s.pruneUnseen(ctx, abs, seen)
		if err != nil {
			return result, err
		}
		result.Pruned = pruned
	}

	result.Duration = time.Since(started)
	s.logger.LogScan(abs, result.FilesIndexed, result.Pruned, result.Duration)

	util.SuccessLog("Scan complete: %d files indexed, %d pruned, %d errors",
		result.FilesIndexed, result.Pruned, len(result.Errors))

	return result, nil
}

// processBatch stats the files of one batch (and reads their tags) with a
// bounded pool, then upserts and indexes them together
func (s *Scanner) processBatch(ctx context.Context, paths []string, result *Result) error {
	files := make([]*store.MusicFile, len(paths))
	var mu sync.Mutex
	tagsRead := 0

	p := pool.New().WithMaxGoroutines(s.concurrency)
	for i, path := range paths {
		p.Go(func() {
			f, hasTags, err := s.describe(path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				util.ErrorLog("Failed to process %s: %v", path, err)
				result.Errors = append(result.Errors, err)
				return
			}
			if hasTags {
				tagsRead++
			}
			files[i] = f
		})
	}
	p.Wait()

	valid := make([]*store.MusicFile, 0, len(files))
	entries := make([]index.Entry, 0, len(files))
	for _, f := range files {
		if f == nil {
			continue
		}
		valid = append(valid, f)
		entries = append(entries, index.Entry{OwnerPath: f.Path, RawName: meta.BaseName(f.Path)})
	}
	if len(valid) == 0 {
		return nil
	}

	if err := s.store.UpsertMusicFiles(ctx, valid); err != nil {
		return err
	}

	indexed, err := s.index.IndexBatch(ctx, store.Inventory, entries)
	if err != nil {
		return err
	}
	for _, f := range indexed.Failures {
		result.Errors = append(result.Errors, fmt.Errorf("index %s: %w", f.Owner, f.Err))
	}

	result.FilesIndexed += indexed.Owners
	result.WordsWritten += indexed.WordsWritten
	result.TagsRead += tagsRead
	return nil
}

// describe builds the inventory row of one file
func (s *Scanner) describe(path string) (*store.MusicFile, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	f := &store.MusicFile{
		Path:       path,
		Normalized: meta.NormalizePath(path),
		Extension:  strings.ToLower(filepath.Ext(path)),
		SizeBytes:  info.Size(),
		MtimeUnix:  info.ModTime().Unix(),
	}

	if !s.readTags {
		return f, false, nil
	}

	tags, err := meta.ReadTags(path)
	if err != nil {
		// Untagged files are common and still belong in the inventory
		util.DebugLog("No tags for %s: %v", path, err)
		return f, false, nil
	}
	f.TagArtist = tags.Artist
	f.TagTitle = tags.Title
	return f, tags.Artist != "" || tags.Title != "", nil
}

// pruneUnseen removes inventory rows under root that the walk did not see
func (s *Scanner) pruneUnseen(ctx context.Context, root string, seen map[string]bool) (int, error) {
	prefix := strings.TrimRight(root, string(filepath.Separator)) + string(filepath.Separator)
	existing, err := s.store.MusicPathsUnder(ctx, prefix)
	if err != nil {
		return 0, err
	}

	var stale []string
	for _, p := range existing {
		if !seen[p] {
			stale = append(stale, p)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	deleted, err := s.index.DeleteInventory(ctx, stale)
	if err != nil {
		return 0, fmt.Errorf("failed to prune inventory: %w", err)
	}
	util.InfoLog("Pruned %d file(s) no longer under %s", deleted, root)
	return int(deleted), nil
}

// isMediaFile checks if a file has a supported audio extension
func (s *Scanner) isMediaFile(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return false
	}
	return meta.IsMediaExtension(ext) || s.extensions[ext]
}
