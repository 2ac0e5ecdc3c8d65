package index

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/franz/playlist-janitor/internal/store"
	"github.com/franz/playlist-janitor/internal/util"
	"github.com/gofrs/flock"
)

func newTestIndex(t *testing.T, batchSize int) (*Index, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(&Config{Store: s, BatchSize: batchSize}), s
}

func TestIndexAndLookups(t *testing.T) {
	ctx := context.Background()
	ix, _ := newTestIndex(t, 0)

	if err := ix.Index(ctx, "/m/Dale Don Dale.m4a", "Dale Don Dale.m4a", store.Inventory); err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	words, err := ix.WordsOf(ctx, "/m/Dale Don Dale.m4a", store.Inventory)
	if err != nil {
		t.Fatalf("WordsOf failed: %v", err)
	}
	if len(words) != 2 || words[0] != "dale" || words[1] != "don" {
		t.Errorf("expected [dale don], got %v", words)
	}

	occ, err := ix.OwnersOf(ctx, "dale", store.Inventory)
	if err != nil {
		t.Fatalf("OwnersOf failed: %v", err)
	}
	if len(occ) != 2 || occ[0].Position != 0 || occ[1].Position != 2 || occ[0].Length != 4 {
		t.Errorf("unexpected occurrences: %+v", occ)
	}

	// The other population is untouched
	occ, _ = ix.OwnersOf(ctx, "dale", store.TrackRefs)
	if len(occ) != 0 {
		t.Errorf("expected no track occurrences, got %+v", occ)
	}
}

func TestIndexReplacesPreviousWords(t *testing.T) {
	ctx := context.Background()
	ix, _ := newTestIndex(t, 0)

	owner := "/m/track.mp3"
	if err := ix.Index(ctx, owner, "Old Name.mp3", store.TrackRefs); err != nil {
		t.Fatal(err)
	}
	if err := ix.Index(ctx, owner, "New Name.mp3", store.TrackRefs); err != nil {
		t.Fatal(err)
	}

	words, _ := ix.WordsOf(ctx, owner, store.TrackRefs)
	if len(words) != 2 || words[0] != "name" || words[1] != "new" {
		t.Errorf("expected [name new], got %v", words)
	}
	if occ, _ := ix.OwnersOf(ctx, "old", store.TrackRefs); len(occ) != 0 {
		t.Errorf("stale word still indexed: %+v", occ)
	}

	// An empty name clears the owner
	if err := ix.Index(ctx, owner, "   ", store.TrackRefs); err != nil {
		t.Fatal(err)
	}
	if words, _ := ix.WordsOf(ctx, owner, store.TrackRefs); len(words) != 0 {
		t.Errorf("expected no words, got %v", words)
	}
}

func TestIndexRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	ix, _ := newTestIndex(t, 0)

	if err := ix.Index(ctx, "", "Song.mp3", store.Inventory); !errors.Is(err, util.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty owner, got %v", err)
	}
	if err := ix.Index(ctx, "/a.mp3", "Song.mp3", store.Population("albums")); !errors.Is(err, util.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown population, got %v", err)
	}
	if _, err := ix.RebuildAll(ctx, store.Population("albums"), nil); !errors.Is(err, util.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput from RebuildAll, got %v", err)
	}
}

func TestIndexBatchCountsFailures(t *testing.T) {
	ctx := context.Background()
	ix, _ := newTestIndex(t, 0)

	result, err := ix.IndexBatch(ctx, store.Inventory, []Entry{
		{OwnerPath: "/m/One.mp3", RawName: "One.mp3"},
		{OwnerPath: "", RawName: "Nobody.mp3"},
		{OwnerPath: "/m/Two Three.mp3", RawName: "Two Three.mp3"},
	})
	if err != nil {
		t.Fatalf("IndexBatch failed: %v", err)
	}
	if result.Owners != 2 || result.Failed != 1 || result.WordsWritten != 3 {
		t.Errorf("unexpected result: %+v", result)
	}
	if !errors.Is(result.Failures[0].Err, util.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput failure, got %v", result.Failures[0].Err)
	}
}

func seedInventory(t *testing.T, s *store.Store, n int) {
	t.Helper()
	files := make([]*store.MusicFile, n)
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("/music/Artist %02d - Song %02d.mp3", i, i)
		files[i] = &store.MusicFile{Path: path, Normalized: fmt.Sprintf("artist %02d song %02d", i, i), Extension: ".mp3"}
	}
	if err := s.UpsertMusicFiles(context.Background(), files); err != nil {
		t.Fatalf("failed to seed inventory: %v", err)
	}
}

func TestRebuildAll(t *testing.T) {
	ctx := context.Background()
	ix, s := newTestIndex(t, 3)
	seedInventory(t, s, 7)

	// Stale rows that are not backed by a file must disappear
	if err := ix.Index(ctx, "/music/gone.mp3", "gone.mp3", store.Inventory); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSnapshot(ctx, &store.SuggestionSnapshot{Key: "default"}); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var updates []util.Progress
	result, err := ix.RebuildAll(ctx, store.Inventory, func(p util.Progress) {
		mu.Lock()
		updates = append(updates, p)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("RebuildAll failed: %v", err)
	}

	if result.InProgress {
		t.Fatal("rebuild should not report InProgress")
	}
	if result.Owners != 7 || result.WordsWritten != 28 || result.Failed != 0 {
		t.Errorf("unexpected result: %+v", result)
	}

	if occ, _ := ix.OwnersOf(ctx, "gone", store.Inventory); len(occ) != 0 {
		t.Errorf("stale owner survived rebuild: %+v", occ)
	}
	if occ, _ := ix.OwnersOf(ctx, "artist", store.Inventory); len(occ) != 7 {
		t.Errorf("expected 7 owners of 'artist', got %d", len(occ))
	}

	mu.Lock()
	if len(updates) == 0 {
		t.Error("expected progress updates")
	} else if last := updates[len(updates)-1]; last.Processed != 7 || last.Total != 7 {
		t.Errorf("expected final progress 7/7, got %+v", last)
	}
	mu.Unlock()

	build, err := s.GetIndexBuild(ctx, store.Inventory)
	if err != nil || build == nil {
		t.Fatalf("expected recorded build, got %v, %v", build, err)
	}
	if build.Owners != 7 {
		t.Errorf("expected 7 owners recorded, got %d", build.Owners)
	}

	if snap, _ := s.GetSnapshot(ctx, "default"); snap != nil {
		t.Error("rebuild should clear suggestion snapshots")
	}
}

func TestRebuildAllLockedByAnotherProcess(t *testing.T) {
	ctx := context.Background()
	ix, s := newTestIndex(t, 0)
	seedInventory(t, s, 2)

	other := flock.New(ix.LockPath(store.Inventory))
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("failed to take lock: %v", err)
	}
	defer other.Unlock()

	result, err := ix.RebuildAll(ctx, store.Inventory, nil)
	if err != nil {
		t.Fatalf("expected no error while locked, got %v", err)
	}
	if !result.InProgress {
		t.Error("expected InProgress while another holder has the lock")
	}
	if result.Owners != 0 {
		t.Errorf("expected nothing rebuilt, got %+v", result)
	}

	// The other population has its own lock
	result, err = ix.RebuildAll(ctx, store.TrackRefs, nil)
	if err != nil || result.InProgress {
		t.Errorf("track rebuild should proceed, got %+v, %v", result, err)
	}
}

func TestRebuildAllConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	ix, s := newTestIndex(t, 2)
	seedInventory(t, s, 9)

	const callers = 4
	results := make([]*RebuildResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ix.RebuildAll(ctx, store.Inventory, nil)
		}(i)
	}
	wg.Wait()

	leaders := 0
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if !results[i].Shared {
			leaders++
		}
		if results[i].InProgress {
			t.Errorf("caller %d saw InProgress inside one process", i)
		}
		if results[i].Owners != 9 {
			t.Errorf("caller %d: expected 9 owners, got %d", i, results[i].Owners)
		}
	}

	if leaders == 0 {
		t.Error("the caller that ran the rebuild reported it as shared")
	}

	rows, _, err := s.CountWords(ctx, store.Inventory)
	if err != nil {
		t.Fatal(err)
	}
	if rows != 36 {
		t.Errorf("expected 36 word rows after rebuilds, got %d", rows)
	}
}

func TestRebuildAllSurvivesCancelledStarter(t *testing.T) {
	ix, s := newTestIndex(t, 2)
	seedInventory(t, s, 9)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	onProgress := func(util.Progress) {
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := ix.RebuildAll(ctx, store.Inventory, onProgress)
		done <- err
	}()

	<-entered
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled for the cancelled caller, got %v", err)
		}
	case <-time.After(5 * time.Second):
		close(release)
		t.Fatal("cancelled caller kept waiting for the rebuild")
	}

	other := make(chan *RebuildResult, 1)
	go func() {
		res, err := ix.RebuildAll(context.Background(), store.Inventory, nil)
		if err != nil {
			t.Errorf("second caller failed: %v", err)
		}
		other <- res
	}()
	close(release)

	res := <-other
	if res == nil {
		return
	}
	if res.Owners != 9 {
		t.Errorf("expected 9 owners, got %d", res.Owners)
	}
	rows, _, err := s.CountWords(context.Background(), store.Inventory)
	if err != nil {
		t.Fatal(err)
	}
	if rows != 36 {
		t.Errorf("expected a complete index, got %d word rows", rows)
	}
}

func TestRetarget(t *testing.T) {
	ctx := context.Background()
	ix, s := newTestIndex(t, 0)

	oldPath := "/old/Lost Song.mp3"
	for _, pl := range []string{"/lists/a.m3u", "/lists/b.m3u"} {
		err := s.ReplacePlaylist(ctx, &store.Playlist{Path: pl, Format: "m3u"}, []*store.TrackRef{
			{Path: oldPath, Normalized: "lost song", Position: 0, SourceFormat: "m3u"},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := ix.Index(ctx, oldPath, "Lost Song.mp3", store.TrackRefs); err != nil {
		t.Fatal(err)
	}

	newPath := "/music/Found Song.flac"
	n, err := ix.Retarget(ctx, oldPath, newPath)
	if err != nil {
		t.Fatalf("Retarget failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows retargeted, got %d", n)
	}

	if words, _ := ix.WordsOf(ctx, oldPath, store.TrackRefs); len(words) != 0 {
		t.Errorf("old owner still has words: %v", words)
	}
	words, _ := ix.WordsOf(ctx, newPath, store.TrackRefs)
	if len(words) != 2 || words[0] != "found" || words[1] != "song" {
		t.Errorf("expected [found song], got %v", words)
	}

	tracks, _ := s.GetTracksByPath(ctx, newPath)
	if len(tracks) != 2 || tracks[0].Normalized != "found song" {
		t.Errorf("tracks not retargeted: %+v", tracks)
	}
}

func TestReadSeesConsistentIndexDuringWrites(t *testing.T) {
	ctx := context.Background()
	ix, _ := newTestIndex(t, 0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			entries := []Entry{
				{OwnerPath: fmt.Sprintf("/m/%d-a.mp3", i), RawName: "shared word.mp3"},
				{OwnerPath: fmt.Sprintf("/m/%d-b.mp3", i), RawName: "shared word.mp3"},
			}
			if _, err := ix.IndexBatch(ctx, store.Inventory, entries); err != nil {
				t.Errorf("IndexBatch failed: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 20; i++ {
		err := ix.Read(ctx, store.Inventory, func(r Reader) error {
			a, err := r.OwnersOf(ctx, "shared")
			if err != nil {
				return err
			}
			b, err := r.OwnersOf(ctx, "word")
			if err != nil {
				return err
			}
			// Both words come from the same batches, so within one read they match
			if len(a) != len(b) {
				return fmt.Errorf("torn read: %d vs %d", len(a), len(b))
			}
			if len(a)%2 != 0 {
				return fmt.Errorf("saw half a batch: %d owners", len(a))
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
	}
	wg.Wait()
}
