package match

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/franz/playlist-janitor/internal/index"
	"github.com/franz/playlist-janitor/internal/meta"
	"github.com/franz/playlist-janitor/internal/store"
	"github.com/franz/playlist-janitor/internal/util"
)

func newTestMatcher(t *testing.T, inventory ...string) *Matcher {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "match.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ix := index.New(&index.Config{Store: s})
	ctx := context.Background()
	for _, p := range inventory {
		if err := ix.Index(ctx, p, meta.BaseName(p), store.Inventory); err != nil {
			t.Fatalf("Index(%s) failed: %v", p, err)
		}
	}
	return New(ix)
}

func TestSearchExactName(t *testing.T) {
	m := newTestMatcher(t, "/music/Test Song.mp3", "/music/Another Tune.flac")

	got, err := m.Search(context.Background(), "test song", DefaultOptions(store.Inventory))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %+v", got)
	}
	if got[0].Path != "/music/Test Song.mp3" {
		t.Errorf("unexpected path %q", got[0].Path)
	}
	if got[0].Score < 0.9 {
		t.Errorf("expected score >= 0.9, got %v", got[0].Score)
	}
	if got[0].MatchCount != 2 || got[0].Normalized != "test song" {
		t.Errorf("unexpected match %+v", got[0])
	}
	if got[0].Details != nil {
		t.Errorf("details should be omitted unless requested")
	}
}

func TestSearchReorderedWords(t *testing.T) {
	m := newTestMatcher(t, "/music/Song Test.mp3")

	got, err := m.Search(context.Background(), "Test Song", DefaultOptions(store.Inventory))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0].Score < 0.85 {
		t.Fatalf("reordered words should score at least 0.85, got %+v", got)
	}
}

func TestSearchThresholdAndLimit(t *testing.T) {
	m := newTestMatcher(t,
		"/music/Test Song.mp3",
		"/music/Other Thing Test.mp3",
		"/b/Test Song.ogg",
	)
	ctx := context.Background()

	tests := []struct {
		name      string
		opts      Options
		wantPaths []string
	}{
		{
			name:      "default threshold drops weak candidate",
			opts:      DefaultOptions(store.Inventory),
			wantPaths: []string{"/b/Test Song.ogg", "/music/Test Song.mp3"},
		},
		{
			name:      "zero threshold keeps everything",
			opts:      Options{Population: store.Inventory},
			wantPaths: []string{"/b/Test Song.ogg", "/music/Test Song.mp3", "/music/Other Thing Test.mp3"},
		},
		{
			name:      "limit truncates after sorting",
			opts:      Options{Population: store.Inventory, Limit: 1},
			wantPaths: []string{"/b/Test Song.ogg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Search(ctx, "test song", tt.opts)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if len(got) != len(tt.wantPaths) {
				t.Fatalf("expected %d matches, got %+v", len(tt.wantPaths), got)
			}
			for i, want := range tt.wantPaths {
				if got[i].Path != want {
					t.Errorf("match %d: expected %s, got %s", i, want, got[i].Path)
				}
			}
		})
	}
}

func TestSearchOrdering(t *testing.T) {
	m := newTestMatcher(t,
		"/music/Blue Moon Live.mp3",
		"/music/Blue Moon.mp3",
		"/music/Moon River.mp3",
	)

	got, err := m.Search(context.Background(), "blue moon", Options{Population: store.Inventory})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %+v", got)
	}
	if got[0].Path != "/music/Blue Moon.mp3" {
		t.Errorf("exact name should rank first, got %s", got[0].Path)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("results not sorted by score: %+v", got)
		}
	}
	last := got[len(got)-1]
	if last.Path != "/music/Moon River.mp3" || last.MatchCount != 1 {
		t.Errorf("single-word match should rank last, got %+v", last)
	}
	if len(last.MatchedWords) != 1 || last.MatchedWords[0] != "moon" {
		t.Errorf("unexpected matched words %v", last.MatchedWords)
	}
}

func TestSearchMatchedWordsInQueryOrder(t *testing.T) {
	m := newTestMatcher(t, "/music/Song Test.mp3")

	opts := DefaultOptions(store.Inventory)
	opts.IncludeScoreDetails = true
	got, err := m.Search(context.Background(), "test song test", opts)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %+v", got)
	}
	if w := got[0].MatchedWords; len(w) != 2 || w[0] != "test" || w[1] != "song" {
		t.Errorf("expected [test song], got %v", w)
	}
	d := got[0].Details
	if d == nil {
		t.Fatal("expected score details")
	}
	if d.Overlap != 1 || d.Coverage != 1 || d.Reorder != 0.85 {
		t.Errorf("unexpected details %+v", d)
	}
	if got[0].Score != max(d.Weighted, d.Reorder) {
		t.Errorf("score %v should be max of weighted %v and reorder %v", got[0].Score, d.Weighted, d.Reorder)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	m := newTestMatcher(t, "/music/Test Song.mp3")

	for _, q := range []string{"", "   ", "--.mp3"} {
		got, err := m.Search(context.Background(), q, DefaultOptions(store.Inventory))
		if err != nil {
			t.Fatalf("Search(%q) failed: %v", q, err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("Search(%q): expected empty non-nil slice, got %#v", q, got)
		}
	}
}

func TestSearchInvalidOptions(t *testing.T) {
	m := newTestMatcher(t)

	tests := []struct {
		name string
		opts Options
	}{
		{"negative limit", Options{Population: store.Inventory, Limit: -1}},
		{"threshold above one", Options{Population: store.Inventory, Threshold: 1.5}},
		{"negative threshold", Options{Population: store.Inventory, Threshold: -0.1}},
		{"unknown population", Options{Population: "albums", Threshold: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Search(context.Background(), "test", tt.opts)
			if !errors.Is(err, util.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSearchDeterministic(t *testing.T) {
	m := newTestMatcher(t,
		"/x/Night Drive.mp3",
		"/a/Night Drive.mp3",
		"/m/Drive Night.mp3",
		"/m/Night Shift.mp3",
	)
	ctx := context.Background()
	opts := Options{Population: store.Inventory}

	first, err := m.Search(ctx, "night drive", opts)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := m.Search(ctx, "night drive", opts)
		if err != nil {
			t.Fatal(err)
		}
		if len(again) != len(first) {
			t.Fatalf("result size changed: %d vs %d", len(again), len(first))
		}
		for j := range first {
			if again[j].Path != first[j].Path || again[j].Score != first[j].Score {
				t.Fatalf("run %d differs at %d: %+v vs %+v", i, j, again[j], first[j])
			}
		}
	}
	if first[0].Path != "/a/Night Drive.mp3" || first[1].Path != "/x/Night Drive.mp3" {
		t.Errorf("equal scores should be ordered by path, got %s, %s", first[0].Path, first[1].Path)
	}
}

func TestEditSimilarity(t *testing.T) {
	m := New(nil)

	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "abc", 1},
		{"abc", "", 0},
		{"kitten", "sitting", 1 - 3.0/7.0},
		{"şarkı", "sarki", 1 - 2.0/5.0},
	}

	for _, tt := range tests {
		if got := m.editSimilarity(tt.a, tt.b); round4(got) != round4(tt.want) {
			t.Errorf("editSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	m := New(nil)

	if got := m.Similarity("Test Song.mp3", "test_song.flac"); got != 1 {
		t.Errorf("same words should score 1, got %v", got)
	}
	if got := m.Similarity("Test Song.mp3", "Completely Different.mp3"); got >= DefaultThreshold {
		t.Errorf("unrelated names should score below threshold, got %v", got)
	}
}
