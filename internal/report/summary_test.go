package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/franz/playlist-janitor/internal/store"
)

func TestGenerateSummaryReport(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	db, err := store.Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	setupTestData(t, db)

	report, err := GenerateSummaryReport(ctx, db, "default", "")
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}

	if report.Stats.Playlists != 1 || report.Stats.TrackPaths != 2 || report.Stats.MusicFiles != 1 {
		t.Errorf("Unexpected stats %+v", report.Stats)
	}
	if report.Stats.UnmatchedTracks != 1 {
		t.Errorf("Expected 1 unmatched track, got %d", report.Stats.UnmatchedTracks)
	}
	if len(report.IndexBuilds) != 1 || report.IndexBuilds[0].Population != store.Inventory {
		t.Errorf("Expected the inventory build only, got %+v", report.IndexBuilds)
	}
	if report.Snapshot == nil || report.Snapshot.Total != 1 {
		t.Errorf("Expected the default snapshot, got %+v", report.Snapshot)
	}
	if len(report.ApplyRuns) != 1 || report.ApplyRuns[0].RunID != "run-1" {
		t.Errorf("Unexpected apply runs %+v", report.ApplyRuns)
	}
	if report.GeneratedAt.IsZero() {
		t.Error("Expected GeneratedAt to be set")
	}

	missing, err := GenerateSummaryReport(ctx, db, "nightly", "")
	if err != nil {
		t.Fatal(err)
	}
	if missing.Snapshot != nil {
		t.Error("Unknown cache key should have no snapshot")
	}
}

func TestWriteMarkdownReport(t *testing.T) {
	tmpDir := t.TempDir()
	outputPath := filepath.Join(tmpDir, "reports", "summary.md")
	now := time.Now()

	snap := &store.SuggestionSnapshot{
		Key:       "default",
		CreatedAt: now.Add(-time.Hour),
		Suggestions: []store.Suggestion{
			{TrackPath: "/old/Test Song.mp3", MusicPath: "/music/Test Song.mp3", Score: 1, MatchType: store.MatchExact},
			{TrackPath: "/old/Night Driv.mp3", MusicPath: "/music/Night Drive.mp3", Score: 0.7864, MatchType: store.MatchHigh},
			{TrackPath: "/old/Blue Moon Live.mp3", MusicPath: "/music/Blue Moon.flac", Score: 0.65, MatchType: store.MatchMedium},
		},
	}
	snap.Recount()

	report := &SummaryReport{
		GeneratedAt: now,
		Stats: store.Stats{
			Playlists:       2,
			TrackRows:       7,
			TrackPaths:      6,
			UnmatchedTracks: 4,
			MusicFiles:      1200,
		},
		IndexBuilds: []*store.IndexBuild{
			{Population: store.Inventory, Owners: 1200, WordsWritten: 4321, CompletedAt: now.Add(-2 * time.Hour)},
		},
		CacheKey:   "default",
		Snapshot:   snap,
		TopPerBand: 10,
		ApplyRuns: []*store.ApplyRun{
			{RunID: "0123456789abcdef", StartedAt: now.Add(-time.Minute), Applied: 3, Failed: 1, TracksUpdated: 4, PlaylistFilesUpdated: 2},
		},
		TopErrors: []ErrorSummary{
			{Error: "playlist write failed", Count: 3},
		},
		EventLogPath: "events.jsonl",
	}

	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	contentStr := string(content)

	expectedSections := []string{
		"# Playlist Janitor - Summary Report",
		"## 📊 Overview",
		"## 🗂️ Word Index",
		"## 🔍 Suggestions (`default`)",
		"### Exact",
		"### High",
		"### Medium",
		"## ⚡ Recent Apply Runs",
		"## ⚠️ Top Errors",
	}
	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Report missing section: %s", section)
		}
	}

	expectedContent := []string{
		"| Inventory Files | 1,200 |",
		"| Matched | 2 / 6 (33.3%) |",
		"| music | 1,200 | 4,321 | 0 | 2 hours ago |",
		"| 0.79 | `/old/Night Driv.mp3` | `/music/Night Drive.mp3` |",
		"| **total** | **3** |",
		"| `01234567` | 1 minute ago | 3 | 1 | 4 | 2 |",
		"| 3 | playlist write failed |",
		"**Event Log:** `events.jsonl`",
	}
	for _, line := range expectedContent {
		if !strings.Contains(contentStr, line) {
			t.Errorf("Report missing content: %s", line)
		}
	}

	if strings.Contains(contentStr, "| low |") {
		t.Error("Empty low band should not be listed")
	}
}

func TestMarkdownTopPerBand(t *testing.T) {
	snap := &store.SuggestionSnapshot{Key: "default"}
	for i := 0; i < 5; i++ {
		snap.Suggestions = append(snap.Suggestions, store.Suggestion{
			TrackPath: filepath.Join("/old", string(rune('a'+i))+".mp3"),
			MusicPath: "/music/x.mp3",
			Score:     0.95,
			MatchType: store.MatchExact,
		})
	}
	snap.Recount()

	md := RenderMarkdown(&SummaryReport{GeneratedAt: time.Now(), CacheKey: "default", Snapshot: snap, TopPerBand: 2})
	if !strings.Contains(md, "*3 more not shown*") {
		t.Error("Expected the band to be cut after 2 rows")
	}
	if strings.Contains(md, "/old/c.mp3") {
		t.Error("Row beyond the limit was rendered")
	}
}

func TestGatherTopErrors(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewEventLogger(tmpDir, LevelDebug)
	if err != nil {
		t.Fatal(err)
	}
	logger.LogError(EventImport, "/a.m3u", os.ErrPermission)
	logger.LogError(EventImport, "/b.m3u", os.ErrPermission)
	logger.LogError(EventRewrite, "/c.m3u", os.ErrNotExist)
	logger.LogScan("/music", 10, 0, time.Second)
	logger.Close()

	// Garbage lines are skipped
	f, err := os.OpenFile(logger.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("not json\n")
	f.Close()

	errors, err := gatherTopErrors(logger.Path(), 10)
	if err != nil {
		t.Fatalf("gatherTopErrors failed: %v", err)
	}
	if len(errors) != 2 {
		t.Fatalf("Expected 2 distinct errors, got %+v", errors)
	}
	if errors[0].Count != 2 || errors[0].Error != os.ErrPermission.Error() {
		t.Errorf("Most frequent error should come first, got %+v", errors[0])
	}

	limited, _ := gatherTopErrors(logger.Path(), 1)
	if len(limited) != 1 {
		t.Errorf("Expected limit of 1, got %d", len(limited))
	}

	if _, err := gatherTopErrors(filepath.Join(tmpDir, "missing.jsonl"), 10); err == nil {
		t.Error("Expected error for missing log")
	}
}

func TestTruncatePath(t *testing.T) {
	testCases := []struct {
		name   string
		path   string
		maxLen int
	}{
		{
			name:   "Short path - no truncation",
			path:   "/music/song.mp3",
			maxLen: 50,
		},
		{
			name:   "Long path - truncate middle",
			path:   "/very/long/path/to/some/music/collection/artist/album/song.mp3",
			maxLen: 30,
		},
		{
			name:   "Exactly at limit",
			path:   "/music/test.mp3",
			maxLen: 15,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := truncatePath(tc.path, tc.maxLen)

			if len(result) > tc.maxLen {
				t.Errorf("Result length %d exceeds maxLen %d", len(result), tc.maxLen)
			}
			if len(tc.path) > tc.maxLen && !strings.Contains(result, "...") {
				t.Error("Expected truncated path to contain '...'")
			}
			if len(tc.path) <= tc.maxLen && result != tc.path {
				t.Errorf("Short path should not be truncated: expected '%s', got '%s'", tc.path, result)
			}
		})
	}
}

func TestReportWithEmptyData(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := store.Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	report, err := GenerateSummaryReport(context.Background(), db, "", "")
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}
	if report.Snapshot != nil || len(report.ApplyRuns) != 0 || len(report.IndexBuilds) != 0 {
		t.Errorf("Expected an empty report, got %+v", report)
	}

	md := RenderMarkdown(report)
	if !strings.Contains(md, "| Matched | n/a |") {
		t.Error("Empty database should render n/a match share")
	}
	if strings.Contains(md, "Recent Apply Runs") {
		t.Error("Empty report should not list apply runs")
	}
	if !strings.Contains(md, "Generated by") {
		t.Error("Report missing footer")
	}
}

func setupTestData(t *testing.T, db *store.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	err := db.ReplacePlaylist(ctx, &store.Playlist{Path: "/lists/a.m3u", Format: "m3u"}, []*store.TrackRef{
		{Path: "/old/Test Song.mp3", Normalized: "test song", Position: 0, SourceFormat: "m3u"},
		{Path: "/music/Blue Moon.mp3", Normalized: "blue moon", Position: 1, SourceFormat: "m3u"},
	})
	if err != nil {
		t.Fatalf("ReplacePlaylist failed: %v", err)
	}

	if err := db.UpsertMusicFiles(ctx, []*store.MusicFile{
		{Path: "/music/Blue Moon.mp3", Normalized: "blue moon", Extension: ".mp3"},
	}); err != nil {
		t.Fatalf("UpsertMusicFiles failed: %v", err)
	}

	if err := db.RecordIndexBuild(ctx, &store.IndexBuild{
		Population: store.Inventory, Owners: 1, WordsWritten: 2, StartedAt: now, CompletedAt: now,
	}); err != nil {
		t.Fatalf("RecordIndexBuild failed: %v", err)
	}

	snap := &store.SuggestionSnapshot{
		Key:       "default",
		CreatedAt: now,
		Suggestions: []store.Suggestion{
			{TrackPath: "/old/Test Song.mp3", MusicPath: "/music/Blue Moon.mp3", Score: 0.5, MatchType: store.MatchMedium},
		},
	}
	snap.Recount()
	if err := db.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	if err := db.RecordApplyRun(ctx, &store.ApplyRun{
		RunID: "run-1", CacheKey: "default", StartedAt: now, CompletedAt: now, Applied: 1,
	}); err != nil {
		t.Fatalf("RecordApplyRun failed: %v", err)
	}
}
