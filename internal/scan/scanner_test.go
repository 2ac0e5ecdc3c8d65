package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/playlist-janitor/internal/index"
	"github.com/franz/playlist-janitor/internal/store"
	"github.com/franz/playlist-janitor/internal/util"
)

func TestIsMediaFile(t *testing.T) {
	scanner := New(&Config{AdditionalExts: []string{".xm"}})

	tests := []struct {
		path     string
		expected bool
	}{
		{"test.mp3", true},
		{"test.MP3", true}, // Case insensitive
		{"test.flac", true},
		{"test.m4a", true},
		{"song.xm", true},
		{"test.txt", false},
		{"test.jpg", false},
		{"test", false},
		{".mp3", true},
	}

	for _, tt := range tests {
		result := scanner.isMediaFile(tt.path)
		if result != tt.expected {
			t.Errorf("isMediaFile(%s) = %v, expected %v", tt.path, result, tt.expected)
		}
	}
}

func createFiles(t *testing.T, paths ...string) {
	t.Helper()
	for _, path := range paths {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("not really audio"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}
}

func newTestScanner(t *testing.T, cfg Config) (*Scanner, *store.Store, *index.Index) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ix := index.New(&index.Config{Store: db})
	cfg.Store = db
	cfg.Index = ix
	return New(&cfg), db, ix
}

func TestScannerWithRealFiles(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	albumDir := filepath.Join(tmpDir, "Artist", "Album")
	createFiles(t,
		filepath.Join(albumDir, "01 - Track One.mp3"),
		filepath.Join(albumDir, "02 - Track Two.flac"),
		filepath.Join(tmpDir, "Artist", "Şarkı.m4a"),
		filepath.Join(tmpDir, "README.txt"), // Should be ignored
	)

	// Batch size 2 forces more than one batch
	scanner, db, ix := newTestScanner(t, Config{Concurrency: 2, BatchSize: 2, ReadTags: true})

	result, err := scanner.Scan(ctx, tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if result.FilesSeen != 3 || result.FilesIndexed != 3 {
		t.Errorf("Expected 3 files seen and indexed, got %+v", result)
	}
	if result.TagsRead != 0 {
		t.Errorf("Fake audio files should have no tags, got %d", result.TagsRead)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Unexpected errors: %v", result.Errors)
	}

	count, err := db.CountMusicFiles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("Expected 3 music files in store, got %d", count)
	}

	f, err := db.GetMusicFile(ctx, filepath.Join(tmpDir, "Artist", "Şarkı.m4a"))
	if err != nil || f == nil {
		t.Fatalf("GetMusicFile failed: %v", err)
	}
	if f.Normalized != "sarki" || f.Extension != ".m4a" || f.SizeBytes != int64(len("not really audio")) {
		t.Errorf("Unexpected music file %+v", f)
	}

	occ, err := ix.OwnersOf(ctx, "track", store.Inventory)
	if err != nil {
		t.Fatal(err)
	}
	if len(occ) != 2 {
		t.Errorf("Expected 2 owners of 'track', got %+v", occ)
	}
}

func TestScannerIdempotency(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	createFiles(t,
		filepath.Join(tmpDir, "a.mp3"),
		filepath.Join(tmpDir, "b.mp3"),
	)

	scanner, db, _ := newTestScanner(t, Config{})

	for i := 0; i < 2; i++ {
		if _, err := scanner.Scan(ctx, tmpDir); err != nil {
			t.Fatalf("Scan %d failed: %v", i+1, err)
		}
	}

	count, _ := db.CountMusicFiles(ctx)
	if count != 2 {
		t.Errorf("Expected 2 files after rescan, got %d", count)
	}
	rows, distinct, err := db.CountWords(ctx, store.Inventory)
	if err != nil {
		t.Fatal(err)
	}
	if rows != 2 || distinct != 2 {
		t.Errorf("Rescan duplicated words: %d rows, %d distinct", rows, distinct)
	}
}

func TestScannerPrune(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	keep := filepath.Join(tmpDir, "Keep Me.mp3")
	gone := filepath.Join(tmpDir, "Gone Song.mp3")
	createFiles(t, keep, gone)

	scanner, db, ix := newTestScanner(t, Config{Prune: true})
	if _, err := scanner.Scan(ctx, tmpDir); err != nil {
		t.Fatal(err)
	}

	// A file outside the root must survive pruning
	if err := db.UpsertMusicFiles(ctx, []*store.MusicFile{{Path: "/elsewhere/Gone Song.mp3", Normalized: "gone song"}}); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}
	result, err := scanner.Scan(ctx, tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if result.Pruned != 1 {
		t.Errorf("Expected 1 pruned file, got %d", result.Pruned)
	}

	if f, _ := db.GetMusicFile(ctx, gone); f != nil {
		t.Error("Removed file still in inventory")
	}
	if f, _ := db.GetMusicFile(ctx, "/elsewhere/Gone Song.mp3"); f == nil {
		t.Error("File outside the root was pruned")
	}
	if words, _ := ix.WordsOf(ctx, gone, store.Inventory); len(words) != 0 {
		t.Errorf("Removed file still indexed: %v", words)
	}
}

func TestScannerRejectsFileRoot(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "a.mp3")
	createFiles(t, file)

	scanner, _, _ := newTestScanner(t, Config{})
	if _, err := scanner.Scan(context.Background(), file); !errors.Is(err, util.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestScannerCancelled(t *testing.T) {
	tmpDir := t.TempDir()
	createFiles(t, filepath.Join(tmpDir, "a.mp3"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner, _, _ := newTestScanner(t, Config{})
	if _, err := scanner.Scan(ctx, tmpDir); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
