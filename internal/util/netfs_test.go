package util

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDetectNetworkFilesystem(t *testing.T) {
	tmpDir := t.TempDir()

	info, err := DetectNetworkFilesystem(tmpDir)
	if err != nil {
		t.Fatalf("DetectNetworkFilesystem failed: %v", err)
	}
	// Temp dirs are almost always local; only log
	if info.IsNetwork {
		t.Logf("WARNING: temp directory is on network storage (%s)", info.Protocol)
	}

	// A database that does not exist yet is judged by its parent
	if _, err := DetectNetworkFilesystem(filepath.Join(tmpDir, "not", "yet", "state.db")); err != nil {
		t.Errorf("missing path should resolve to its parent, got %v", err)
	}
}

func TestNearestExisting(t *testing.T) {
	tmpDir := t.TempDir()
	if got := nearestExisting(filepath.Join(tmpDir, "a", "b.db")); got != tmpDir {
		t.Errorf("expected %s, got %s", tmpDir, got)
	}
	file := filepath.Join(tmpDir, "x.db")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if got := nearestExisting(file); got != file {
		t.Errorf("expected %s, got %s", file, got)
	}
}

func TestResolveNetworkDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	tests := []struct {
		mode    string
		want    bool
		wantErr bool
	}{
		{"on", true, false},
		{"TRUE", true, false},
		{"off", false, false},
		{"no", false, false},
		{"sometimes", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			got, _, err := ResolveNetworkDB(tt.mode, dbPath)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ResolveNetworkDB(%q) = %v, %v; want %v", tt.mode, got, err, tt.want)
			}
		})
	}

	for _, mode := range []string{"", "auto"} {
		_, info, err := ResolveNetworkDB(mode, dbPath)
		if err != nil {
			t.Errorf("auto detection failed: %v", err)
		}
		if info == nil {
			t.Errorf("auto mode %q should report the detected filesystem", mode)
		}
	}
}
