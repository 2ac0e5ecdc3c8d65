package util

import (
	"strings"
	"testing"
)

func TestAutoTuneForPath(t *testing.T) {
	dir := t.TempDir()
	on, off := true, false

	tests := []struct {
		name    string
		nasMode *bool
		base    int
		wantNAS bool
		wantCon int
	}{
		{"forced on caps concurrency", &on, 16, true, 4},
		{"forced on with zero", &on, 0, true, 2},
		{"forced on keeps low", &on, 3, true, 3},
		{"forced off", &off, 16, false, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AutoTuneForPath(dir, tt.nasMode, tt.base)
			if cfg.IsNASMode != tt.wantNAS || cfg.Concurrency != tt.wantCon {
				t.Errorf("got %+v, want nas=%v concurrency=%d", cfg, tt.wantNAS, tt.wantCon)
			}
		})
	}

	// Temp dirs are local almost everywhere
	cfg := AutoTuneForPath(dir, nil, 8)
	if !cfg.IsNASMode && cfg.Concurrency != 8 {
		t.Errorf("local path should keep concurrency, got %d", cfg.Concurrency)
	}
}

func TestFormatNASSettings(t *testing.T) {
	if s := FormatNASSettings(&NASConfig{}); !strings.Contains(s, "disabled") {
		t.Errorf("unexpected %q", s)
	}
	s := FormatNASSettings(&NASConfig{IsNASMode: true, Concurrency: 2, DetectedInfo: &NetworkInfo{Protocol: "nfs", MountPath: "/mnt/nas"}})
	if !strings.Contains(s, "nfs at /mnt/nas, 2 readers") {
		t.Errorf("unexpected %q", s)
	}
}
