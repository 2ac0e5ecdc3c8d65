package util

import (
	"fmt"
)

// NASConfig holds scan settings tuned for the filesystem of a music root
type NASConfig struct {
	Concurrency  int
	IsNASMode    bool
	DetectedInfo *NetworkInfo
}

// AutoTuneForPath detects whether root is on network storage and lowers
// the scan concurrency if so. A non-nil nasMode overrides detection.
func AutoTuneForPath(root string, nasMode *bool, baseConcurrency int) *NASConfig {
	cfg := &NASConfig{Concurrency: baseConcurrency}

	if nasMode != nil {
		cfg.IsNASMode = *nasMode
		if cfg.IsNASMode {
			applyNASOptimizations(cfg)
			DebugLog("NAS mode: explicitly enabled via config/flag")
		}
		return cfg
	}

	info, err := DetectNetworkFilesystem(root)
	if err != nil {
		WarnLog("Failed to detect filesystem of %s: %v", root, err)
		return cfg
	}
	if !info.IsNetwork {
		return cfg
	}

	cfg.IsNASMode = true
	cfg.DetectedInfo = info
	applyNASOptimizations(cfg)
	InfoLog("Network filesystem detected: %s is on %s (%s)", root, info.Protocol, info.MountPath)
	InfoLog("  Concurrency: %d → %d readers", baseConcurrency, cfg.Concurrency)
	return cfg
}

// NAS devices often have limited concurrent connection capacity
func applyNASOptimizations(cfg *NASConfig) {
	if cfg.Concurrency > 4 {
		cfg.Concurrency = 4
	} else if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
}

// FormatNASSettings returns a human-readable string of NAS settings
func FormatNASSettings(cfg *NASConfig) string {
	if !cfg.IsNASMode {
		return "NAS mode: disabled (local filesystem)"
	}

	protocol := "unknown"
	mountPath := "unknown"
	if cfg.DetectedInfo != nil {
		protocol = cfg.DetectedInfo.Protocol
		mountPath = cfg.DetectedInfo.MountPath
	}
	return fmt.Sprintf("NAS mode: enabled (%s at %s, %d readers)", protocol, mountPath, cfg.Concurrency)
}
