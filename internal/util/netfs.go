package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// NetworkInfo describes the filesystem a path lives on
type NetworkInfo struct {
	IsNetwork bool
	Protocol  string // nfs, cifs, smbfs... empty when local
	MountPath string
}

// DetectNetworkFilesystem reports whether path is on a network mount.
// A path that does not exist yet is judged by its nearest existing parent,
// so a database can be classified before it is created.
func DetectNetworkFilesystem(path string) (*NetworkInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	existing := nearestExisting(absPath)

	var stat syscall.Statfs_t
	if err := syscall.Statfs(existing, &stat); err != nil {
		return nil, fmt.Errorf("failed to stat filesystem of %s: %w", existing, err)
	}
	return detectPlatformNetwork(existing, &stat)
}

func nearestExisting(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}

// ResolveNetworkDB decides whether the database at dbPath gets the
// network-optimized pragmas. mode is "auto", "on" or "off"; empty means auto.
func ResolveNetworkDB(mode, dbPath string) (bool, *NetworkInfo, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "on", "true", "yes":
		return true, nil, nil
	case "off", "false", "no":
		return false, nil, nil
	case "", "auto":
		info, err := DetectNetworkFilesystem(dbPath)
		if err != nil {
			// Undetectable means local
			return false, nil, nil
		}
		return info.IsNetwork, info, nil
	default:
		return false, nil, fmt.Errorf("%w: network-db must be auto, on or off, got %q", ErrInvalidInput, mode)
	}
}
