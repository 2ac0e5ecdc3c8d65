//go:build !linux && !darwin

package util

import "syscall"

// Other platforms are treated as local
func detectPlatformNetwork(path string, stat *syscall.Statfs_t) (*NetworkInfo, error) {
	return &NetworkInfo{}, nil
}
