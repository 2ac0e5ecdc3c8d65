//go:build linux

package util

import "testing"

func TestParseProcMounts(t *testing.T) {
	mounts, err := parseProcMounts()
	if err != nil {
		t.Fatalf("Failed to parse /proc/mounts: %v", err)
	}
	if _, found := mounts["/"]; !found {
		t.Error("Expected root filesystem to be mounted")
	}
}

func TestMountFor(t *testing.T) {
	mounts := map[string]string{
		"/":          "ext4",
		"/mnt/nas":   "cifs",
		"/mnt/nas2":  "ext4",
		"/home/data": "nfs4",
	}

	tests := []struct {
		path      string
		wantMount string
		network   bool
	}{
		{"/mnt/nas/music/state.db", "/mnt/nas", true},
		{"/mnt/nas2/state.db", "/mnt/nas2", false},
		{"/mnt/nas", "/mnt/nas", true},
		{"/home/data/x.db", "/home/data", true},
		{"/var/lib/state.db", "/", false},
	}
	for _, tt := range tests {
		mount, fsType := mountFor(mounts, tt.path)
		if mount != tt.wantMount {
			t.Errorf("mountFor(%s) = %s, want %s", tt.path, mount, tt.wantMount)
		}
		if isNetworkFSType(fsType) != tt.network {
			t.Errorf("%s: network = %v, want %v", tt.path, !tt.network, tt.network)
		}
	}
}
