//go:build linux

package util

import (
	"bufio"
	"os"
	"strings"
	"syscall"
)

// Kernel superblock magics of network filesystems
var networkMagics = map[uint32]string{
	0x6969:     "nfs",
	0xff534d42: "cifs",
	0xfe534d42: "smb2",
	0x517b:     "smb",
	0x564c:     "ncp",
}

func detectPlatformNetwork(path string, stat *syscall.Statfs_t) (*NetworkInfo, error) {
	info := &NetworkInfo{}
	if proto, ok := networkMagics[uint32(stat.Type)]; ok {
		info.IsNetwork = true
		info.Protocol = proto
	}

	mounts, err := parseProcMounts()
	if err != nil {
		return info, nil
	}
	if mount, fsType := mountFor(mounts, path); mount != "" {
		info.MountPath = mount
		if isNetworkFSType(fsType) {
			info.IsNetwork = true
			info.Protocol = strings.ToLower(fsType)
		}
	}
	return info, nil
}

// mountFor returns the most specific mount point containing path
func mountFor(mounts map[string]string, path string) (string, string) {
	best := ""
	for mount := range mounts {
		if !within(path, mount) || len(mount) <= len(best) {
			continue
		}
		best = mount
	}
	if best == "" {
		return "", ""
	}
	return best, mounts[best]
}

func within(path, mount string) bool {
	if mount == "/" || path == mount {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(mount, "/")+"/")
}

func isNetworkFSType(fsType string) bool {
	t := strings.ToLower(fsType)
	for _, n := range []string{"nfs", "cifs", "smb", "ncpfs", "fuse.sshfs", "fuse.rclone"} {
		if strings.Contains(t, n) {
			return true
		}
	}
	return false
}

// parseProcMounts maps mount points to filesystem types
func parseProcMounts() (map[string]string, error) {
	file, err := os.Open("/proc/mounts")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	mounts := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		// device mountpoint fstype options dump pass
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mounts[fields[1]] = fields[2]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return mounts, nil
}
