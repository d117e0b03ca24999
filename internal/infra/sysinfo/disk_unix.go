//go:build !windows

package sysinfo

import "golang.org/x/sys/unix"

// FreeDiskSpaceMB reports free space on the filesystem holding path
func FreeDiskSpaceMB(path string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize) / (1024 * 1024), nil
}
