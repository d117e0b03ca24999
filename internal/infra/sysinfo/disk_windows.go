//go:build windows

package sysinfo

import "golang.org/x/sys/windows"

// FreeDiskSpaceMB reports free space on the volume holding path
func FreeDiskSpaceMB(path string) (int64, error) {
	var freeBytes uint64
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	if err := windows.GetDiskFreeSpaceEx(p, &freeBytes, nil, nil); err != nil {
		return 0, err
	}
	return int64(freeBytes / (1024 * 1024)), nil
}
