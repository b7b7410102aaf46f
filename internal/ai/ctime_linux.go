//go:build linux

package ai

import (
	"io/fs"
	"syscall"
	"time"
)

// changeTime returns the inode change time, or mtime when unavailable.
func changeTime(info fs.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec)) //nolint:unconvert // int32 on 32-bit platforms
	}
	return info.ModTime()
}
