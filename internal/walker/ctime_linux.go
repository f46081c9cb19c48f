//go:build linux

package walker

import (
	"io/fs"
	"syscall"
	"time"
)

// ChangeTime returns the inode change time, which is what Linux offers in
// place of a birth time.
func ChangeTime(fi fs.FileInfo) time.Time {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec))
	}
	return fi.ModTime()
}
