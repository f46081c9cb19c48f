//go:build !linux

package walker

import (
	"io/fs"
	"time"
)

// ChangeTime falls back to the modification time where no change time is exposed.
func ChangeTime(fi fs.FileInfo) time.Time {
	return fi.ModTime()
}
