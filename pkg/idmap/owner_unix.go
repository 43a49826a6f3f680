//go:build unix

package idmap

import (
	"io/fs"
	"syscall"
)

// Owner returns the host owner and group recorded in fi. Both are 0 when
// the platform metadata is unavailable.
func Owner(fi fs.FileInfo) (uint32, uint32) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return 0, 0
	}
	return st.Uid, st.Gid
}
