//go:build unix

package image

import (
	"io/fs"
	"syscall"

	"golang.org/x/sys/unix"
)

func deviceNumbers(fi fs.FileInfo) (uint32, uint32) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return 0, 0
	}
	rdev := uint64(st.Rdev)
	return unix.Major(rdev), unix.Minor(rdev)
}
