//go:build unix

package linkreg

import (
	"io/fs"
	"syscall"

	"golang.org/x/sys/unix"
)

// KeyOf extracts the identity and link count from host metadata as returned
// by os.Lstat or fs.DirEntry.Info. ok is false when the platform metadata is
// unavailable.
func KeyOf(fi fs.FileInfo) (Key, uint64, bool) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return Key{}, 0, false
	}
	return Key{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}, uint64(st.Nlink), true
}

// Lstat returns the identity and link count of path without following a
// trailing symlink.
func Lstat(path string) (Key, uint64, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return Key{}, 0, err
	}
	return Key{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}, uint64(st.Nlink), nil
}
