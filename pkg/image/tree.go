package image

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/polesapart/populatefs/internal/errx"
	"github.com/polesapart/populatefs/pkg/actionlog"
	"github.com/polesapart/populatefs/pkg/idmap"
	"github.com/polesapart/populatefs/pkg/linkreg"
)

// Inode type bits written with the permission bits by "sif <path> mode".
const (
	sIFIFO = 0o010000
	sIFCHR = 0o020000
	sIFDIR = 0o040000
	sIFBLK = 0o060000
	sIFREG = 0o100000
)

type hostEntry struct {
	path string
	info fs.FileInfo
}

// collect walks root without following symlinks and returns every entry
// below it sorted by path, so parents always come before their children.
func collect(root string) ([]hostEntry, error) {
	var (
		mu      sync.Mutex
		entries []hostEntry
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		mu.Lock()
		entries = append(entries, hostEntry{path: p, info: info})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].path < entries[b].path })
	return entries, nil
}

// AddPath copies the tree below root into the image, relative to the
// current directory. Host regular files sharing an identity recorded in
// reg become hard links to the first name they were written under.
func (i *Image) AddPath(root string, reg *linkreg.Registry, policy idmap.Policy) error {
	if !i.open {
		return ErrNotOpen
	}
	entries, err := collect(root)
	if err != nil {
		return errx.With(ErrWalkSource, ": %s: %w", root, err)
	}

	var skipped []string
	for _, e := range entries {
		if under(e.path, skipped) {
			continue
		}
		rel := e.path[min(i.pathLen, len(e.path)):]
		target := path.Join(i.cwd, filepath.ToSlash(rel))
		if !safeName(target) {
			i.warn.add(fmt.Sprintf("%q: newline in name, skipped", e.path))
			if e.info.IsDir() {
				skipped = append(skipped, e.path+string(filepath.Separator))
			}
			continue
		}
		if err := i.addEntry(e, target, reg, policy); err != nil {
			return err
		}
	}
	return nil
}

func under(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (i *Image) addEntry(e hostEntry, target string, reg *linkreg.Registry, policy idmap.Policy) error {
	uid, gid := policy.Apply(idmap.Owner(e.info))
	perm := policy.Perm(e.info.Mode())
	dir, name := path.Split(target)
	dir = path.Clean(dir)
	mode := e.info.Mode()

	switch {
	case mode.IsDir():
		i.script.in(dir, "mkdir %s", quote(name))
		i.setAttrs(target, uid, gid, sIFDIR|perm)
		i.stats.Dirs++
		i.record(actionlog.KindMkdir, target, e.path, uid, gid, perm)

	case mode.IsRegular():
		if !safeName(e.path) {
			i.warn.add(fmt.Sprintf("%q: newline in host path, skipped", e.path))
			return nil
		}
		if key, nlink, ok := hostKey(e); ok && nlink > 1 {
			if canonical, found := reg.RegisterOrLookup(key, target); found {
				i.link(dir, name, canonical, target)
				return nil
			}
		}
		i.script.write(dir, e.path, name, target, e.info.Size())
		i.setAttrs(target, uid, gid, sIFREG|perm)
		i.stats.Files++
		i.stats.Bytes += e.info.Size()
		i.record(actionlog.KindWrite, target, e.path, uid, gid, perm)

	case mode&fs.ModeSymlink != 0:
		dest, err := os.Readlink(e.path)
		if err != nil {
			return errx.Wrap(ErrReadLink, err)
		}
		if !safeName(dest) {
			i.warn.add(fmt.Sprintf("%q: newline in symlink target, skipped", e.path))
			return nil
		}
		i.script.in(dir, "symlink %s %s", quote(name), quote(dest))
		i.setOwner(target, uid, gid)
		i.stats.Symlinks++
		i.record(actionlog.KindSymlink, target, dest, uid, gid, 0o777)

	case mode&fs.ModeNamedPipe != 0:
		i.script.in(dir, "mknod %s p", quote(name))
		i.setAttrs(target, uid, gid, sIFIFO|perm)
		i.stats.Nodes++
		i.record(actionlog.KindMknod, target, e.path, uid, gid, perm)

	case mode&fs.ModeDevice != 0:
		major, minor := deviceNumbers(e.info)
		kind, bits := "b", uint32(sIFBLK)
		if mode&fs.ModeCharDevice != 0 {
			kind, bits = "c", sIFCHR
		}
		i.script.in(dir, "mknod %s %s %d %d", quote(name), kind, major, minor)
		i.setAttrs(target, uid, gid, bits|perm)
		i.stats.Nodes++
		i.record(actionlog.KindMknod, target, e.path, uid, gid, perm)

	default:
		i.warn.add(fmt.Sprintf("%s: unsupported file type, skipped", e.path))
	}
	return nil
}

// hostKey returns the identity of e, asking the host again when the walk
// did not carry stat data.
func hostKey(e hostEntry) (linkreg.Key, uint64, bool) {
	if key, nlink, ok := linkreg.KeyOf(e.info); ok {
		return key, nlink, true
	}
	key, nlink, err := linkreg.Lstat(e.path)
	return key, nlink, err == nil
}

// link adds name as another directory entry for canonical. debugfs ln does
// not touch the inode, so the link count is raised explicitly.
func (i *Image) link(dir, name, canonical, target string) {
	n := i.links[canonical]
	if n == 0 {
		n = 1
	}
	n++
	i.links[canonical] = n

	i.script.in(dir, "ln %s %s", quote(canonical), quote(name))
	i.script.emitf("sif %s links_count %d", quote(canonical), n)
	i.stats.Links++
	i.record(actionlog.KindLink, target, canonical, 0, 0, 0)
}

func (i *Image) record(kind actionlog.Kind, target, source string, uid, gid, mode uint32) {
	i.rec.Record(actionlog.Action{
		Kind:   kind,
		Path:   target,
		Source: source,
		UID:    uid,
		GID:    gid,
		Mode:   mode,
	})
}
