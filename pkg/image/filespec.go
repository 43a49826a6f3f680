package image

import (
	"fmt"
	"io"
	"path"

	"github.com/polesapart/populatefs/internal/errx"
	"github.com/polesapart/populatefs/pkg/actionlog"
	"github.com/polesapart/populatefs/pkg/devtable"
	"github.com/polesapart/populatefs/pkg/idmap"
)

// AddFilespec creates the directories and device nodes listed in a device
// table, relative to the current directory. "f" lines only update the
// owner and mode of a file that is already in the image. Parent
// directories are not created implicitly. Owners come from the table, so
// only the squash parts of policy apply.
func (i *Image) AddFilespec(r io.Reader, policy idmap.Policy) error {
	if !i.open {
		return ErrNotOpen
	}
	entries, err := devtable.Parse(r)
	if err != nil {
		return errx.Wrap(ErrFilespec, err)
	}
	for _, e := range entries {
		for _, n := range e.Expand() {
			i.addNode(n, policy)
		}
	}
	return nil
}

func (i *Image) addNode(n devtable.Node, policy idmap.Policy) {
	target := path.Join(i.cwd, n.Path)
	if !safeName(target) {
		i.warn.add(fmt.Sprintf("%q: newline in name, skipped", n.Path))
		return
	}
	uid, gid := n.UID, n.GID
	if policy.SquashUIDs {
		uid, gid = 0, 0
	}
	perm := policy.SquashBits(n.Mode)
	dir, name := path.Split(target)
	dir = path.Clean(dir)
	if name == "" {
		if n.Type == devtable.TypeDirectory {
			i.setAttrs(target, uid, gid, sIFDIR|perm)
		}
		return
	}

	switch n.Type {
	case devtable.TypeDirectory:
		i.script.in(dir, "mkdir %s", quote(name))
		i.setAttrs(target, uid, gid, sIFDIR|perm)
		i.stats.Dirs++
		i.record(actionlog.KindMkdir, target, "", uid, gid, perm)
	case devtable.TypeFile:
		i.setAttrs(target, uid, gid, sIFREG|perm)
		i.record(actionlog.KindChmod, target, "", uid, gid, perm)
	case devtable.TypeFifo:
		i.script.in(dir, "mknod %s p", quote(name))
		i.setAttrs(target, uid, gid, sIFIFO|perm)
		i.stats.Nodes++
		i.record(actionlog.KindMknod, target, "", uid, gid, perm)
	case devtable.TypeChar, devtable.TypeBlock:
		bits := uint32(sIFCHR)
		if n.Type == devtable.TypeBlock {
			bits = sIFBLK
		}
		i.script.in(dir, "mknod %s %c %d %d", quote(name), n.Type, n.Major, n.Minor)
		i.setAttrs(target, uid, gid, bits|perm)
		i.stats.Nodes++
		i.record(actionlog.KindMknod, target, "", uid, gid, perm)
	}
}
