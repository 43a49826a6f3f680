package populate

import (
	"context"
	"io"

	"github.com/polesapart/populatefs/pkg/idmap"
	"github.com/polesapart/populatefs/pkg/linkreg"
)

// Target is the image writer the orchestrator drives. *image.Image is the
// debugfs-backed implementation.
type Target interface {
	IsClosed() bool
	Open(ctx context.Context, path, ioOptions string, superblock, blockSize uint64) error
	IsReadWrite() bool

	Chdir(path string)
	Chown(path string, uid, gid uint32)

	// AddFilespec adds the directories and nodes described by a device
	// table.
	AddFilespec(r io.Reader, policy idmap.Policy) error
	// SetPathLen sets the host path prefix length stripped by the next
	// AddPath.
	SetPathLen(n int)
	// AddPath copies a host tree, linking files whose identity is already
	// in reg.
	AddPath(root string, reg *linkreg.Registry, policy idmap.Policy) error

	// Close flushes pending work. An error means the image was not closed
	// cleanly.
	Close(ctx context.Context) error
	// Abort drops pending work after a fatal error.
	Abort()
	// Warnings returns the advisory messages collected so far, each once,
	// in the order they were first seen.
	Warnings() []string
}
