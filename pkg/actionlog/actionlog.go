// Package actionlog records the operations applied to a target image
// (chdir, chown, mkdir, write, link, ...) for diagnostics and replay.
// Recording is a side effect only; nothing reads it back for control flow.
package actionlog

import (
	"github.com/sirupsen/logrus"
)

type Kind string

const (
	KindChdir   Kind = "chdir"
	KindChown   Kind = "chown"
	KindChmod   Kind = "chmod"
	KindMkdir   Kind = "mkdir"
	KindWrite   Kind = "write"
	KindLink    Kind = "link"
	KindSymlink Kind = "symlink"
	KindMknod   Kind = "mknod"
)

// Action is one operation on the image. Source is the host path for writes,
// the canonical name for links and the target for symlinks.
type Action struct {
	Kind   Kind
	Path   string
	Source string
	UID    uint32
	GID    uint32
	Mode   uint32
}

type Recorder interface {
	Record(Action)
}

type nop struct{}

func (nop) Record(Action) {}

// Nop discards every action.
var Nop Recorder = nop{}

// LogRecorder logs actions at info level, so they show with -v.
type LogRecorder struct {
	log *logrus.Entry
}

func NewLogRecorder(log *logrus.Entry) *LogRecorder {
	return &LogRecorder{log: log}
}

func (r *LogRecorder) Record(a Action) {
	fields := logrus.Fields{"path": a.Path}
	switch a.Kind {
	case KindChown:
		fields["uid"] = a.UID
		fields["gid"] = a.GID
	case KindChmod, KindMkdir, KindMknod:
		fields["mode"] = a.Mode
	case KindWrite, KindLink, KindSymlink:
		fields["source"] = a.Source
	}
	r.log.WithFields(fields).Info(string(a.Kind))
}

// Multi fans an action out to every recorder in order.
type Multi []Recorder

func (m Multi) Record(a Action) {
	for _, r := range m {
		r.Record(a)
	}
}
