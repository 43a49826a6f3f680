// Package populate sequences one run of image population: open the target
// image, hand every source to the writer in command-line order with the
// ownership policy applied, then close the image.
//
// Every failure is fatal. The run moves to the abort phase, pending image
// work is discarded and the error is returned to the caller.
package populate

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/polesapart/populatefs/internal/errx"
	"github.com/polesapart/populatefs/pkg/actionlog"
	"github.com/polesapart/populatefs/pkg/idmap"
	"github.com/polesapart/populatefs/pkg/linkreg"
	"github.com/polesapart/populatefs/pkg/logger"
)

type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

type Config struct {
	Image      string
	IOOptions  string
	Superblock uint64
	BlockSize  uint64
	// Sources are device table files and directories, processed in order.
	Sources []string
	Policy  idmap.Policy
}

type Result struct {
	Image    string
	Files    int
	Dirs     int
	Warnings []string
}

type Populator struct {
	target Target
	rec    actionlog.Recorder
	out    io.Writer
	log    *logrus.Entry

	phase   Phase
	history []Phase
	reg     *linkreg.Registry
}

type Option func(*Populator)

func WithRecorder(r actionlog.Recorder) Option {
	return func(p *Populator) {
		if r != nil {
			p.rec = r
		}
	}
}

// WithOutput sets where progress lines are printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(p *Populator) {
		if w != nil {
			p.out = w
		}
	}
}

func WithLogger(l *logrus.Entry) Option {
	return func(p *Populator) {
		if l != nil {
			p.log = l
		}
	}
}

func New(target Target, opts ...Option) *Populator {
	p := &Populator{
		target: target,
		rec:    actionlog.Nop,
		out:    os.Stdout,
		log:    logger.GetLogger("populate"),
		phase:  PhaseInit,
		reg:    linkreg.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Phase returns the phase the last run reached.
func (p *Populator) Phase() Phase {
	return p.phase
}

// History returns every phase entered by the last run, in order.
func (p *Populator) History() []Phase {
	return append([]Phase(nil), p.history...)
}

// NormalizeSource drops one trailing slash, except from the root itself.
func NormalizeSource(src string) string {
	if len(src) > 1 && strings.HasSuffix(src, "/") {
		return src[:len(src)-1]
	}
	return src
}

// Run executes one population run. A Populator runs once at a time.
func (p *Populator) Run(ctx context.Context, cfg Config) (*Result, error) {
	p.phase = PhaseInit
	p.history = []Phase{PhaseInit}
	p.reg.Clear()

	res, err := p.run(ctx, cfg)
	if err != nil {
		p.abort(cfg.Image, err)
		return nil, err
	}
	return res, nil
}

func (p *Populator) enter(next Phase) error {
	if err := validateTransition(p.phase, next); err != nil {
		return err
	}
	p.phase = next
	p.history = append(p.history, next)
	p.log.WithField("phase", next).Debug("enter phase")
	return nil
}

func (p *Populator) run(ctx context.Context, cfg Config) (*Result, error) {
	if err := p.enter(PhaseImageOpenPending); err != nil {
		return nil, err
	}
	if !p.target.IsClosed() {
		return nil, errx.With(ErrImageAlreadyOpen, ": %s", cfg.Image)
	}
	if err := p.target.Open(ctx, cfg.Image, cfg.IOOptions, cfg.Superblock, cfg.BlockSize); err != nil {
		return nil, errx.With(ErrImageOpen, ": %s: %w", cfg.Image, err)
	}
	if err := p.enter(PhaseImageOpen); err != nil {
		return nil, err
	}
	if !p.target.IsReadWrite() {
		return nil, errx.With(ErrImageReadOnly, ": %s", cfg.Image)
	}

	res := &Result{Image: cfg.Image}
	stamped := false
	for _, raw := range cfg.Sources {
		if err := ctx.Err(); err != nil {
			return nil, errx.Wrap(ErrCanceled, err)
		}
		src := NormalizeSource(raw)

		if err := p.enter(PhaseClassify); err != nil {
			return nil, err
		}
		kind, info, err := classify(src)
		if err != nil {
			return nil, err
		}

		if err := p.enter(PhaseTransform); err != nil {
			return nil, err
		}
		uid, gid := cfg.Policy.Apply(idmap.Owner(info))

		if err := p.enter(PhaseDelegate); err != nil {
			return nil, err
		}
		p.rec.Record(actionlog.Action{Kind: actionlog.KindChdir, Path: "/"})
		p.target.Chdir("/")

		switch kind {
		case KindFile:
			fmt.Fprintf(p.out, "Populating filesystem from filespec (%s)\n", src)
			if err := p.addFile(src, uid, gid, !stamped, cfg.Policy); err != nil {
				return nil, err
			}
			stamped = true
			res.Files++
		case KindDirectory:
			fmt.Fprintf(p.out, "Populating filesystem from path (%s)\n", src)
			p.target.SetPathLen(len(src))
			if err := p.target.AddPath(src, p.reg, cfg.Policy); err != nil {
				return nil, errx.With(ErrPopulate, ": %s: %w", src, err)
			}
			res.Dirs++
		}

		if err := p.enter(PhaseResetIdentity); err != nil {
			return nil, err
		}
		if kind == KindDirectory {
			p.log.WithField("identities", p.reg.Len()).Debug("release hardlink registry")
			p.reg.Clear()
		}
	}

	if err := p.enter(PhaseImageClose); err != nil {
		return nil, err
	}
	if err := p.target.Close(ctx); err != nil {
		return nil, errx.With(ErrImageClose, ": %s: %w", cfg.Image, err)
	}
	if err := p.enter(PhaseDone); err != nil {
		return nil, err
	}

	res.Warnings = p.flushWarnings()
	return res, nil
}

func classify(src string) (Kind, os.FileInfo, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", nil, errx.With(ErrStatSource, ": %s: %w", src, err)
	}
	switch {
	case info.Mode().IsRegular():
		return KindFile, info, nil
	case info.IsDir():
		return KindDirectory, info, nil
	}
	return "", nil, errx.With(ErrUnsupportedSource, ": %s", src)
}

// addFile feeds a device table to the writer. The first file source of a
// run also stamps its transformed owner on the image root.
func (p *Populator) addFile(src string, uid, gid uint32, stamp bool, policy idmap.Policy) error {
	f, err := os.Open(src)
	if err != nil {
		return errx.With(ErrOpenSource, ": %s: %w", src, err)
	}
	defer f.Close()

	if stamp {
		p.rec.Record(actionlog.Action{Kind: actionlog.KindChown, Path: "/", UID: uid, GID: gid})
		p.target.Chown("/", uid, gid)
	}
	if err := p.target.AddFilespec(f, policy); err != nil {
		return errx.With(ErrPopulate, ": %s: %w", src, err)
	}
	return nil
}

func (p *Populator) flushWarnings() []string {
	out := p.target.Warnings()
	for _, w := range out {
		p.log.Warn(w)
	}
	return out
}

func (p *Populator) abort(imagePath string, cause error) {
	if !p.phase.Terminal() {
		p.phase = PhaseAbort
		p.history = append(p.history, PhaseAbort)
	}
	if !p.target.IsClosed() {
		p.target.Abort()
	}
	p.log.WithError(cause).WithField("image", imagePath).Debug("run aborted")
}
