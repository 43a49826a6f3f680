// Package image populates an existing ext2/3/4 filesystem image without
// mounting it, by scripting debugfs -w from e2fsprogs.
//
// Operations are queued into a debugfs command script while sources are
// walked; Close runs the whole script in a single debugfs session, and
// Abort throws it away so a failed run never leaves a half-populated image.
package image

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/polesapart/populatefs/internal/errx"
	"github.com/polesapart/populatefs/pkg/actionlog"
	"github.com/polesapart/populatefs/pkg/logger"
)

const (
	defaultDebugfs = "debugfs"

	// Superblock numbers 0 and 1 both select the primary superblock.
	primarySuperblock = 1
)

// Stats counts what has been queued since Open. After Close, writes the
// debugfs session refused are no longer counted.
type Stats struct {
	Dirs     int
	Files    int
	Links    int
	Symlinks int
	Nodes    int
	Bytes    int64
}

type runFunc func(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	return cmd.CombinedOutput()
}

// Image is a target image handle. It is not safe for concurrent use.
type Image struct {
	bin string
	run runFunc
	rec actionlog.Recorder
	log *logrus.Entry

	binPath   string
	path      string
	device    string
	geometry  []string
	blockSize uint64
	open      bool
	writable  bool

	cwd     string
	pathLen int
	script  script
	links   map[string]int
	warn    *warnings
	stats   Stats
}

type Option func(*Image)

// WithDebugfs sets the debugfs binary, either a path or a name looked up
// in PATH.
func WithDebugfs(bin string) Option {
	return func(i *Image) {
		if bin != "" {
			i.bin = bin
		}
	}
}

func WithRecorder(r actionlog.Recorder) Option {
	return func(i *Image) {
		if r != nil {
			i.rec = r
		}
	}
}

func WithLogger(l *logrus.Entry) Option {
	return func(i *Image) {
		if l != nil {
			i.log = l
		}
	}
}

func withRunner(r runFunc) Option {
	return func(i *Image) { i.run = r }
}

func New(opts ...Option) *Image {
	i := &Image{
		bin:  defaultDebugfs,
		run:  execRun,
		rec:  actionlog.Nop,
		log:  logger.GetLogger("image"),
		warn: newWarnings(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.reset()
	return i
}

func (i *Image) reset() {
	i.open = false
	i.cwd = "/"
	i.pathLen = 0
	i.script.reset()
	i.links = make(map[string]int)
}

// Open checks that path holds a filesystem debugfs can read, using the
// given superblock and block size, and prepares a new command script.
// ioOptions are appended to the device name after a '?', the way
// libext2fs expects them (for example "offset=1048576").
func (i *Image) Open(ctx context.Context, imagePath, ioOptions string, superblock, blockSize uint64) error {
	if i.open {
		return errx.With(ErrAlreadyOpen, ": %s", i.path)
	}
	if superblock > primarySuperblock && blockSize == 0 {
		return errx.With(ErrSuperblockNeedsBlockSize, ": superblock %d", superblock)
	}

	binPath, err := exec.LookPath(i.bin)
	if err != nil {
		return errx.With(ErrDebugfsNotFound, ": %s; install e2fsprogs: %w", i.bin, err)
	}
	if _, err := os.Stat(imagePath); err != nil {
		return errx.Wrap(ErrOpenImage, err)
	}

	device := imagePath
	if ioOptions != "" {
		device += "?" + ioOptions
	}
	var geometry []string
	if superblock > primarySuperblock {
		geometry = append(geometry, "-s", strconv.FormatUint(superblock, 10))
	}
	if blockSize > 0 {
		geometry = append(geometry, "-b", strconv.FormatUint(blockSize, 10))
	}

	args := append(append([]string(nil), geometry...), "-R", "stats -h", device)
	out, err := i.run(ctx, nil, binPath, args...)
	if err != nil {
		return errx.With(ErrOpenImage, ": %s: %w: %s", device, err, firstLine(out))
	}
	detected, ok := parseStats(out)
	if !ok {
		return errx.With(ErrOpenImage, ": %s: %s", device, firstLine(out))
	}

	i.reset()
	i.warn = newWarnings()
	i.stats = Stats{}
	i.binPath = binPath
	i.path = imagePath
	i.device = device
	i.geometry = geometry
	i.blockSize = detected
	i.writable = unix.Access(imagePath, unix.W_OK) == nil
	i.open = true

	i.log.WithFields(logrus.Fields{
		"device":     device,
		"block_size": detected,
		"writable":   i.writable,
	}).Debug("opened image")
	return nil
}

// parseStats extracts the block size from "debugfs -R 'stats -h'" output.
// ok is false when the output does not describe a superblock.
func parseStats(out []byte) (uint64, bool) {
	var blockSize uint64
	ok := false
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, found := strings.Cut(sc.Text(), ":")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Block count":
			ok = true
		case "Block size":
			blockSize, _ = strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		}
	}
	return blockSize, ok
}

func (i *Image) IsClosed() bool {
	return !i.open
}

func (i *Image) IsReadWrite() bool {
	return i.open && i.writable
}

// BlockSize is the filesystem block size reported when the image was opened.
func (i *Image) BlockSize() uint64 {
	return i.blockSize
}

func (i *Image) Stats() Stats {
	return i.stats
}

// Warnings returns the advisory messages collected since Open, including
// the ones produced by the debugfs session on Close.
func (i *Image) Warnings() []string {
	return i.warn.all()
}

// Chdir moves the current directory used to resolve relative names.
func (i *Image) Chdir(p string) {
	i.cwd = i.resolve(p)
}

// Chown sets the owner and group of p.
func (i *Image) Chown(p string, uid, gid uint32) {
	target := i.resolve(p)
	if !safeName(target) {
		i.warn.add(fmt.Sprintf("%q: newline in name, ownership not set", target))
		return
	}
	i.setOwner(target, uid, gid)
}

// SetPathLen sets how many leading bytes of host paths are stripped when
// mapping them into the image during the next AddPath.
func (i *Image) SetPathLen(n int) {
	i.pathLen = n
}

// Close runs the queued script in one debugfs -w session. Diagnostics from
// individual commands become warnings; a failing session, or a failure to
// open or close the filesystem inside it, makes the close unclean.
func (i *Image) Close(ctx context.Context) error {
	if !i.open {
		return ErrNotOpen
	}
	defer i.reset()

	if i.script.empty() {
		return nil
	}

	i.log.WithField("commands", i.script.count()).Debug("running debugfs session")
	args := append(append([]string(nil), i.geometry...), "-w", "-f", "-", i.device)
	out, err := i.run(ctx, strings.NewReader(i.script.String()), i.binPath, args...)
	fatal := i.collectOutput(out)
	if err != nil {
		return errx.With(ErrCloseImage, ": %s: %w: %s", i.device, err, lastLine(out))
	}
	if fatal != "" {
		return errx.With(ErrCloseImage, ": %s: %s", i.device, fatal)
	}
	return nil
}

// Abort discards every queued operation and closes the handle.
func (i *Image) Abort() {
	if !i.open {
		return
	}
	i.log.WithField("commands", i.script.count()).Warn("discarding queued image changes")
	i.reset()
}

// collectOutput sorts the session output into warnings and the first fatal
// line. debugfs echoes every command it reads with -f, so a diagnostic
// following the echo of a write means that write was refused.
func (i *Image) collectOutput(out []byte) string {
	var fatal string
	writes := i.script.writes
	next, refused := 0, -1
	current := -1
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		i.log.Debug(line)
		if isFatalOutput(line) {
			if fatal == "" {
				fatal = line
			}
			continue
		}
		if cmd, ok := strings.CutPrefix(line, "debugfs: "); ok {
			current = -1
			if strings.HasPrefix(cmd, "write ") && next < len(writes) {
				current = next
				next++
			}
			continue
		}
		// Banner and inode allocation notices from write.
		if strings.HasPrefix(line, "debugfs ") || strings.HasPrefix(line, "Allocated inode") {
			continue
		}
		if current >= 0 {
			w := writes[current]
			if current != refused {
				refused = current
				i.stats.Files--
				i.stats.Bytes -= w.size
			}
			i.warn.add(fmt.Sprintf("%s: %s", w.target, line))
			continue
		}
		i.warn.add(line)
	}
	return fatal
}

func isFatalOutput(line string) bool {
	return strings.HasPrefix(line, "ext2fs_close") ||
		strings.Contains(line, "while trying to open") ||
		strings.Contains(line, "while opening filesystem") ||
		strings.Contains(line, "Filesystem opened read/only")
}

func (i *Image) resolve(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(i.cwd, p)
}

func (i *Image) setOwner(target string, uid, gid uint32) {
	i.script.emitf("sif %s uid %d", quote(target), uid)
	i.script.emitf("sif %s gid %d", quote(target), gid)
}

func (i *Image) setAttrs(target string, uid, gid, mode uint32) {
	i.setOwner(target, uid, gid)
	i.script.emitf("sif %s mode 0%o", quote(target), mode)
}

// DebugfsVersion returns the version banner of the debugfs binary.
func DebugfsVersion(ctx context.Context, bin string) (string, error) {
	if bin == "" {
		bin = defaultDebugfs
	}
	binPath, err := exec.LookPath(bin)
	if err != nil {
		return "", errx.With(ErrDebugfsNotFound, ": %s: %w", bin, err)
	}
	out, err := execRun(ctx, nil, binPath, "-V")
	if err != nil {
		return "", errx.With(ErrDebugfsVersion, ": %w: %s", err, firstLine(out))
	}
	return strings.TrimSpace(string(out)), nil
}

func firstLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func lastLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}
