// Package logger configures the process-wide logrus logger and hands out
// per-component entries.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"golang.org/x/term"
)

type Options struct {
	// Verbose logs every action (-v).
	Verbose bool
	// Debug logs every writer command and its output (-w).
	Debug bool
	// File, when set, receives the log as well, rotated by size.
	File string
	// Output defaults to stderr.
	Output io.Writer
}

var (
	mu   sync.Mutex
	base = newBase()
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&prefixed.TextFormatter{
		DisableTimestamp: true,
	})
	return l
}

// Level maps the verbosity flags to a logrus level.
func Level(verbose, debug bool) logrus.Level {
	switch {
	case debug:
		return logrus.DebugLevel
	case verbose:
		return logrus.InfoLevel
	default:
		return logrus.WarnLevel
	}
}

// Init reconfigures the shared logger. It is safe to call more than once;
// the last call wins.
func Init(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	color := isTerminal(out)
	if opts.File != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    5,
			MaxBackups: 3,
			MaxAge:     14,
		})
		color = false
	}

	base.SetOutput(out)
	base.SetLevel(Level(opts.Verbose, opts.Debug))
	base.SetFormatter(&prefixed.TextFormatter{
		DisableColors:   !color,
		ForceFormatting: true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// GetLogger returns an entry tagged with the component prefix.
func GetLogger(prefix string) *logrus.Entry {
	return base.WithField("prefix", prefix)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
