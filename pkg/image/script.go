package image

import (
	"fmt"
	"strings"
)

// script accumulates debugfs commands. debugfs starts every session in the
// root directory; cd is only emitted when the directory changes.
type script struct {
	b      strings.Builder
	dir    string
	n      int
	writes []queuedWrite
}

// queuedWrite is one write command, in script order, so the session
// output can be matched back to it.
type queuedWrite struct {
	target string
	size   int64
}

func (s *script) reset() {
	s.b.Reset()
	s.dir = "/"
	s.n = 0
	s.writes = nil
}

func (s *script) emitf(format string, args ...any) {
	fmt.Fprintf(&s.b, format, args...)
	s.b.WriteByte('\n')
	s.n++
}

func (s *script) cd(dir string) {
	if dir == s.dir {
		return
	}
	s.emitf("cd %s", quote(dir))
	s.dir = dir
}

// in runs a command from dir. write, mknod and mkdir create their entry in
// the session's current directory, so every creating command goes
// through here.
func (s *script) in(dir, format string, args ...any) {
	s.cd(dir)
	s.emitf(format, args...)
}

func (s *script) write(dir, hostPath, name, target string, size int64) {
	s.in(dir, "write %s %s", quote(hostPath), quote(name))
	s.writes = append(s.writes, queuedWrite{target: target, size: size})
}

func (s *script) empty() bool {
	return s.n == 0
}

func (s *script) count() int {
	return s.n
}

func (s *script) String() string {
	return s.b.String()
}

// quote makes s one debugfs argument. The libss line parser ends a quoted
// argument at a lone '"' and reads "" inside quotes as a literal quote.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// safeName reports whether s fits on a single script line.
func safeName(s string) bool {
	return s != "" && !strings.ContainsAny(s, "\n\x00")
}
