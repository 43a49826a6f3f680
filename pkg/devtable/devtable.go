// Package devtable parses makedevs/genext2fs style device tables:
//
//	<path> <type> <mode> <uid> <gid> <major> <minor> <start> <inc> <count>
//
// type is one of f (existing file), d (directory), c (char device),
// b (block device) or p (fifo). mode is octal; the other numbers accept
// 0x and 0 prefixes, and "-" stands for 0. Lines starting with # and blank
// lines are ignored.
package devtable

import (
	"bufio"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/polesapart/populatefs/internal/errx"
)

type Type byte

const (
	TypeFile      Type = 'f'
	TypeDirectory Type = 'd'
	TypeChar      Type = 'c'
	TypeBlock     Type = 'b'
	TypeFifo      Type = 'p'
)

func (t Type) valid() bool {
	switch t {
	case TypeFile, TypeDirectory, TypeChar, TypeBlock, TypeFifo:
		return true
	}
	return false
}

// Entry is one table line.
type Entry struct {
	Line  int
	Path  string
	Type  Type
	Mode  uint32
	UID   uint32
	GID   uint32
	Major uint32
	Minor uint32
	Start uint32
	Inc   uint32
	Count uint32
}

// Node is a single filesystem entity produced by expanding an Entry.
type Node struct {
	Path  string
	Type  Type
	Mode  uint32
	UID   uint32
	GID   uint32
	Major uint32
	Minor uint32
}

func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		e, err := parseLine(text)
		if err != nil {
			return nil, errx.With(ErrParse, ": line %d: %w", line, err)
		}
		e.Line = line
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, errx.Wrap(ErrRead, err)
	}
	return entries, nil
}

func parseLine(text string) (Entry, error) {
	fields := strings.Fields(text)
	if len(fields) != 10 {
		return Entry{}, errx.With(ErrFieldCount, ": got %d, want 10", len(fields))
	}

	p := fields[0]
	if !strings.HasPrefix(p, "/") {
		return Entry{}, errx.With(ErrRelativePath, ": %q", p)
	}
	if len(fields[1]) != 1 || !Type(fields[1][0]).valid() {
		return Entry{}, errx.With(ErrUnknownType, ": %q", fields[1])
	}

	mode, err := strconv.ParseUint(fields[2], 8, 32)
	if err != nil {
		return Entry{}, errx.With(ErrBadNumber, ": mode %q", fields[2])
	}
	nums := make([]uint32, 7)
	for i, f := range fields[3:] {
		if f == "-" {
			continue
		}
		n, err := strconv.ParseUint(f, 0, 32)
		if err != nil {
			return Entry{}, errx.With(ErrBadNumber, ": field %d %q", i+4, f)
		}
		nums[i] = uint32(n)
	}

	return Entry{
		Path:  path.Clean(p),
		Type:  Type(fields[1][0]),
		Mode:  uint32(mode) & 0o7777,
		UID:   nums[0],
		GID:   nums[1],
		Major: nums[2],
		Minor: nums[3],
		Start: nums[4],
		Inc:   nums[5],
		Count: nums[6],
	}, nil
}

// Expand turns ranged device entries (count > 0) into one node per
// device, named path<start+i> with minor minor+i*inc. Other entries map
// to a single node.
func (e Entry) Expand() []Node {
	base := Node{
		Path:  e.Path,
		Type:  e.Type,
		Mode:  e.Mode,
		UID:   e.UID,
		GID:   e.GID,
		Major: e.Major,
		Minor: e.Minor,
	}
	if e.Count == 0 || (e.Type != TypeChar && e.Type != TypeBlock) {
		return []Node{base}
	}
	nodes := make([]Node, 0, e.Count)
	for i := uint32(0); i < e.Count; i++ {
		n := base
		n.Path = e.Path + strconv.FormatUint(uint64(e.Start+i), 10)
		n.Minor = e.Minor + i*e.Inc
		nodes = append(nodes, n)
	}
	return nodes
}
