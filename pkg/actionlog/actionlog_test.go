package actionlog

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceRecorder struct {
	actions []Action
}

func (s *sliceRecorder) Record(a Action) { s.actions = append(s.actions, a) }

func TestMulti(t *testing.T) {
	a, b := &sliceRecorder{}, &sliceRecorder{}
	Multi{a, Nop, b}.Record(Action{Kind: KindChdir, Path: "/"})

	require.Len(t, a.actions, 1)
	require.Len(t, b.actions, 1)
	assert.Equal(t, KindChdir, b.actions[0].Kind)
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	r := NewLogRecorder(logrus.NewEntry(l))
	r.Record(Action{Kind: KindChown, Path: "/", UID: 1000, GID: 100})
	r.Record(Action{Kind: KindLink, Path: "/b", Source: "/a"})

	out := buf.String()
	assert.Contains(t, out, "chown")
	assert.Contains(t, out, "uid=1000")
	assert.Contains(t, out, "gid=100")
	assert.Contains(t, out, "source=/a")
}

func TestJournal_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := OpenJournal(path)
	require.NoError(t, err)

	want := []Action{
		{Kind: KindChdir, Path: "/"},
		{Kind: KindWrite, Path: "/etc/hosts", Source: "/src/etc/hosts"},
		{Kind: KindLink, Path: "/etc/hosts.bak", Source: "/etc/hosts"},
		{Kind: KindChown, Path: "/etc/hosts", UID: 0, GID: 0},
		{Kind: KindChmod, Path: "/etc/hosts", Mode: 0o100644},
	}
	for _, a := range want {
		j.Record(a)
	}

	got, err := j.Actions(j.RunID())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	require.NoError(t, j.Close())
}

func TestJournal_SeparatesRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	first, err := OpenJournal(path)
	require.NoError(t, err)
	first.Record(Action{Kind: KindMkdir, Path: "/a", Mode: 0o40755})
	firstID := first.RunID()
	require.NoError(t, first.Close())

	second, err := OpenJournal(path)
	require.NoError(t, err)
	defer second.Close()
	assert.NotEqual(t, firstID, second.RunID())

	second.Record(Action{Kind: KindMkdir, Path: "/b", Mode: 0o40755})

	got, err := second.Actions(firstID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/a", got[0].Path)

	got, err = second.Actions(second.RunID())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/b", got[0].Path)
}
