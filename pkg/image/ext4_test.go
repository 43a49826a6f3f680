package image

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polesapart/populatefs/pkg/idmap"
	"github.com/polesapart/populatefs/pkg/linkreg"
)

func hasE2fsprogs() bool {
	for _, bin := range []string{"debugfs", "mkfs.ext4"} {
		if _, err := exec.LookPath(bin); err != nil {
			return false
		}
	}
	return true
}

func createTestExt4(t *testing.T, sizeMB int) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "test.ext4")
	f, err := os.Create(p)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(int64(sizeMB)*1024*1024))
	require.NoError(t, f.Close())

	out, err := exec.Command("mkfs.ext4", "-F", "-q", p).CombinedOutput()
	require.NoError(t, err, "mkfs.ext4: %s", out)
	return p
}

func debugfsRequest(t *testing.T, imagePath, request string) string {
	t.Helper()
	out, err := exec.Command("debugfs", "-R", request, imagePath).Output()
	require.NoError(t, err, "debugfs %s", request)
	return string(out)
}

var inodeRe = regexp.MustCompile(`Inode: (\d+)`)

func TestPopulateExt4(t *testing.T) {
	if !hasE2fsprogs() {
		t.Skip("debugfs or mkfs.ext4 not available")
	}

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "etc", "hosts"), "127.0.0.1 localhost\n", 0o640)
	writeFile(t, filepath.Join(src, "bin", "a"), "#!/bin/true\n", 0o755)
	require.NoError(t, os.Link(filepath.Join(src, "bin", "a"), filepath.Join(src, "bin", "b")))
	require.NoError(t, os.Symlink("etc/hosts", filepath.Join(src, "hosts")))

	p := createTestExt4(t, 16)
	img := New()
	require.NoError(t, img.Open(context.Background(), p, "", 0, 0))
	assert.True(t, img.IsReadWrite())
	img.SetPathLen(len(src))
	require.NoError(t, img.AddPath(src, linkreg.New(), idmap.Policy{SquashUIDs: true}))
	require.NoError(t, img.Close(context.Background()))

	assert.Equal(t, "127.0.0.1 localhost\n", debugfsRequest(t, p, "cat /etc/hosts"))
	assert.Contains(t, debugfsRequest(t, p, "stat /etc/hosts"), "0640")

	statA := debugfsRequest(t, p, "stat /bin/a")
	statB := debugfsRequest(t, p, "stat /bin/b")
	assert.Contains(t, statA, "Links: 2")
	require.Len(t, inodeRe.FindStringSubmatch(statA), 2)
	assert.Equal(t, inodeRe.FindStringSubmatch(statA)[1], inodeRe.FindStringSubmatch(statB)[1],
		"hardlinked names share one inode")

	assert.Contains(t, debugfsRequest(t, p, "stat /hosts"), "etc/hosts")
}

func TestPopulateExt4_NamesWithSpacesAndQuotes(t *testing.T) {
	if !hasE2fsprogs() {
		t.Skip("debugfs or mkfs.ext4 not available")
	}

	src := filepath.Join(t.TempDir(), "My Rootfs")
	writeFile(t, filepath.Join(src, "etc", "hosts"), "127.0.0.1 localhost\n", 0o644)
	writeFile(t, filepath.Join(src, "bin", "my tool"), "#!/bin/true\n", 0o755)
	writeFile(t, filepath.Join(src, `say "hi"`), "hi\n", 0o644)
	require.NoError(t, os.Symlink("../bin/my tool", filepath.Join(src, "etc", "tool link")))

	p := createTestExt4(t, 16)
	img := New()
	require.NoError(t, img.Open(context.Background(), p, "", 0, 0))
	img.SetPathLen(len(src))
	require.NoError(t, img.AddPath(src, linkreg.New(), idmap.Policy{SquashUIDs: true}))
	require.NoError(t, img.Close(context.Background()))
	assert.Equal(t, 3, img.Stats().Files)

	assert.Equal(t, "127.0.0.1 localhost\n", debugfsRequest(t, p, "cat /etc/hosts"))
	assert.Equal(t, "#!/bin/true\n", debugfsRequest(t, p, `cat "/bin/my tool"`))
	assert.Equal(t, "hi\n", debugfsRequest(t, p, `cat "/say ""hi"""`))
	assert.Contains(t, debugfsRequest(t, p, `stat "/etc/tool link"`), "../bin/my tool")
}

func TestPopulateExt4_AbortLeavesImageUntouched(t *testing.T) {
	if !hasE2fsprogs() {
		t.Skip("debugfs or mkfs.ext4 not available")
	}

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "f"), "data", 0o644)

	p := createTestExt4(t, 16)
	before, err := os.ReadFile(p)
	require.NoError(t, err)

	img := New()
	require.NoError(t, img.Open(context.Background(), p, "", 0, 0))
	img.SetPathLen(len(src))
	require.NoError(t, img.AddPath(src, linkreg.New(), idmap.Policy{}))
	img.Abort()

	after, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.True(t, string(before) == string(after), "aborted run must not write the image")
}

func TestDebugfsVersion(t *testing.T) {
	if !hasE2fsprogs() {
		t.Skip("debugfs not available")
	}
	v, err := DebugfsVersion(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, v, "debugfs")
}
