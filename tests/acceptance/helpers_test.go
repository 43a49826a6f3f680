//go:build acceptance

package acceptance

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func populatefsBin(t *testing.T) string {
	t.Helper()
	if bin := os.Getenv("POPULATEFS_BIN"); bin != "" {
		return bin
	}
	return "populatefs"
}

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	bin := populatefsBin(t)
	cmd := exec.Command(bin, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			require.NoError(t, err, "failed to run %s %v", bin, args)
		}
	}
	return stdout.String(), stderr.String(), exitCode
}

func requireE2fsprogs(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"debugfs", "mkfs.ext4"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available", bin)
		}
	}
}

func createExt4(t *testing.T, sizeMB int) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "disk.img")
	f, err := os.Create(p)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(int64(sizeMB)*1024*1024))
	require.NoError(t, f.Close())

	out, err := exec.Command("mkfs.ext4", "-F", "-q", p).CombinedOutput()
	require.NoError(t, err, "mkfs.ext4: %s", out)
	return p
}

func debugfs(t *testing.T, imagePath, request string) string {
	t.Helper()
	out, err := exec.Command("debugfs", "-R", request, imagePath).Output()
	require.NoError(t, err, "debugfs %s", request)
	return string(out)
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}
