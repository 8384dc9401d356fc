package cmd

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/companion-launcher/internal/service/replacer"
)

// These tests change the global log level, so they do not run in parallel.

func TestRun_UsageErrors(t *testing.T) {
	require.Equal(t, replacer.ExitUsage, Run(nil))
	require.Equal(t, replacer.ExitUsage, Run([]string{"only-target"}))
	require.Equal(t, replacer.ExitUsage, Run([]string{"a", "b", "c"}))
	require.Equal(t, replacer.ExitUsage, Run([]string{"--no-such-flag", "a", "b"}))
	require.Equal(t, replacer.ExitUsage, Run([]string{"--log-level", "loud", "a", "b"}))
	require.Equal(t, replacer.ExitUsage, Run([]string{"--no-relaunch", "--poll-interval", "0", "a", "b"}))
	require.Equal(t, replacer.ExitUsage, Run([]string{"--no-relaunch", "--poll-interval", "-1s", "a", "b"}))
	require.Equal(t, replacer.ExitUsage, Run([]string{"--no-relaunch", "--lock-timeout", "-1s", "a", "b"}))
}

func TestRun_StagedMissing(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "Foo")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o755))

	code := Run([]string{"--no-relaunch", target, filepath.Join(dir, "Foo.staged")})
	require.Equal(t, replacer.ExitStagedMissing, code)

	contents, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "old", string(contents))
}

func TestRun_Success(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "Foo")
	staged := target + ".staged"

	require.NoError(t, os.WriteFile(target, []byte("old"), 0o755))
	require.NoError(t, os.WriteFile(staged, []byte("new"), 0o755))

	code := Run([]string{"--no-relaunch", "--poll-interval", "10ms", "--lock-timeout", "1s", "--log-level", "debug", target, staged})
	require.Equal(t, replacer.ExitOK, code)

	contents, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "new", string(contents))
	require.NoFileExists(t, staged)
	require.NoFileExists(t, target+".bak")
}

func TestRun_RelaunchFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("execute permission bits do not exist on Windows")
	}

	dir := t.TempDir()
	target := filepath.Join(dir, "Foo")
	staged := filepath.Join(dir, "Foo.staged")

	// Publishing a directory succeeds but starting it cannot.
	require.NoError(t, os.Mkdir(staged, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staged, "inner"), []byte("x"), 0o644))

	code := Run([]string{"--poll-interval", "10ms", target, staged})
	require.Equal(t, replacer.ExitStagedMissing, code, "a directory is not a staged binary")

	require.NoError(t, os.RemoveAll(staged))
	require.NoError(t, os.WriteFile(staged, []byte("not a program"), 0o644))

	code = Run([]string{"--poll-interval", "10ms", target, staged})
	require.Equal(t, replacer.ExitRelaunchFailed, code)

	contents, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "not a program", string(contents))
}
