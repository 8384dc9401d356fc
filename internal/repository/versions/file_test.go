package versions

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFileRepository_MissingFile verifies a missing file reads as empty.
func TestFileRepository_MissingFile(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(context.Background(), filepath.Join(t.TempDir(), "Misc", "versions.json"))

	_, ok := repo.Get("Foo")
	require.False(t, ok)
	require.Empty(t, repo.Versions())
}

// TestFileRepository_SetPersists ensures Set survives a reload from disk.
func TestFileRepository_SetPersists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "Misc", "versions.json")

	repo := NewFileRepository(ctx, path)
	require.NoError(t, repo.Set(ctx, "Foo", "1.0.0"))
	require.NoError(t, repo.Set(ctx, "Foo", "1.1.0"))
	require.NoError(t, repo.Set(ctx, "Bar", "v2.0.0"))

	reopened := NewFileRepository(ctx, path)

	version, ok := reopened.Get("Foo")
	require.True(t, ok)
	require.Equal(t, "1.1.0", version)
	require.Equal(t, map[string]string{"Foo": "1.1.0", "Bar": "v2.0.0"}, reopened.Versions())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}

// TestFileRepository_CorruptFile verifies malformed JSON reads as empty and is
// replaced on the next write.
func TestFileRepository_CorruptFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "versions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	repo := NewFileRepository(ctx, path)
	require.Empty(t, repo.Versions())

	require.NoError(t, repo.Set(ctx, "Foo", "1.0.0"))

	reopened := NewFileRepository(ctx, path)
	version, ok := reopened.Get("Foo")
	require.True(t, ok)
	require.Equal(t, "1.0.0", version)
}

// TestFileRepository_IgnoresForeignValues ensures non-string members are skipped.
func TestFileRepository_IgnoresForeignValues(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "versions.json")
	contents := `{"versions": {"Foo": "1.0.0", "Bar": 7, "Baz": {"x": 1}}, "halted": "nope"}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	repo := NewFileRepository(context.Background(), path)
	require.Equal(t, map[string]string{"Foo": "1.0.0"}, repo.Versions())

	_, halted := repo.Halted("Foo")
	require.False(t, halted)
}

func TestFileRepository_HaltAndClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "versions.json")

	repo := NewFileRepository(ctx, path)
	require.NoError(t, repo.Halt(ctx, "Foo", "target left in corrupt state"))

	reopened := NewFileRepository(ctx, path)
	reason, ok := reopened.Halted("Foo")
	require.True(t, ok)
	require.Equal(t, "target left in corrupt state", reason)

	require.NoError(t, reopened.Clear(ctx, "Foo"))
	require.NoError(t, reopened.Clear(ctx, "Foo"))

	_, ok = NewFileRepository(ctx, path).Halted("Foo")
	require.False(t, ok)
}

// TestFileRepository_FailedWriteKeepsMemory checks best-effort persistence.
func TestFileRepository_FailedWriteKeepsMemory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	// A regular file where the parent directory should be makes every write fail.
	blocker := filepath.Join(dir, "Misc")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	repo := NewFileRepository(ctx, filepath.Join(blocker, "versions.json"))
	require.Error(t, repo.Set(ctx, "Foo", "1.1.0"))

	version, ok := repo.Get("Foo")
	require.True(t, ok)
	require.Equal(t, "1.1.0", version)
}
