package indexd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetermineScanRoot(t *testing.T) {
	require.Equal(t, "src/", determineScanRoot("src/**/*.go"))
	require.Equal(t, ".", determineScanRoot("*.txt"))
	require.Equal(t, "/a/b", determineScanRoot("/a/b/c.txt"))
}

func TestOpenScanTagSearch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "notes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes", "todo.md"), []byte("buy milk"), 0o644))

	idx, err := OpenAt(filepath.Join(t.TempDir(), "idx.db"))
	require.NoError(t, err)
	defer idx.Close()

	n, err := idx.Scan([]string{dir})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	changed, err := idx.Tag(filepath.Join(dir, "notes", "*.md"), "work/notes")
	require.NoError(t, err)
	require.Equal(t, 1, changed)

	paths, err := idx.Search("tag:work/notes")
	require.NoError(t, err)
	require.Len(t, paths, 1)
}

func TestTagWithRelativePatternAfterScanningAbsoluteRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Projects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Projects", "plan.md"), []byte("plan"), 0o644))

	t.Chdir(dir)

	idx, err := OpenAt(filepath.Join(t.TempDir(), "idx.db"))
	require.NoError(t, err)
	defer idx.Close()

	n, err := idx.Scan([]string{"."})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// The pattern is relative (as a user would type it from cwd), but the
	// scanner indexed absolute, canonicalized paths -- Tag must still find
	// the match.
	changed, err := idx.Tag("Projects/**/*.md", "work/notes")
	require.NoError(t, err)
	require.Equal(t, 1, changed)
}

func TestWatchHandleLifecycle(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenAt(filepath.Join(t.TempDir(), "idx.db"))
	require.NoError(t, err)
	defer idx.Close()

	h, err := idx.Watch(dir, nil)
	require.NoError(t, err)
	require.NoError(t, h.Start())
	require.Equal(t, "watching", h.Status().State)
	require.NoError(t, h.Stop())
}
