package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// runCmd executes rootCmd with args, capturing combined stdout into the
// returned buffer.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestScanTagSearchViaCLI(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.txt"), []byte("quarterly numbers"), 0o644))

	dbPath := filepath.Join(t.TempDir(), "idx.db")
	t.Setenv("INDEXD_DB_PATH", dbPath)

	out, err := runCmd(t, "scan", dir)
	require.NoError(t, err)
	require.Contains(t, out, "indexed 1 file(s)")

	out, err = runCmd(t, "tag", filepath.Join(dir, "*.txt"), "reports/quarterly")
	require.NoError(t, err)
	require.Contains(t, out, "tagged 1 file(s)")

	out, err = runCmd(t, "search", "tag:reports/quarterly")
	require.NoError(t, err)
	require.Contains(t, out, "report.txt")
}

func TestViewSaveListExecViaCLI(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("buy milk"), 0o644))

	dbPath := filepath.Join(t.TempDir(), "idx.db")
	t.Setenv("INDEXD_DB_PATH", dbPath)

	_, err := runCmd(t, "scan", dir)
	require.NoError(t, err)

	_, err = runCmd(t, "view", "save", "milk", "milk")
	require.NoError(t, err)

	out, err := runCmd(t, "view", "list")
	require.NoError(t, err)
	require.Contains(t, out, "milk")

	out, err = runCmd(t, "view", "exec", "milk")
	require.NoError(t, err)
	require.Contains(t, out, "notes.md")
}

func TestBackupCreateListPruneRestoreViaCLI(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "idx.db")
	t.Setenv("INDEXD_DB_PATH", dbPath)

	_, err := runCmd(t, "scan", t.TempDir())
	require.NoError(t, err)

	out, err := runCmd(t, "backup", "create")
	require.NoError(t, err)
	require.Contains(t, out, "created backup_")

	out, err = runCmd(t, "backup", "list")
	require.NoError(t, err)
	require.Contains(t, out, "backup_")

	out, err = runCmd(t, "backup", "prune", "--keep", "0")
	require.NoError(t, err)
	require.Contains(t, out, "kept 0")
}
