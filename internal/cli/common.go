package cli

import (
	"path/filepath"

	"github.com/marlinhq/indexd"
	"github.com/marlinhq/indexd/internal/backup"
	"github.com/marlinhq/indexd/internal/config"
)

// openIndexd resolves the store path the same way indexd.OpenDefault does,
// respecting INDEXD_DB_PATH so the CLI and any embedding program agree on
// which store a given working directory maps to.
func openIndexd() (*indexd.Indexd, error) {
	return indexd.OpenDefault()
}

// resolveDBPath returns the store path a fresh config.Load() would resolve
// to, without opening it -- used by commands (watch, backup) that need the
// path itself rather than an open store.
func resolveDBPath() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.DBPath, nil
}

// backupsDirFor returns the sibling "backups" directory used for a given
// store path, matching the layout config.Load() creates the store under.
func backupsDirFor(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), "backups")
}

func backupManagerFor(dbPath string) (*backup.Manager, error) {
	return backup.New(dbPath, backupsDirFor(dbPath))
}
