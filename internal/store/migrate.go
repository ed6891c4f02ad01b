package store

import (
	"database/sql"
	"embed"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/marlinhq/indexd/internal/ferr"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version int64
	name    string
	sql     string
}

func loadMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "read embedded migrations")
	}

	out := make([]migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			return nil, ferr.New(ferr.Database, "migration %q missing version prefix", e.Name())
		}
		version, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil {
			return nil, ferr.Wrap(ferr.Database, err, "parse version of migration %q", e.Name())
		}
		body, err := migrationsFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return nil, ferr.Wrap(ferr.Database, err, "read migration %q", e.Name())
		}
		out = append(out, migration{version: version, name: e.Name(), sql: string(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// migrate applies every embedded migration not already recorded in
// schema_version, inside a single immediate-mode transaction so a daemon
// and a CLI invocation racing to open the same fresh database can't both
// try to create the schema. Unlike a warn-and-continue runner, a migration
// that the post-check still finds missing is treated as a hard failure:
// an index that silently runs against an incomplete schema is worse than
// one that refuses to open.
func migrate(db *sql.DB) error {
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version    INTEGER PRIMARY KEY,
		applied_on TEXT NOT NULL
	)`); err != nil {
		return ferr.Wrap(ferr.Database, err, "create schema_version bookkeeping table")
	}

	tx, err := db.Begin()
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "begin migration transaction")
	}
	defer tx.Rollback()

	applied := map[int64]bool{}
	rows, err := tx.Query("SELECT version FROM schema_version")
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "read applied migrations")
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return ferr.Wrap(ferr.Database, err, "scan applied migration version")
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if _, err := tx.Exec(m.sql); err != nil {
			return ferr.Wrap(ferr.Database, err, "apply migration %s", m.name)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_version (version, applied_on) VALUES (?, ?)",
			m.version, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return ferr.Wrap(ferr.Database, err, "record migration %s", m.name)
		}
	}

	if err := tx.Commit(); err != nil {
		return ferr.Wrap(ferr.Database, err, "commit migrations")
	}

	var missing []string
	for _, m := range migrations {
		var ok int
		if err := db.QueryRow("SELECT 1 FROM schema_version WHERE version = ?", m.version).Scan(&ok); err != nil {
			missing = append(missing, m.name)
		}
	}
	if len(missing) > 0 {
		return ferr.New(ferr.Database, "migrations did not apply: %s", strings.Join(missing, ", "))
	}

	// Embedded ⊆ recorded is now guaranteed by the missing-check above, but
	// that alone doesn't catch the reverse: a database that also carries
	// migrations this binary doesn't know about (a newer build touched it
	// first). Fail closed rather than run an older binary against a newer
	// schema it was never tested against.
	recorded, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	compiled, err := CompiledVersion()
	if err != nil {
		return err
	}
	if recorded != compiled {
		return ferr.New(ferr.Database,
			"refusing to open: recorded schema version %d does not match this binary's compiled version %d",
			recorded, compiled)
	}

	return nil
}

// SchemaVersion reports the highest applied migration version, or 0 for a
// store that has never been migrated.
func SchemaVersion(db *sql.DB) (int64, error) {
	var v sql.NullInt64
	err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&v)
	if err != nil {
		return 0, ferr.Wrap(ferr.Database, err, "read schema version")
	}
	if !v.Valid {
		return 0, nil
	}
	return v.Int64, nil
}

// CompiledVersion reports the highest migration version embedded in this
// binary -- the version store.Open requires a database's recorded schema
// version to match exactly, per spec §3's "highest applied version must
// equal the library's compiled-in version at open time, else open fails."
func CompiledVersion() (int64, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return 0, err
	}
	var max int64
	for _, m := range migrations {
		if m.version > max {
			max = m.version
		}
	}
	return max, nil
}
