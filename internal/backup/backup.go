// Package backup implements online hot-backup of the index store using
// SQLite's native page-stepping backup API, plus retention pruning,
// integrity verification and restore.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	natomic "github.com/natefinch/atomic"

	"github.com/marlinhq/indexd/internal/ferr"
)

// stepPages bounds how many pages copy per Backup.Step call, so a large
// database yields between steps instead of holding the source's read lock
// for the whole copy in one call.
const stepPages = 100

// Info describes one backup file on disk. ID (the filename) is the
// durable identity list/prune/restore address a backup by; CorrelationID
// is an ephemeral uuid minted only at creation time, for correlating a
// single CreateBackup call's own log lines and status output -- it is
// not persisted and is empty for backups discovered via ListBackups.
type Info struct {
	ID            string
	CorrelationID string
	Timestamp     time.Time
	SizeBytes     int64
}

// PruneResult reports what a retention pass kept versus removed.
type PruneResult struct {
	Kept    []Info
	Removed []Info
}

// Manager creates, lists, prunes, verifies and restores backups of a
// single live database file into a dedicated backups directory.
type Manager struct {
	liveDBPath string
	backupsDir string
}

// New returns a Manager for liveDBPath, creating backupsDir if it does not
// already exist.
func New(liveDBPath, backupsDir string) (*Manager, error) {
	if err := os.MkdirAll(backupsDir, 0o755); err != nil {
		return nil, ferr.Wrap(ferr.Io, err, "create backup directory %s", backupsDir)
	}
	return &Manager{liveDBPath: liveDBPath, backupsDir: backupsDir}, nil
}

// CreateBackup copies the live database into a new timestamped file using
// SQLite's online backup API, so a writer can keep using the live database
// throughout the copy.
func (m *Manager) CreateBackup() (Info, error) {
	now := time.Now()
	name := fmt.Sprintf("backup_%s_%06d.db", now.Format("2006-01-02_15-04-05"), now.Nanosecond()/1000)
	dst := filepath.Join(m.backupsDir, name)

	if err := stepBackup(m.liveDBPath, dst); err != nil {
		return Info{}, err
	}

	st, err := os.Stat(dst)
	if err != nil {
		return Info{}, ferr.Wrap(ferr.Io, err, "stat new backup %s", dst)
	}
	return Info{ID: name, CorrelationID: uuid.New().String(), Timestamp: now, SizeBytes: st.Size()}, nil
}

// stepBackup performs the page-stepping copy from src to dst via
// mattn/go-sqlite3's native Backup API, which both sqlite3 connections
// must be opened through (not database/sql's generic driver interface).
func stepBackup(src, dst string) error {
	srcDB, err := sql.Open("sqlite3", "file:"+src+"?mode=ro")
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "open source %s for backup", src)
	}
	defer srcDB.Close()

	dstDB, err := sql.Open("sqlite3", dst)
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "open destination %s for backup", dst)
	}
	defer dstDB.Close()

	ctx := context.Background()
	srcConn, err := srcDB.Conn(ctx)
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "acquire source connection for backup")
	}
	defer srcConn.Close()

	dstConn, err := dstDB.Conn(ctx)
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "acquire destination connection for backup")
	}
	defer dstConn.Close()

	var backupErr error
	err = dstConn.Raw(func(dstDriver any) error {
		return srcConn.Raw(func(srcDriver any) error {
			dc := dstDriver.(*sqlite3.SQLiteConn)
			sc := srcDriver.(*sqlite3.SQLiteConn)

			bk, err := dc.Backup("main", sc, "main")
			if err != nil {
				backupErr = ferr.Wrap(ferr.Database, err, "init backup %s -> %s", src, dst)
				return nil
			}
			for {
				done, stepErr := bk.Step(stepPages)
				if stepErr != nil {
					bk.Finish()
					backupErr = ferr.Wrap(ferr.Database, stepErr, "step backup %s -> %s", src, dst)
					return nil
				}
				if done {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
			if err := bk.Finish(); err != nil {
				backupErr = ferr.Wrap(ferr.Database, err, "finish backup %s -> %s", src, dst)
			}
			return nil
		})
	})
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "run backup %s -> %s", src, dst)
	}
	return backupErr
}

// backupNamePattern parses the backup_%Y-%m-%d_%H-%M-%S(_%f)? filename
// form CreateBackup writes, capturing the optional microseconds group.
var backupNamePattern = regexp.MustCompile(
	`^backup_(\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2})(?:_(\d{6}))?\.db$`)

// parseBackupTimestamp extracts the timestamp encoded in a backup filename,
// per spec §4.E; ok is false if name doesn't match the expected form, in
// which case the caller should fall back to the file's mtime.
func parseBackupTimestamp(name string) (t time.Time, ok bool) {
	m := backupNamePattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation("2006-01-02_15-04-05", m[1], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	if m[2] != "" {
		micros, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		ts = ts.Add(time.Duration(micros) * time.Microsecond)
	}
	return ts, true
}

// ListBackups returns every backup file in the manager's directory,
// newest first. Backups are accumulated into an emirpasic/gods treemap
// keyed by negated timestamp (so ascending iteration is newest-first)
// rather than sorted ad hoc, grounded on go-git-go-git's own use of gods'
// ordered maps to keep commit-graph traversal order deterministic; a
// slice bucket per key absorbs the vanishingly rare case of two backups
// sharing a timestamp down to the microsecond.
func (m *Manager) ListBackups() ([]Info, error) {
	entries, err := os.ReadDir(m.backupsDir)
	if err != nil {
		return nil, ferr.Wrap(ferr.Io, err, "read backup directory %s", m.backupsDir)
	}

	byTimestamp := treemap.NewWith(utils.Int64Comparator)
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "backup_") || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, ferr.Wrap(ferr.Io, err, "stat backup %s", e.Name())
		}

		ts, ok := parseBackupTimestamp(e.Name())
		if !ok {
			ts = info.ModTime()
		}

		key := -ts.UnixNano()
		bucket := []Info{{ID: e.Name(), Timestamp: ts, SizeBytes: info.Size()}}
		if existing, found := byTimestamp.Get(key); found {
			bucket = append(existing.([]Info), bucket...)
		}
		byTimestamp.Put(key, bucket)
	}

	var out []Info
	it := byTimestamp.Iterator()
	for it.Next() {
		out = append(out, it.Value().([]Info)...)
	}
	return out, nil
}

// Prune keeps the keepCount newest backups and removes the rest.
func (m *Manager) Prune(keepCount int) (PruneResult, error) {
	all, err := m.ListBackups()
	if err != nil {
		return PruneResult{}, err
	}

	var res PruneResult
	for i, b := range all {
		if i < keepCount {
			res.Kept = append(res.Kept, b)
			continue
		}
		if err := os.Remove(filepath.Join(m.backupsDir, b.ID)); err != nil {
			return PruneResult{}, ferr.Wrap(ferr.Io, err, "remove backup %s", b.ID)
		}
		res.Removed = append(res.Removed, b)
	}
	return res, nil
}

// VerifyBackup opens the backup read-only and runs SQLite's integrity
// check against it.
func (m *Manager) VerifyBackup(id string) error {
	path := filepath.Join(m.backupsDir, id)
	if _, err := os.Stat(path); err != nil {
		return ferr.Wrap(ferr.NotFound, err, "backup %s not found", id)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "open backup %s for verification", id)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return ferr.Wrap(ferr.Database, err, "run integrity check on %s", id)
	}
	if result != "ok" {
		return ferr.New(ferr.Database, "backup %s failed integrity check: %s", id, result)
	}
	return nil
}

// RestoreFromBackup overwrites the live database file with the named
// backup's contents.
func (m *Manager) RestoreFromBackup(id string) error {
	src := filepath.Join(m.backupsDir, id)
	if _, err := os.Stat(src); err != nil {
		return ferr.New(ferr.NotFound, "backup file not found: %s", src)
	}

	f, err := os.Open(src)
	if err != nil {
		return ferr.Wrap(ferr.Io, err, "open backup %s", id)
	}
	defer f.Close()

	// Atomic write-then-rename so a crash mid-restore can never leave the
	// live database truncated or half-written.
	if err := natomic.WriteFile(m.liveDBPath, f); err != nil {
		return ferr.Wrap(ferr.Io, err, "write restored database to %s", m.liveDBPath)
	}
	return nil
}
