// Package scanner performs the one-shot recursive directory walk that
// seeds (or refreshes) the index: every regular file under a root is
// upserted into the store in batched transactions, skipping the store's
// own files and anything matched by an ignore glob.
package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/gobwas/glob"

	"github.com/marlinhq/indexd/internal/ferr"
	"github.com/marlinhq/indexd/internal/pathutil"
	"github.com/marlinhq/indexd/internal/store"
)

// batchSize bounds how many upserts accumulate before a scan yields
// control back to the store's single connection, so a very large tree
// doesn't hold one transaction open indefinitely.
const batchSize = 500

// Scanner walks a root directory and reconciles it against a Store.
type Scanner struct {
	root    string
	ignores []glob.Glob
	fs      billy.Filesystem
}

// New builds a Scanner rooted at root, compiling ignorePatterns ('/'
// separated globs, matched against paths relative to root) in addition to
// the fixed .db/-wal/-shm skip applied unconditionally.
func New(root string, ignorePatterns []string) (*Scanner, error) {
	root, err := pathutil.CanonicalPath(root)
	if err != nil {
		return nil, ferr.Wrap(ferr.Io, err, "resolve scan root %s", root)
	}

	compiled := make([]glob.Glob, 0, len(ignorePatterns))
	for _, pattern := range ignorePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, ferr.Wrap(ferr.Config, err, "compile ignore pattern %q", pattern)
		}
		compiled = append(compiled, g)
	}

	return &Scanner{root: root, ignores: compiled, fs: osfs.New(root)}, nil
}

// Scan walks the tree and upserts every matching file into st, returning
// the count of files indexed.
func (sc *Scanner) Scan(st *store.Store) (int, error) {
	var (
		count int
		batch []fileMeta
	)

	flushIfFull := func() error {
		if len(batch) < batchSize {
			return nil
		}
		if err := flush(st, batch); err != nil {
			return err
		}
		count += len(batch)
		batch = batch[:0]
		return nil
	}

	if err := sc.walk("/", &batch, flushIfFull); err != nil {
		return count, ferr.Wrap(ferr.Io, err, "walk %s", sc.root)
	}

	if len(batch) > 0 {
		if err := flush(st, batch); err != nil {
			return count, err
		}
		count += len(batch)
	}

	return count, nil
}

// walk recursively visits dir (a billy-relative path, "/" at the root),
// appending every non-ignored regular file to batch and invoking
// flushIfFull after each append.
func (sc *Scanner) walk(dir string, batch *[]fileMeta, flushIfFull func() error) error {
	entries, err := sc.fs.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		childRel := sc.fs.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := sc.walk(childRel, batch, flushIfFull); err != nil {
				return err
			}
			continue
		}
		if sc.shouldSkip(childRel) {
			continue
		}

		hash, err := sc.hashFile(childRel)
		if err != nil {
			return err
		}

		*batch = append(*batch, fileMeta{
			path:  pathutil.ToDBPath(filepath.Join(sc.root, childRel)),
			size:  entry.Size(),
			mtime: entry.ModTime().Unix(),
			hash:  hash,
		})
		if err := flushIfFull(); err != nil {
			return err
		}
	}
	return nil
}

type fileMeta struct {
	path  string
	size  int64
	mtime int64
	hash  string
}

// hashFile returns the hex-encoded sha256 digest of childRel's contents --
// a cheap content fingerprint for change detection, not a security hash,
// matching the original's intent without adding a non-stdlib hash
// dependency no pack example pulls in either.
func (sc *Scanner) hashFile(childRel string) (string, error) {
	f, err := sc.fs.Open(childRel)
	if err != nil {
		return "", ferr.Wrap(ferr.Io, err, "open %s for hashing", childRel)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", ferr.Wrap(ferr.Io, err, "hash %s", childRel)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// flush upserts one batch inside a single transaction so many files
// commit together rather than one fsync per file.
func flush(st *store.Store, batch []fileMeta) error {
	tx, err := st.Conn().Begin()
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "begin scan batch")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO files(path, size, mtime, hash)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET size = excluded.size, mtime = excluded.mtime, hash = excluded.hash`)
	if err != nil {
		return ferr.Wrap(ferr.Database, err, "prepare scan upsert")
	}
	defer stmt.Close()

	for _, f := range batch {
		if _, err := stmt.Exec(f.path, f.size, f.mtime, f.hash); err != nil {
			return ferr.Wrap(ferr.Database, err, "upsert %s during scan", f.path)
		}
	}

	if err := tx.Commit(); err != nil {
		return ferr.Wrap(ferr.Database, err, "commit scan batch")
	}
	return nil
}

func (sc *Scanner) shouldSkip(relPath string) bool {
	base := filepath.Base(relPath)
	if hasStoreSuffix(base) {
		return true
	}
	rel := strings.TrimPrefix(filepath.ToSlash(relPath), "/")
	for _, g := range sc.ignores {
		if g.Match(rel) || g.Match(rel+"/**") {
			return true
		}
	}
	return false
}

func hasStoreSuffix(name string) bool {
	for _, suffix := range []string{".db", "-wal", "-shm"} {
		if len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix {
			return true
		}
	}
	return false
}

