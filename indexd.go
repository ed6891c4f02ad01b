// Package indexd is the library façade consumed by the host CLI (spec
// §6): open a workspace, then call scan/tag/search/watch against it. It
// mirrors the original Marlin struct's shape -- most methods wrap what a
// CLI would otherwise do directly against the lower-level packages.
package indexd

import (
	"database/sql"
	"io/fs"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/marlinhq/indexd/internal/config"
	"github.com/marlinhq/indexd/internal/ferr"
	"github.com/marlinhq/indexd/internal/pathutil"
	"github.com/marlinhq/indexd/internal/scanner"
	"github.com/marlinhq/indexd/internal/store"
	"github.com/marlinhq/indexd/internal/watcher"
)

// Indexd is the primary façade: open a workspace, then call its methods.
type Indexd struct {
	cfg   *config.Config
	store *store.Store
}

// OpenDefault loads configuration from the environment / per-workdir hash
// and opens (or creates) the store it resolves to.
func OpenDefault() (*Indexd, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return openWith(cfg)
}

// OpenAt opens an explicit store path, bypassing environment resolution --
// handy for tests or headless tools.
func OpenAt(path string) (*Indexd, error) {
	return openWith(config.OpenAt(path))
}

func openWith(cfg *config.Config) (*Indexd, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return &Indexd{cfg: cfg, store: st}, nil
}

// Scan recursively indexes each of paths, returning the total number of
// files indexed across all of them.
func (m *Indexd) Scan(paths []string) (int, error) {
	var total int
	for _, p := range paths {
		pcfg, err := config.LoadProjectConfig(p)
		if err != nil {
			return total, err
		}
		sc, err := scanner.New(p, pcfg.Scanner.IgnoreGlobs)
		if err != nil {
			return total, err
		}
		n, err := sc.Scan(m.store)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Tag attaches the hierarchical tag tagPath (e.g. "foo/bar") to every
// already-indexed file under pattern's inferred root whose path matches
// pattern, returning the number of files that were newly tagged.
func (m *Indexd) Tag(pattern, tagPath string) (int, error) {
	if !doublestar.ValidatePattern(pattern) {
		return 0, ferr.New(ferr.Config, "invalid tag pattern %q", pattern)
	}
	root := determineScanRoot(pattern)

	var changed int
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // per spec §7, per-file errors during tag surface as warnings, not an aborted walk
		}
		if d.IsDir() {
			return nil
		}
		matched, err := doublestar.Match(pattern, pathutil.ToDBPath(path))
		if err != nil || !matched {
			return nil
		}

		// The scanner stores absolute, symlink-resolved paths
		// (pathutil.CanonicalPath), but the walk above runs against
		// pattern's literal root, which may be relative -- canonicalize
		// each matched path before the lookup so Tag's keys agree with
		// Scan's, rather than silently matching nothing for a relative
		// pattern.
		canonical, err := pathutil.CanonicalPath(path)
		if err != nil {
			return nil
		}
		fileID, err := m.store.FileID(canonical)
		if err != nil {
			return nil // not indexed yet -- ignored, matching the original's "ignore non-indexed files"
		}
		before, err := m.store.ListFileTags(fileID)
		if err != nil {
			return nil
		}
		if err := m.store.TagFile(fileID, tagPath); err != nil {
			return nil
		}
		after, err := m.store.ListFileTags(fileID)
		if err == nil && len(after) > len(before) {
			changed++
		}
		return nil
	})
	if walkErr != nil {
		return changed, ferr.Wrap(ferr.Io, walkErr, "walk tag root %s", root)
	}
	return changed, nil
}

// Search runs a full-text query (falling back to a substring scan, see
// internal/store/search.go) and returns the matching paths.
func (m *Indexd) Search(query string) ([]string, error) {
	return m.store.Search(query)
}

// Handle is the live control surface for a watcher started via Watch.
type Handle struct {
	fw *watcher.FileWatcher
}

func (h *Handle) Start() error           { return h.fw.Start() }
func (h *Handle) Pause() error           { return h.fw.Pause() }
func (h *Handle) Resume() error          { return h.fw.Resume() }
func (h *Handle) Stop() error            { return h.fw.Stop() }
func (h *Handle) Status() watcher.Status { return h.fw.Status() }

// Watch starts a watcher rooted at path, attached to this Indexd's store,
// returning a Handle to control its lifecycle. cfg may be nil to use
// watcher.DefaultConfig().
func (m *Indexd) Watch(path string, cfg *watcher.Config) (*Handle, error) {
	resolved := watcher.DefaultConfig()
	if cfg != nil {
		resolved = *cfg
	}
	fw, err := watcher.New(path, resolved)
	if err != nil {
		return nil, err
	}
	fw.AttachStore(m.store)
	return &Handle{fw: fw}, nil
}

// Conn exposes the underlying database connection for callers that need
// direct access (e.g. the host CLI's view/collection commands).
func (m *Indexd) Conn() *sql.DB { return m.store.Conn() }

// SaveView upserts a named saved search for later reuse via ViewQuery.
func (m *Indexd) SaveView(name, query string) error { return m.store.SaveView(name, query) }

// ListViews returns every saved view, alphabetically by name.
func (m *Indexd) ListViews() ([]store.View, error) { return m.store.ListViews() }

// ViewQuery returns the query string saved under name.
func (m *Indexd) ViewQuery(name string) (string, error) { return m.store.ViewQuery(name) }

// Close releases the underlying store.
func (m *Indexd) Close() error { return m.store.Close() }

// determineScanRoot mirrors the original design's glob-root inference: the
// deepest path prefix of pattern that contains no glob metacharacter, used
// to bound a recursive walk instead of scanning the whole filesystem for a
// pattern like "src/**/*.go".
func determineScanRoot(pattern string) string {
	firstWild := len(pattern)
	for i, r := range pattern {
		if r == '*' || r == '?' || r == '[' {
			firstWild = i
			break
		}
	}
	prefix := pattern[:firstWild]
	if firstWild == len(pattern) {
		dir := filepath.Dir(prefix)
		if dir == "" {
			return "."
		}
		return dir
	}

	root := prefix
	for containsMeta(root) {
		parent := filepath.Dir(root)
		if parent == root {
			break
		}
		root = parent
	}
	if root == "" {
		return "."
	}
	return root
}

func containsMeta(s string) bool {
	for _, r := range s {
		if r == '*' || r == '?' || r == '[' {
			return true
		}
	}
	return false
}
