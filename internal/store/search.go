package store

import (
	"os"
	"strings"
	"unicode"

	"github.com/anmitsu/go-shlex"

	"github.com/marlinhq/indexd/internal/ferr"
)

// maxNaiveContentScan bounds how large a file naive substring search will
// read into memory, matching the spec's 65,536-byte cutoff.
const maxNaiveContentScan = 65_536

// Search evaluates a query string against the FTS index, falling back to
// a plain substring scan over path and (for small files) content when the
// FTS pass finds nothing and the query contains no field prefix -- a bare
// word is assumed to be a typo or partial match rather than FTS syntax.
func (s *Store) Search(query string) ([]string, error) {
	expr := buildFTSMatch(query)

	rows, err := s.db.Query(`
		SELECT f.path
		FROM files_fts
		JOIN files f ON f.id = files_fts.rowid
		WHERE files_fts MATCH ?
		ORDER BY rank`, expr)
	if err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "search %q", query)
	}
	var hits []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, ferr.Wrap(ferr.Database, err, "scan search hit")
		}
		hits = append(hits, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, ferr.Wrap(ferr.Database, err, "iterate search hits")
	}
	rows.Close()

	if len(hits) == 0 && !strings.Contains(query, ":") {
		return s.naiveSearch(query)
	}
	return hits, nil
}

// naiveSearch scans every indexed path for a case-insensitive substring
// match, and for files under maxNaiveContentScan bytes also checks their
// content. Used only as a fallback, so a full table scan is acceptable.
func (s *Store) naiveSearch(term string) ([]string, error) {
	termLC := strings.ToLower(term)

	rows, err := qb.Select("path").From("files").RunWith(s.db).Query()
	if err != nil {
		return nil, ferr.Wrap(ferr.Database, err, "naive search %q", term)
	}
	defer rows.Close()

	var hits []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, ferr.Wrap(ferr.Database, err, "scan naive search candidate")
		}
		if strings.Contains(strings.ToLower(path), termLC) {
			hits = append(hits, path)
			continue
		}
		if info, err := os.Stat(path); err == nil && info.Size() <= maxNaiveContentScan {
			if content, err := os.ReadFile(path); err == nil {
				if strings.Contains(strings.ToLower(string(content)), termLC) {
					hits = append(hits, path)
				}
			}
		}
	}
	return hits, rows.Err()
}

// buildFTSMatch translates a user-facing query string into an FTS5 MATCH
// expression: tag:a/b/c expands to an AND chain over tags_text, attr:k=v
// expands to an AND of attrs_text terms, AND/OR/NOT pass through as FTS5
// operators, and everything else is escaped and matched against all
// indexed columns.
func buildFTSMatch(raw string) string {
	toks, err := shlex.Split(raw, true)
	if err != nil || len(toks) == 0 {
		toks = []string{raw}
	}

	var parts []string
	for _, tok := range toks {
		switch {
		case tok == "AND" || tok == "OR" || tok == "NOT":
			parts = append(parts, tok)
		case strings.HasPrefix(tok, "tag:"):
			segs := strings.Split(strings.TrimPrefix(tok, "tag:"), "/")
			first := true
			for _, seg := range segs {
				if seg == "" {
					continue
				}
				if !first {
					parts = append(parts, "AND")
				}
				first = false
				parts = append(parts, "tags_text:"+escapeFTSTerm(seg))
			}
		case strings.HasPrefix(tok, "attr:"):
			kv := strings.SplitN(strings.TrimPrefix(tok, "attr:"), "=", 2)
			parts = append(parts, "attrs_text:"+escapeFTSTerm(kv[0]))
			if len(kv) == 2 {
				parts = append(parts, "AND", "attrs_text:"+escapeFTSTerm(kv[1]))
			}
		default:
			parts = append(parts, escapeFTSTerm(tok))
		}
	}
	return strings.Join(parts, " ")
}

var ftsReservedWords = map[string]bool{"AND": true, "OR": true, "NOT": true, "NEAR": true}

// escapeFTSTerm quotes term for FTS5 if it contains syntax characters or
// collides with an FTS5 operator keyword, doubling any embedded quotes.
func escapeFTSTerm(term string) string {
	needsQuote := ftsReservedWords[strings.ToUpper(term)]
	if !needsQuote {
		for _, r := range term {
			if unicode.IsSpace(r) || strings.ContainsRune(`-:()"`, r) {
				needsQuote = true
				break
			}
		}
	}
	if !needsQuote {
		return term
	}
	return `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
}
