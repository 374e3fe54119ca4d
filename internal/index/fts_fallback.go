//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lectern/lectern/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; search falls back to LIKE over the documents table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string, _, _ []string) error {
	// Content is already stored in the documents table; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search when FTS5 is not compiled in. Boolean
// operators from the translated query are ignored; the remaining terms must
// all appear in the title or content. Scores are flat, so ordering falls back
// to modified_at descending.
func (db *DB) Search(queryExpr string, facets Facets, limit, offset int) ([]models.SearchHit, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	terms := likeTerms(queryExpr)
	if len(terms) == 0 {
		return []models.SearchHit{}, 0, nil
	}

	var clauses []string
	var likeArgs []any
	for _, term := range terms {
		clauses = append(clauses, `(d.title LIKE ? OR d.content LIKE ?)`)
		pat := "%" + term + "%"
		likeArgs = append(likeArgs, pat, pat)
	}
	where := strings.Join(clauses, " AND ")

	facetWhere, facetArgs := facets.facetClauses()

	countArgs := append(append([]any{}, likeArgs...), facetArgs...)
	var total int
	err := db.conn.QueryRow(`SELECT count(*) FROM documents d WHERE `+where+facetWhere, countArgs...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("index: search count: %w", err)
	}

	args := append(append([]any{}, likeArgs...), facetArgs...)
	args = append(args, limit, offset)
	rows, err := db.conn.Query(`
		SELECT d.path, d.title, d.content_type, d.word_count, d.modified_at,
		       substr(d.content, 1, 200)
		FROM documents d
		WHERE `+where+facetWhere+`
		ORDER BY d.modified_at DESC, d.path
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	hits := []models.SearchHit{}
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(&h.Path, &h.Title, &h.ContentType, &h.WordCount,
			&h.ModifiedAt, &h.Snippet); err != nil {
			return nil, 0, err
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := db.attachTerms(hits); err != nil {
		return nil, 0, err
	}
	return hits, total, nil
}

// likeTerms reduces a translated query expression to its bare terms:
// operators are dropped, phrases are unquoted, prefix stars are trimmed.
func likeTerms(queryExpr string) []string {
	var out []string
	for _, tok := range strings.Fields(queryExpr) {
		switch tok {
		case "AND", "OR", "NOT":
			continue
		}
		tok = strings.Trim(tok, `"`)
		tok = strings.TrimSuffix(tok, "*")
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
