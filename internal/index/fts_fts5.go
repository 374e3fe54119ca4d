//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lectern/lectern/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			path UNINDEXED,
			title,
			content,
			tags,
			topics,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, title, content string, tags, topics []string) error {
	_, _ = tx.Exec(`DELETE FROM documents_fts WHERE path = ?`, path)
	_, err := tx.Exec(`INSERT INTO documents_fts (path, title, content, tags, topics) VALUES (?, ?, ?, ?, ?)`,
		path, title, content, strings.Join(tags, " "), strings.Join(topics, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM documents_fts WHERE path = ?`, path)
}

// Search runs the translated FTS5 query with facet filters and pagination.
// Results come from the join between the full-text table and the documents
// table, so a hit can never reference a path without a document row. Ranking
// is bm25 ascending (lower score is a better match), with modified_at
// descending as the tie-break.
func (db *DB) Search(queryExpr string, facets Facets, limit, offset int) ([]models.SearchHit, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	where, facetArgs := facets.facetClauses()

	countArgs := append([]any{queryExpr}, facetArgs...)
	var total int
	err := db.conn.QueryRow(`
		SELECT count(*)
		FROM documents_fts
		JOIN documents d ON d.path = documents_fts.path
		WHERE documents_fts MATCH ?`+where, countArgs...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("index: search count: %w", err)
	}

	args := append([]any{queryExpr}, facetArgs...)
	args = append(args, limit, offset)
	rows, err := db.conn.Query(`
		SELECT d.path,
		       d.title,
		       d.content_type,
		       d.word_count,
		       d.modified_at,
		       snippet(documents_fts, 2, '<mark>', '</mark>', '...', 48),
		       bm25(documents_fts) AS score
		FROM documents_fts
		JOIN documents d ON d.path = documents_fts.path
		WHERE documents_fts MATCH ?`+where+`
		ORDER BY score ASC, d.modified_at DESC
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
			&h.ModifiedAt, &h.Snippet, &h.Score); err != nil {
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
