package index

import (
	"fmt"

	"github.com/lectern/lectern/internal/models"
)

// TagCounts aggregates distinct tags across all documents, sorted by
// occurrence count descending, then name.
func (db *DB) TagCounts() ([]models.FacetCount, error) {
	return db.facetCounts("document_tags", "tag")
}

// TopicCounts aggregates distinct topics across all documents, sorted by
// occurrence count descending, then name.
func (db *DB) TopicCounts() ([]models.FacetCount, error) {
	return db.facetCounts("document_topics", "topic")
}

func (db *DB) facetCounts(table, column string) ([]models.FacetCount, error) {
	rows, err := db.conn.Query(`
		SELECT ` + column + `, count(*) AS n
		FROM ` + table + `
		GROUP BY ` + column + `
		ORDER BY n DESC, ` + column + ` ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("index: %s counts: %w", column, err)
	}
	defer rows.Close()

	out := []models.FacetCount{}
	for rows.Next() {
		var fc models.FacetCount
		if err := rows.Scan(&fc.Name, &fc.Count); err != nil {
			return nil, err
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}
