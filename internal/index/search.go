package index

import (
	"strings"

	"github.com/lectern/lectern/internal/models"
)

// Facets are the structural filters applied alongside the full-text query.
// Tag and topic filters require exact set membership of every requested
// value; ContentType is an exact match; the date bounds are inclusive on
// modified_at (Unix millis, zero means unbounded).
type Facets struct {
	Tags        []string
	Topics      []string
	ContentType string
	DateFrom    int64
	DateTo      int64
}

// facetClauses renders the facet filters as SQL conditions on the aliased
// documents table d. Tag and topic membership uses exact-match EXISTS
// subqueries against the normalized child tables, never substring tests.
func (f Facets) facetClauses() (string, []any) {
	var clauses []string
	var args []any

	for _, tag := range f.Tags {
		clauses = append(clauses,
			`EXISTS (SELECT 1 FROM document_tags t WHERE t.document_path = d.path AND t.tag = ?)`)
		args = append(args, tag)
	}
	for _, topic := range f.Topics {
		clauses = append(clauses,
			`EXISTS (SELECT 1 FROM document_topics tp WHERE tp.document_path = d.path AND tp.topic = ?)`)
		args = append(args, topic)
	}
	if f.ContentType != "" {
		clauses = append(clauses, `d.content_type = ?`)
		args = append(args, f.ContentType)
	}
	if f.DateFrom > 0 {
		clauses = append(clauses, `d.modified_at >= ?`)
		args = append(args, f.DateFrom)
	}
	if f.DateTo > 0 {
		clauses = append(clauses, `d.modified_at <= ?`)
		args = append(args, f.DateTo)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

// attachTerms loads tags and topics for each hit after the ranked page has
// been selected.
func (db *DB) attachTerms(hits []models.SearchHit) error {
	var err error
	for i := range hits {
		if hits[i].Tags, err = db.terms("document_tags", "tag", hits[i].Path); err != nil {
			return err
		}
		if hits[i].Topics, err = db.terms("document_topics", "topic", hits[i].Path); err != nil {
			return err
		}
	}
	return nil
}
