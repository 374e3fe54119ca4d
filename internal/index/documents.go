package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lectern/lectern/internal/apperr"
	"github.com/lectern/lectern/internal/models"
)

// UpsertDocument inserts or fully overwrites the document row for doc.Path
// together with its tag/topic rows and its full-text entry, all in one
// transaction. CreatedAt is preserved across updates; IndexedAt is stamped
// here so it is always >= ModifiedAt.
func (db *DB) UpsertDocument(doc models.Document) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	fmJSON, _ := json.Marshal(doc.Frontmatter)
	if doc.Frontmatter == nil {
		fmJSON = []byte("{}")
	}
	now := models.NowMillis()
	if doc.ModifiedAt == 0 {
		doc.ModifiedAt = now
	}
	if doc.CreatedAt == 0 {
		doc.CreatedAt = doc.ModifiedAt
	}
	indexedAt := now
	if indexedAt < doc.ModifiedAt {
		indexedAt = doc.ModifiedAt
	}
	if doc.ContentType == "" {
		doc.ContentType = models.DefaultContentType
	}

	_, err = tx.Exec(`
		INSERT INTO documents (path, title, content, raw_content, frontmatter,
			content_type, word_count, checksum, created_at, modified_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title        = excluded.title,
			content      = excluded.content,
			raw_content  = excluded.raw_content,
			frontmatter  = excluded.frontmatter,
			content_type = excluded.content_type,
			word_count   = excluded.word_count,
			checksum     = excluded.checksum,
			modified_at  = excluded.modified_at,
			indexed_at   = excluded.indexed_at
	`, doc.Path, doc.Title, doc.Content, doc.RawContent, string(fmJSON),
		doc.ContentType, doc.WordCount, doc.Checksum, doc.CreatedAt, doc.ModifiedAt, indexedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	if err := replaceTerms(tx, "document_tags", "tag", doc.Path, doc.Tags); err != nil {
		return err
	}
	if err := replaceTerms(tx, "document_topics", "topic", doc.Path, doc.Topics); err != nil {
		return err
	}

	if err := ftsUpsert(tx, doc.Path, doc.Title, doc.Content, doc.Tags, doc.Topics); err != nil {
		return err
	}

	return tx.Commit()
}

// replaceTerms swaps the full tag/topic set for a document.
func replaceTerms(tx *sql.Tx, table, column, path string, values []string) error {
	if _, err := tx.Exec(`DELETE FROM `+table+` WHERE document_path = ?`, path); err != nil {
		return fmt.Errorf("index: clear %s: %w", table, err)
	}
	if len(values) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO ` + table + ` (document_path, ` + column + `) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare %s insert: %w", table, err)
	}
	defer stmt.Close()
	for _, v := range values {
		if _, err := stmt.Exec(path, v); err != nil {
			return fmt.Errorf("index: insert %s: %w", table, err)
		}
	}
	return nil
}

// DeleteDocument removes the document row; annotation, membership, and
// tag/topic rows go with it via the declared cascades, and the full-text
// entry is removed in the same transaction.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete document: %w", err)
	}

	return tx.Commit()
}

// GetDocument fetches a single document with its tags and topics.
func (db *DB) GetDocument(path string) (*models.Document, error) {
	var d models.Document
	var fmJSON string
	err := db.conn.QueryRow(`
		SELECT path, title, content, raw_content, frontmatter, content_type,
		       word_count, checksum, created_at, modified_at, indexed_at
		FROM documents WHERE path = ?
	`, path).Scan(&d.Path, &d.Title, &d.Content, &d.RawContent, &fmJSON,
		&d.ContentType, &d.WordCount, &d.Checksum, &d.CreatedAt, &d.ModifiedAt, &d.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get document: %w", err)
	}

	if fmJSON != "" && fmJSON != "{}" {
		_ = json.Unmarshal([]byte(fmJSON), &d.Frontmatter)
	}

	d.Tags, err = db.terms("document_tags", "tag", path)
	if err != nil {
		return nil, err
	}
	d.Topics, err = db.terms("document_topics", "topic", path)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (db *DB) terms(table, column, path string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT `+column+` FROM `+table+` WHERE document_path = ? ORDER BY `+column, path)
	if err != nil {
		return nil, fmt.Errorf("index: load %s: %w", table, err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListDocuments returns documents ordered by modified_at descending, plus the
// total document count for pagination.
func (db *DB) ListDocuments(limit, offset int) ([]models.DocumentListItem, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count documents: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT path, title, content_type, word_count, modified_at
		FROM documents
		ORDER BY modified_at DESC, path
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	var out []models.DocumentListItem
	for rows.Next() {
		var item models.DocumentListItem
		if err := rows.Scan(&item.Path, &item.Title, &item.ContentType, &item.WordCount, &item.ModifiedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		if out[i].Tags, err = db.terms("document_tags", "tag", out[i].Path); err != nil {
			return nil, 0, err
		}
		if out[i].Topics, err = db.terms("document_topics", "topic", out[i].Path); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

// GetChecksum returns the stored checksum for a document, or empty string
// when the path is not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path -> checksum for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// AllPaths returns every indexed document path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}
