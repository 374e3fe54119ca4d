package index

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lectern/lectern/internal/apperr"
	"github.com/lectern/lectern/internal/models"
)

const collectionColumns = `
	c.id, c.name, c.description, c.color, c.created_at, c.updated_at,
	(SELECT count(*) FROM collection_documents cd WHERE cd.collection_id = c.id)
`

// CreateCollection persists a new collection. Names are unique; a duplicate
// fails with a conflict and no write is applied.
func (db *DB) CreateCollection(c models.Collection) (*models.Collection, error) {
	now := models.NowMillis()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := db.conn.Exec(`
		INSERT INTO collections (id, name, description, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Description, c.Color, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("collection name %q: %w", c.Name, apperr.ErrConflict)
		}
		return nil, fmt.Errorf("index: insert collection: %w", err)
	}
	return &c, nil
}

// GetCollection fetches one collection including its document count.
func (db *DB) GetCollection(id string) (*models.Collection, error) {
	row := db.conn.QueryRow(`SELECT `+collectionColumns+` FROM collections c WHERE c.id = ?`, id)
	return scanCollection(row)
}

// ListCollections returns every collection ordered by name, each with its
// computed document count.
func (db *DB) ListCollections() ([]models.Collection, error) {
	rows, err := db.conn.Query(`SELECT ` + collectionColumns + ` FROM collections c ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("index: list collections: %w", err)
	}
	defer rows.Close()

	out := []models.Collection{}
	for rows.Next() {
		var c models.Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Color,
			&c.CreatedAt, &c.UpdatedAt, &c.DocumentCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCollection changes name, description, and/or color. Nil arguments
// leave the corresponding field untouched. Renaming onto an existing name
// fails with a conflict.
func (db *DB) UpdateCollection(id string, name, description, color *string) (*models.Collection, error) {
	c, err := db.GetCollection(id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		c.Name = *name
	}
	if description != nil {
		c.Description = *description
	}
	if color != nil {
		c.Color = *color
	}
	c.UpdatedAt = models.NowMillis()

	_, err = db.conn.Exec(`
		UPDATE collections SET name = ?, description = ?, color = ?, updated_at = ? WHERE id = ?
	`, c.Name, c.Description, c.Color, c.UpdatedAt, id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("collection name %q: %w", c.Name, apperr.ErrConflict)
		}
		return nil, fmt.Errorf("index: update collection: %w", err)
	}
	return c, nil
}

// DeleteCollection removes a collection; its membership rows cascade.
func (db *DB) DeleteCollection(id string) error {
	res, err := db.conn.Exec(`DELETE FROM collections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("index: delete collection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// AddDocumentToCollection adds a membership row. Adding an existing member is
// a no-op; a missing document or collection fails with not-found.
func (db *DB) AddDocumentToCollection(path, collectionID string) error {
	_, _, err := db.ChangeCollectionMembers(collectionID, []string{path}, nil)
	return err
}

// RemoveDocumentFromCollection removes a membership row. Removing a
// non-member is a no-op.
func (db *DB) RemoveDocumentFromCollection(path, collectionID string) error {
	_, _, err := db.ChangeCollectionMembers(collectionID, nil, []string{path})
	return err
}

// ChangeCollectionMembers applies membership additions and removals for one
// collection inside a single transaction and reports how many rows were
// actually added and removed. Every added path must reference an existing
// document; a single bad path aborts the whole batch.
func (db *DB) ChangeCollectionMembers(collectionID string, add, remove []string) (added, removed int, err error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRow(`SELECT count(*) FROM collections WHERE id = ?`, collectionID).Scan(&exists)
	if err != nil {
		return 0, 0, fmt.Errorf("index: check collection: %w", err)
	}
	if exists == 0 {
		return 0, 0, fmt.Errorf("collection %q: %w", collectionID, apperr.ErrNotFound)
	}

	now := models.NowMillis()
	for _, path := range add {
		res, insErr := tx.Exec(`
			INSERT OR IGNORE INTO collection_documents (collection_id, document_path, added_at)
			VALUES (?, ?, ?)
		`, collectionID, path, now)
		if insErr != nil {
			if isForeignKeyViolation(insErr) {
				return 0, 0, fmt.Errorf("document %q: %w", path, apperr.ErrNotFound)
			}
			return 0, 0, fmt.Errorf("index: add member: %w", insErr)
		}
		n, _ := res.RowsAffected()
		added += int(n)
	}

	for _, path := range remove {
		res, delErr := tx.Exec(`
			DELETE FROM collection_documents WHERE collection_id = ? AND document_path = ?
		`, collectionID, path)
		if delErr != nil {
			return 0, 0, fmt.Errorf("index: remove member: %w", delErr)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("index: commit membership change: %w", err)
	}
	return added, removed, nil
}

// ListCollectionDocuments returns the member documents of a collection
// ordered by when they were added, newest first.
func (db *DB) ListCollectionDocuments(collectionID string) ([]models.DocumentListItem, error) {
	if _, err := db.GetCollection(collectionID); err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(`
		SELECT d.path, d.title, d.content_type, d.word_count, d.modified_at
		FROM collection_documents cd
		JOIN documents d ON d.path = cd.document_path
		WHERE cd.collection_id = ?
		ORDER BY cd.added_at DESC, d.path
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("index: list collection documents: %w", err)
	}
	defer rows.Close()

	out := []models.DocumentListItem{}
	for rows.Next() {
		var item models.DocumentListItem
		if err := rows.Scan(&item.Path, &item.Title, &item.ContentType, &item.WordCount, &item.ModifiedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Tags, err = db.terms("document_tags", "tag", out[i].Path); err != nil {
			return nil, err
		}
		if out[i].Topics, err = db.terms("document_topics", "topic", out[i].Path); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetDocumentCollections returns every collection a document belongs to.
func (db *DB) GetDocumentCollections(path string) ([]models.Collection, error) {
	rows, err := db.conn.Query(`
		SELECT `+collectionColumns+`
		FROM collection_documents cd
		JOIN collections c ON c.id = cd.collection_id
		WHERE cd.document_path = ?
		ORDER BY c.name
	`, path)
	if err != nil {
		return nil, fmt.Errorf("index: document collections: %w", err)
	}
	defer rows.Close()

	out := []models.Collection{}
	for rows.Next() {
		var c models.Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Color,
			&c.CreatedAt, &c.UpdatedAt, &c.DocumentCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCollection(row *sql.Row) (*models.Collection, error) {
	var c models.Collection
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Color,
		&c.CreatedAt, &c.UpdatedAt, &c.DocumentCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get collection: %w", err)
	}
	return &c, nil
}
