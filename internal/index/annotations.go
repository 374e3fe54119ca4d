package index

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lectern/lectern/internal/apperr"
	"github.com/lectern/lectern/internal/models"
)

// CreateAnnotation persists a new annotation. The target document must exist
// and the offsets must satisfy 0 <= start < end <= len(rawContent); both are
// checked inside the transaction so a racing document change cannot admit an
// out-of-range span.
func (db *DB) CreateAnnotation(a models.Annotation) (*models.Annotation, error) {
	if a.Color == "" {
		a.Color = models.ColorYellow
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var rawLen int
	err = tx.QueryRow(`SELECT length(raw_content) FROM documents WHERE path = ?`, a.DocumentPath).Scan(&rawLen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("annotation target %q: %w", a.DocumentPath, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: check annotation target: %w", err)
	}
	if a.StartOffset < 0 || a.StartOffset >= a.EndOffset || a.EndOffset > rawLen {
		return nil, fmt.Errorf("offsets [%d,%d) out of range for content length %d: %w",
			a.StartOffset, a.EndOffset, rawLen, apperr.ErrValidation)
	}

	now := models.NowMillis()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err = tx.Exec(`
		INSERT INTO annotations (id, document_path, selected_text, note, color,
			start_offset, end_offset, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.DocumentPath, a.SelectedText, a.Note, a.Color,
		a.StartOffset, a.EndOffset, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("annotation %q: %w", a.ID, apperr.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("index: insert annotation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("index: commit annotation: %w", err)
	}
	return &a, nil
}

// GetAnnotation fetches one annotation by id.
func (db *DB) GetAnnotation(id string) (*models.Annotation, error) {
	var a models.Annotation
	err := db.conn.QueryRow(`
		SELECT id, document_path, selected_text, note, color,
		       start_offset, end_offset, created_at, updated_at
		FROM annotations WHERE id = ?
	`, id).Scan(&a.ID, &a.DocumentPath, &a.SelectedText, &a.Note, &a.Color,
		&a.StartOffset, &a.EndOffset, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get annotation: %w", err)
	}
	return &a, nil
}

// UpdateAnnotation changes the note and/or color of an existing annotation.
// Offsets and selected text are immutable after creation. Nil arguments leave
// the corresponding field untouched.
func (db *DB) UpdateAnnotation(id string, note, color *string) (*models.Annotation, error) {
	a, err := db.GetAnnotation(id)
	if err != nil {
		return nil, err
	}
	if note != nil {
		a.Note = *note
	}
	if color != nil {
		a.Color = *color
	}
	a.UpdatedAt = models.NowMillis()

	_, err = db.conn.Exec(`
		UPDATE annotations SET note = ?, color = ?, updated_at = ? WHERE id = ?
	`, a.Note, a.Color, a.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("index: update annotation: %w", err)
	}
	return a, nil
}

// DeleteAnnotation removes one annotation by id.
func (db *DB) DeleteAnnotation(id string) error {
	res, err := db.conn.Exec(`DELETE FROM annotations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("index: delete annotation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListAnnotationsForDocument returns every annotation on a document ordered
// by start offset ascending. A path with no annotations (or no document)
// yields an empty slice.
func (db *DB) ListAnnotationsForDocument(path string) ([]models.Annotation, error) {
	rows, err := db.conn.Query(`
		SELECT id, document_path, selected_text, note, color,
		       start_offset, end_offset, created_at, updated_at
		FROM annotations
		WHERE document_path = ?
		ORDER BY start_offset ASC, id
	`, path)
	if err != nil {
		return nil, fmt.Errorf("index: list annotations: %w", err)
	}
	defer rows.Close()

	out := []models.Annotation{}
	for rows.Next() {
		var a models.Annotation
		if err := rows.Scan(&a.ID, &a.DocumentPath, &a.SelectedText, &a.Note, &a.Color,
			&a.StartOffset, &a.EndOffset, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
