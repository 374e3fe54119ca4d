// Package index provides the SQLite-backed document store: primary document
// records, a synchronized full-text index, annotations, collections, and
// memberships, plus the faceted search query.
package index

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	path         TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL DEFAULT '',
	raw_content  TEXT NOT NULL DEFAULT '',
	frontmatter  TEXT NOT NULL DEFAULT '{}',
	content_type TEXT NOT NULL DEFAULT 'markdown',
	word_count   INTEGER NOT NULL DEFAULT 0,
	checksum     TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL,
	modified_at  INTEGER NOT NULL,
	indexed_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_modified ON documents(modified_at DESC);

CREATE TABLE IF NOT EXISTS document_tags (
	document_path TEXT NOT NULL REFERENCES documents(path) ON DELETE CASCADE,
	tag           TEXT NOT NULL,
	PRIMARY KEY (document_path, tag)
);

CREATE INDEX IF NOT EXISTS idx_document_tags_tag ON document_tags(tag);

CREATE TABLE IF NOT EXISTS document_topics (
	document_path TEXT NOT NULL REFERENCES documents(path) ON DELETE CASCADE,
	topic         TEXT NOT NULL,
	PRIMARY KEY (document_path, topic)
);

CREATE INDEX IF NOT EXISTS idx_document_topics_topic ON document_topics(topic);

CREATE TABLE IF NOT EXISTS annotations (
	id            TEXT PRIMARY KEY,
	document_path TEXT NOT NULL REFERENCES documents(path) ON DELETE CASCADE,
	selected_text TEXT NOT NULL,
	note          TEXT NOT NULL DEFAULT '',
	color         TEXT NOT NULL DEFAULT 'yellow',
	start_offset  INTEGER NOT NULL,
	end_offset    INTEGER NOT NULL,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_annotations_document ON annotations(document_path, start_offset);

CREATE TABLE IF NOT EXISTS collections (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	color       TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS collection_documents (
	collection_id TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
	document_path TEXT NOT NULL REFERENCES documents(path) ON DELETE CASCADE,
	added_at      INTEGER NOT NULL,
	PRIMARY KEY (collection_id, document_path)
);

CREATE INDEX IF NOT EXISTS idx_collection_documents_path ON collection_documents(document_path);
`

// DB wraps a sql.DB with document index operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
// Foreign keys are enabled so the declared cascades hold on every code path.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// isUniqueViolation reports whether err is a SQLite UNIQUE or primary key
// constraint failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// isForeignKeyViolation reports whether err is a SQLite FK constraint failure.
func isForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
