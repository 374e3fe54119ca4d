// Package models defines the domain types for Lectern.
package models

import "time"

// Annotation colors accepted by the API.
const (
	ColorYellow = "yellow"
	ColorGreen  = "green"
	ColorBlue   = "blue"
	ColorPink   = "pink"
	ColorOrange = "orange"
)

// DefaultContentType is assigned when a document declares no type.
const DefaultContentType = "markdown"

// NowMillis returns the current time as Unix milliseconds, the timestamp
// representation used across the store and the API.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Document represents one indexed file in the library. Path is relative to
// the library root and acts as the primary key; a rename shows up as a
// delete of the old path and an insert under the new one.
type Document struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	RawContent  string         `json:"rawContent"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Tags        []string       `json:"tags"`
	Topics      []string       `json:"topics"`
	ContentType string         `json:"contentType"`
	WordCount   int            `json:"wordCount"`
	Checksum    string         `json:"checksum"`
	CreatedAt   int64          `json:"createdAt"`
	ModifiedAt  int64          `json:"modifiedAt"`
	IndexedAt   int64          `json:"indexedAt"`
}

// DocumentListItem is a lightweight representation returned by list operations.
type DocumentListItem struct {
	Path        string   `json:"path"`
	Title       string   `json:"title"`
	Tags        []string `json:"tags"`
	Topics      []string `json:"topics"`
	ContentType string   `json:"contentType"`
	WordCount   int      `json:"wordCount"`
	ModifiedAt  int64    `json:"modifiedAt"`
}

// Annotation is a highlighted span of a document. Offsets are character
// offsets into the owning document's RawContent and are immutable after
// creation; only Note and Color may change.
type Annotation struct {
	ID           string `json:"id"`
	DocumentPath string `json:"documentPath"`
	SelectedText string `json:"selectedText"`
	Note         string `json:"note,omitempty"`
	Color        string `json:"color"`
	StartOffset  int    `json:"startOffset"`
	EndOffset    int    `json:"endOffset"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
}

// Collection groups documents under a user-chosen name.
type Collection struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Color         string `json:"color,omitempty"`
	DocumentCount int    `json:"documentCount"`
	CreatedAt     int64  `json:"createdAt"`
	UpdatedAt     int64  `json:"updatedAt"`
}

// FileMetadata is a lightweight representation of an on-disk library file.
type FileMetadata struct {
	Path       string `json:"path"`
	Checksum   string `json:"checksum"`
	ModifiedAt int64  `json:"modifiedAt"`
}

// SearchHit is one ranked full-text search result. Lower Score means a
// better match; Snippet wraps match boundaries in <mark> tags for
// client-side highlighting.
type SearchHit struct {
	Path        string   `json:"path"`
	Title       string   `json:"title"`
	Tags        []string `json:"tags"`
	Topics      []string `json:"topics"`
	ContentType string   `json:"contentType"`
	WordCount   int      `json:"wordCount"`
	ModifiedAt  int64    `json:"modifiedAt"`
	Snippet     string   `json:"snippet"`
	Score       float64  `json:"score"`
}

// FacetCount is one entry of a tag or topic aggregation.
type FacetCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
