// Package docservice coordinates storage, parsing, and index operations for
// the API layer, and implements the faceted search path on top of the query
// translator.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/lectern/lectern/internal/apperr"
	"github.com/lectern/lectern/internal/index"
	"github.com/lectern/lectern/internal/models"
	"github.com/lectern/lectern/internal/query"
	"github.com/lectern/lectern/internal/storage"
)

// DefaultSearchLimit applies when the caller does not specify a page size.
const DefaultSearchLimit = 20

// Service coordinates storage and index operations.
type Service struct {
	store storage.Provider
	db    index.DocumentIndex
}

// NewService creates a new document service.
func NewService(store storage.Provider, db index.DocumentIndex) *Service {
	return &Service{store: store, db: db}
}

// SearchParams carries the raw query plus facet filters and pagination.
type SearchParams struct {
	Query       string
	Tags        []string
	Topics      []string
	ContentType string
	DateFrom    int64
	DateTo      int64
	Limit       int
	Offset      int
}

// SearchResult is the paginated outcome of one search.
type SearchResult struct {
	Query   string             `json:"query"`
	Total   int                `json:"total"`
	Results []models.SearchHit `json:"results"`
}

// Search validates the query, translates it, and runs it against the index
// with the requested facets. A blank query is rejected before any store
// access.
func (s *Service) Search(_ context.Context, p SearchParams) (*SearchResult, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, fmt.Errorf("query must not be blank: %w", apperr.ErrValidation)
	}
	if p.Limit <= 0 {
		p.Limit = DefaultSearchLimit
	}

	expr := query.Translate(p.Query)
	facets := index.Facets{
		Tags:        p.Tags,
		Topics:      p.Topics,
		ContentType: p.ContentType,
		DateFrom:    p.DateFrom,
		DateTo:      p.DateTo,
	}
	hits, total, err := s.db.Search(expr, facets, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Query: p.Query, Total: total, Results: hits}, nil
}

// GetDocument fetches one indexed document by path.
func (s *Service) GetDocument(_ context.Context, path string) (*models.Document, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required: %w", apperr.ErrValidation)
	}
	return s.db.GetDocument(path)
}

// ListDocuments returns indexed documents ordered by modification time
// descending.
func (s *Service) ListDocuments(_ context.Context, limit, offset int) ([]models.DocumentListItem, int, error) {
	return s.db.ListDocuments(limit, offset)
}

// SaveDocument writes content to the library and re-indexes it synchronously
// so the response reflects the freshly indexed document.
func (s *Service) SaveDocument(_ context.Context, path, content string) (*models.Document, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required: %w", apperr.ErrValidation)
	}
	if !s.store.Matches(path) {
		return nil, fmt.Errorf("unsupported file type %q: %w", path, apperr.ErrValidation)
	}
	data := []byte(content)
	if err := s.store.Write(path, data); err != nil {
		return nil, err
	}
	if err := index.IndexFile(s.db, path, data, models.NowMillis()); err != nil {
		return nil, err
	}
	return s.db.GetDocument(path)
}

// DeleteDocument removes a document from the library and the index. The
// index delete cascades to annotations and memberships.
func (s *Service) DeleteDocument(_ context.Context, path string) error {
	if _, err := s.db.GetDocument(path); err != nil {
		return err
	}
	if err := s.store.Delete(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return s.db.DeleteDocument(path)
}

// IndexFile parses raw bytes and upserts the resulting document without
// touching the filesystem.
func (s *Service) IndexFile(path string, data []byte) (*models.Document, error) {
	if err := index.IndexFile(s.db, path, data, models.NowMillis()); err != nil {
		return nil, err
	}
	return s.db.GetDocument(path)
}

// SaveUpload writes an uploaded file into the library root and indexes it
// synchronously so the caller sees the freshly indexed document.
func (s *Service) SaveUpload(name string, data []byte) (*models.Document, error) {
	if !s.store.Matches(name) {
		return nil, fmt.Errorf("unsupported file type %q: %w", name, apperr.ErrValidation)
	}
	if err := s.store.Write(name, data); err != nil {
		return nil, err
	}
	return s.IndexFile(name, data)
}

// TagCounts aggregates tag usage across all documents.
func (s *Service) TagCounts(_ context.Context) ([]models.FacetCount, error) {
	return s.db.TagCounts()
}

// TopicCounts aggregates topic usage across all documents.
func (s *Service) TopicCounts(_ context.Context) ([]models.FacetCount, error) {
	return s.db.TopicCounts()
}

// CreateAnnotationParams carries everything needed to create an annotation.
// ID is optional; a UUID is generated when absent.
type CreateAnnotationParams struct {
	ID           string `json:"id"`
	DocumentPath string `json:"documentPath"`
	SelectedText string `json:"selectedText"`
	Note         string `json:"note"`
	Color        string `json:"color"`
	StartOffset  int    `json:"startOffset"`
	EndOffset    int    `json:"endOffset"`
}

func (p CreateAnnotationParams) validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.DocumentPath, validation.Required),
		validation.Field(&p.SelectedText, validation.Required),
		validation.Field(&p.Color, validation.In(
			models.ColorYellow, models.ColorGreen, models.ColorBlue,
			models.ColorPink, models.ColorOrange)),
		validation.Field(&p.StartOffset, validation.Min(0)),
		validation.Field(&p.EndOffset, validation.Required, validation.Min(1)),
	)
}

// CreateAnnotation validates the request and persists the annotation. Offset
// bounds against the owning document's raw content are enforced by the store
// inside the transaction.
func (s *Service) CreateAnnotation(_ context.Context, p CreateAnnotationParams) (*models.Annotation, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), apperr.ErrValidation)
	}
	if p.EndOffset <= p.StartOffset {
		return nil, fmt.Errorf("endOffset must be greater than startOffset: %w", apperr.ErrValidation)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return s.db.CreateAnnotation(models.Annotation{
		ID:           p.ID,
		DocumentPath: p.DocumentPath,
		SelectedText: p.SelectedText,
		Note:         p.Note,
		Color:        p.Color,
		StartOffset:  p.StartOffset,
		EndOffset:    p.EndOffset,
	})
}

// GetAnnotation fetches one annotation by id.
func (s *Service) GetAnnotation(_ context.Context, id string) (*models.Annotation, error) {
	return s.db.GetAnnotation(id)
}

// UpdateAnnotation changes note and/or color; offsets and selected text are
// immutable.
func (s *Service) UpdateAnnotation(_ context.Context, id string, note, color *string) (*models.Annotation, error) {
	if color != nil {
		if err := validation.Validate(*color, validation.In(
			models.ColorYellow, models.ColorGreen, models.ColorBlue,
			models.ColorPink, models.ColorOrange)); err != nil {
			return nil, fmt.Errorf("color: %s: %w", err.Error(), apperr.ErrValidation)
		}
	}
	return s.db.UpdateAnnotation(id, note, color)
}

// DeleteAnnotation removes one annotation by id.
func (s *Service) DeleteAnnotation(_ context.Context, id string) error {
	return s.db.DeleteAnnotation(id)
}

// ListAnnotations returns a document's annotations ordered by start offset.
func (s *Service) ListAnnotations(_ context.Context, path string) ([]models.Annotation, error) {
	if path == "" {
		return nil, fmt.Errorf("documentPath is required: %w", apperr.ErrValidation)
	}
	return s.db.ListAnnotationsForDocument(path)
}

// CreateCollectionParams carries a new collection's attributes.
type CreateCollectionParams struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// CreateCollection validates and persists a collection with a generated id.
func (s *Service) CreateCollection(_ context.Context, p CreateCollectionParams) (*models.Collection, error) {
	if err := validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
	); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), apperr.ErrValidation)
	}
	return s.db.CreateCollection(models.Collection{
		ID:          uuid.NewString(),
		Name:        p.Name,
		Description: p.Description,
		Color:       p.Color,
	})
}

// GetCollection fetches one collection including its document count.
func (s *Service) GetCollection(_ context.Context, id string) (*models.Collection, error) {
	return s.db.GetCollection(id)
}

// ListCollections returns all collections with document counts.
func (s *Service) ListCollections(_ context.Context) ([]models.Collection, error) {
	return s.db.ListCollections()
}

// UpdateCollection changes name, description, and/or color.
func (s *Service) UpdateCollection(_ context.Context, id string, name, description, color *string) (*models.Collection, error) {
	if name != nil && strings.TrimSpace(*name) == "" {
		return nil, fmt.Errorf("name must not be blank: %w", apperr.ErrValidation)
	}
	return s.db.UpdateCollection(id, name, description, color)
}

// DeleteCollection removes a collection and its memberships.
func (s *Service) DeleteCollection(_ context.Context, id string) error {
	return s.db.DeleteCollection(id)
}

// AddToCollection adds a document to a collection; adding twice is a no-op.
func (s *Service) AddToCollection(_ context.Context, collectionID, path string) error {
	return s.db.AddDocumentToCollection(path, collectionID)
}

// RemoveFromCollection removes a document from a collection; removing a
// non-member is a no-op.
func (s *Service) RemoveFromCollection(_ context.Context, collectionID, path string) error {
	return s.db.RemoveDocumentFromCollection(path, collectionID)
}

// BulkMembershipResult reports how many membership rows a bulk change
// actually touched.
type BulkMembershipResult struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// ChangeCollectionMembers applies a bulk add or remove in one transaction.
// action is "add" or "remove".
func (s *Service) ChangeCollectionMembers(_ context.Context, collectionID, action string, paths []string) (*BulkMembershipResult, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("documentPaths must not be empty: %w", apperr.ErrValidation)
	}
	var add, remove []string
	switch action {
	case "add":
		add = paths
	case "remove":
		remove = paths
	default:
		return nil, fmt.Errorf("action must be add or remove: %w", apperr.ErrValidation)
	}
	added, removed, err := s.db.ChangeCollectionMembers(collectionID, add, remove)
	if err != nil {
		return nil, err
	}
	return &BulkMembershipResult{Added: added, Removed: removed}, nil
}

// ListCollectionDocuments returns a collection's member documents.
func (s *Service) ListCollectionDocuments(_ context.Context, collectionID string) ([]models.DocumentListItem, error) {
	return s.db.ListCollectionDocuments(collectionID)
}

// GetDocumentCollections returns the collections a document belongs to.
func (s *Service) GetDocumentCollections(_ context.Context, path string) ([]models.Collection, error) {
	return s.db.GetDocumentCollections(path)
}
