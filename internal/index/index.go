package index

import "github.com/lectern/lectern/internal/models"

// DocumentIndex defines the store operations the rest of the system depends
// on. Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type DocumentIndex interface {
	UpsertDocument(doc models.Document) error
	DeleteDocument(path string) error
	GetDocument(path string) (*models.Document, error)
	ListDocuments(limit, offset int) ([]models.DocumentListItem, int, error)
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	AllPaths() (map[string]struct{}, error)

	Search(queryExpr string, facets Facets, limit, offset int) ([]models.SearchHit, int, error)
	TagCounts() ([]models.FacetCount, error)
	TopicCounts() ([]models.FacetCount, error)

	CreateAnnotation(a models.Annotation) (*models.Annotation, error)
	GetAnnotation(id string) (*models.Annotation, error)
	UpdateAnnotation(id string, note, color *string) (*models.Annotation, error)
	DeleteAnnotation(id string) error
	ListAnnotationsForDocument(path string) ([]models.Annotation, error)

	CreateCollection(c models.Collection) (*models.Collection, error)
	GetCollection(id string) (*models.Collection, error)
	ListCollections() ([]models.Collection, error)
	UpdateCollection(id string, name, description, color *string) (*models.Collection, error)
	DeleteCollection(id string) error
	AddDocumentToCollection(path, collectionID string) error
	RemoveDocumentFromCollection(path, collectionID string) error
	ChangeCollectionMembers(collectionID string, add, remove []string) (added, removed int, err error)
	ListCollectionDocuments(collectionID string) ([]models.DocumentListItem, error)
	GetDocumentCollections(path string) ([]models.Collection, error)

	Close() error
}

// Verify *DB satisfies DocumentIndex at compile time.
var _ DocumentIndex = (*DB)(nil)
