package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lectern/lectern/internal/docservice"
	"github.com/lectern/lectern/internal/index"
)

// NewRouter creates a chi router with all API routes mounted.
// coord may be nil (no rescan endpoint backing, used in tests);
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, coord *index.Coordinator, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, coord)
	uh := NewUploadHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Search and facet aggregates.
	r.Get("/search", h.Search)
	r.Get("/tags", h.Tags)
	r.Get("/topics", h.Topics)

	// Documents.
	r.Get("/documents", h.ListDocuments)
	r.Get("/document", h.GetDocument)
	r.Put("/document", h.SaveDocument)
	r.Delete("/document", h.DeleteDocument)
	r.Post("/index", h.TriggerRescan)

	// Annotations.
	r.Get("/annotations", h.ListAnnotations)
	r.Post("/annotations", h.CreateAnnotation)
	r.Get("/annotations/{id}", h.GetAnnotation)
	r.Put("/annotations/{id}", h.UpdateAnnotation)
	r.Delete("/annotations/{id}", h.DeleteAnnotation)

	// Collections and memberships.
	r.Get("/collections", h.ListCollections)
	r.Post("/collections", h.CreateCollection)
	r.Get("/collections/{id}", h.GetCollection)
	r.Put("/collections/{id}", h.UpdateCollection)
	r.Delete("/collections/{id}", h.DeleteCollection)
	r.Get("/collections/{id}/documents", h.ListCollectionDocuments)
	r.Post("/collections/{id}/documents", h.AddToCollection)
	r.Delete("/collections/{id}/documents", h.RemoveFromCollection)
	r.Post("/collections/{id}/documents/bulk", h.BulkMembership)
	r.Get("/document/collections", h.GetDocumentCollections)

	// Uploads.
	r.Post("/upload", uh.Upload)
	r.Post("/upload/multiple", uh.UploadMultiple)

	// SSE endpoint (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
