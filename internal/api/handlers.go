package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lectern/lectern/internal/docservice"
	"github.com/lectern/lectern/internal/index"
	"github.com/lectern/lectern/internal/models"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc   *docservice.Service
	coord *index.Coordinator
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service, coord *index.Coordinator) *Handler {
	return &Handler{svc: svc, coord: coord}
}

func intParam(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

func int64Param(r *http.Request, name string) int64 {
	n, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return n
}

// listParam reads a repeatable query parameter that may also be given as a
// single comma-separated value.
func listParam(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Search handles GET /search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	res, err := h.svc.Search(r.Context(), docservice.SearchParams{
		Query:       q,
		Tags:        listParam(r, "tags"),
		Topics:      listParam(r, "topics"),
		ContentType: r.URL.Query().Get("contentType"),
		DateFrom:    int64Param(r, "dateFrom"),
		DateTo:      int64Param(r, "dateTo"),
		Limit:       intParam(r, "limit"),
		Offset:      intParam(r, "offset"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Tags handles GET /tags.
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.TagCounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// Topics handles GET /topics.
func (h *Handler) Topics(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.TopicCounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// ListDocuments handles GET /documents.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.svc.ListDocuments(r.Context(), intParam(r, "limit"), intParam(r, "offset"))
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []models.DocumentListItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": items,
		"total":     total,
	})
}

// GetDocument handles GET /document?path=....
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	doc, err := h.svc.GetDocument(r.Context(), path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// SaveDocument handles PUT /document: write to the library, re-parse, and
// re-index.
func (h *Handler) SaveDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	doc, err := h.svc.SaveDocument(r.Context(), req.Path, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /document?path=....
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteDocument(r.Context(), path); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TriggerRescan handles POST /index.
func (h *Handler) TriggerRescan(w http.ResponseWriter, r *http.Request) {
	if h.coord == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("indexing not available"))
		return
	}
	if err := h.coord.Rescan(r.Context()); err != nil {
		writeError(w, fmt.Errorf("rescan: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListAnnotations handles GET /annotations?documentPath=....
func (h *Handler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("documentPath")
	anns, err := h.svc.ListAnnotations(r.Context(), path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, anns)
}

// CreateAnnotation handles POST /annotations.
func (h *Handler) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req docservice.CreateAnnotationParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	ann, err := h.svc.CreateAnnotation(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ann)
}

// GetAnnotation handles GET /annotations/{id}.
func (h *Handler) GetAnnotation(w http.ResponseWriter, r *http.Request) {
	ann, err := h.svc.GetAnnotation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ann)
}

// UpdateAnnotation handles PUT /annotations/{id}. Only note and color are
// mutable.
func (h *Handler) UpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req struct {
		Note  *string `json:"note"`
		Color *string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	ann, err := h.svc.UpdateAnnotation(r.Context(), chi.URLParam(r, "id"), req.Note, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ann)
}

// DeleteAnnotation handles DELETE /annotations/{id}.
func (h *Handler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAnnotation(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCollections handles GET /collections.
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := h.svc.ListCollections(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cols)
}

// CreateCollection handles POST /collections.
func (h *Handler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req docservice.CreateCollectionParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	col, err := h.svc.CreateCollection(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, col)
}

// GetCollection handles GET /collections/{id}.
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	col, err := h.svc.GetCollection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, col)
}

// UpdateCollection handles PUT /collections/{id}.
func (h *Handler) UpdateCollection(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Color       *string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	col, err := h.svc.UpdateCollection(r.Context(), chi.URLParam(r, "id"), req.Name, req.Description, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, col)
}

// DeleteCollection handles DELETE /collections/{id}.
func (h *Handler) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCollection(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCollectionDocuments handles GET /collections/{id}/documents.
func (h *Handler) ListCollectionDocuments(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListCollectionDocuments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// AddToCollection handles POST /collections/{id}/documents.
func (h *Handler) AddToCollection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentPath string `json:"documentPath"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DocumentPath == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("documentPath is required"))
		return
	}
	if err := h.svc.AddToCollection(r.Context(), chi.URLParam(r, "id"), req.DocumentPath); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveFromCollection handles DELETE /collections/{id}/documents.
func (h *Handler) RemoveFromCollection(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("documentPath")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("documentPath is required"))
		return
	}
	if err := h.svc.RemoveFromCollection(r.Context(), chi.URLParam(r, "id"), path); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkMembership handles POST /collections/{id}/documents/bulk.
func (h *Handler) BulkMembership(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req struct {
		DocumentPaths []string `json:"documentPaths"`
		Action        string   `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.svc.ChangeCollectionMembers(r.Context(), chi.URLParam(r, "id"), req.Action, req.DocumentPaths)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetDocumentCollections handles GET /document/collections?path=....
func (h *Handler) GetDocumentCollections(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	cols, err := h.svc.GetDocumentCollections(r.Context(), path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cols)
}
