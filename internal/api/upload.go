package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/lectern/lectern/internal/apperr"
	"github.com/lectern/lectern/internal/docservice"
	"github.com/lectern/lectern/internal/models"
)

const maxUploadBytes = 50 << 20 // 50 MB

// UploadHandler accepts document uploads: the file is written into the
// library root and indexed synchronously, so the response reflects the
// freshly indexed document.
type UploadHandler struct {
	svc *docservice.Service
}

// NewUploadHandler creates a handler backed by the document service.
func NewUploadHandler(svc *docservice.Service) *UploadHandler {
	return &UploadHandler{svc: svc}
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal).
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required: %w", apperr.ErrValidation)
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename %q: %w", name, apperr.ErrValidation)
	}
	return cleaned, nil
}

func (h *UploadHandler) saveOne(file multipart.File, filename string) (*models.Document, error) {
	name, err := safeName(filename)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return h.svc.SaveUpload(name, data)
}

// Upload handles POST /upload (multipart/form-data, field "file").
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	doc, err := h.saveOne(file, header.Filename)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// UploadMultiple handles POST /upload/multiple (multipart/form-data, field
// "files"). Each file is written and indexed in turn; a failing file is
// reported alongside the successes.
func (h *UploadHandler) UploadMultiple(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'files' field in multipart form"))
		return
	}

	type uploadOutcome struct {
		Filename string           `json:"filename"`
		Document *models.Document `json:"document,omitempty"`
		Error    string           `json:"error,omitempty"`
	}
	outcomes := []uploadOutcome{}

	for _, header := range r.MultipartForm.File["files"] {
		file, err := header.Open()
		if err != nil {
			outcomes = append(outcomes, uploadOutcome{Filename: header.Filename, Error: err.Error()})
			continue
		}
		doc, err := h.saveOne(file, header.Filename)
		file.Close()
		if err != nil {
			outcomes = append(outcomes, uploadOutcome{Filename: header.Filename, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, uploadOutcome{Filename: header.Filename, Document: doc})
	}

	writeJSON(w, http.StatusOK, map[string]any{"uploads": outcomes})
}
