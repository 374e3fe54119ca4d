package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/lectern/lectern/internal/docservice"
	"github.com/lectern/lectern/internal/models"
	"github.com/lectern/lectern/internal/testutil"
)

func newTestServer(t *testing.T) (*httptest.Server, *docservice.Service) {
	t.Helper()
	_, store := testutil.TestLibrary(t)
	svc := docservice.NewService(store, testutil.TestDB(t))
	srv := httptest.NewServer(NewRouter(svc, nil, false, "", nil))
	t.Cleanup(srv.Close)
	return srv, svc
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func putDocument(t *testing.T, srv *httptest.Server, path, content string) models.Document {
	t.Helper()
	resp := doJSON(t, http.MethodPut, srv.URL+"/document", map[string]string{
		"path": path, "content": content,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save %s: status %d", path, resp.StatusCode)
	}
	return decode[models.Document](t, resp)
}

func TestSearchEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	putDocument(t, srv, "a.md", "---\ntags: [go]\n---\n\n# Alpha\n\nsearchable body")
	putDocument(t, srv, "b.md", "---\ntags: [rust]\n---\n\n# Beta\n\nsearchable body")

	resp, err := http.Get(srv.URL + "/search?q=searchable&tags=go")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	res := decode[docservice.SearchResult](t, resp)
	if res.Total != 1 || len(res.Results) != 1 || res.Results[0].Path != "a.md" {
		t.Errorf("result = %+v", res)
	}
}

func TestSearchEndpoint_MissingQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, q := range []string{"/search", "/search?q=", "/search?q=%20%20"} {
		resp, err := http.Get(srv.URL + q)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestDocumentCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	doc := putDocument(t, srv, "notes/crud.md", "# CRUD\n\nbody")
	if doc.Title != "CRUD" {
		t.Errorf("doc = %+v", doc)
	}

	resp, err := http.Get(srv.URL + "/document?path=" + url.QueryEscape("notes/crud.md"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d", resp.StatusCode)
	}
	got := decode[models.Document](t, resp)
	if got.Path != "notes/crud.md" || got.RawContent != "# CRUD\n\nbody" {
		t.Errorf("got = %+v", got)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/document?path="+url.QueryEscape("notes/crud.md"), nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/document?path=" + url.QueryEscape("notes/crud.md"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: status %d, want 404", resp.StatusCode)
	}
}

func TestListDocumentsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	putDocument(t, srv, "a.md", "# A")
	putDocument(t, srv, "b.md", "# B")

	resp, err := http.Get(srv.URL + "/documents?limit=1")
	if err != nil {
		t.Fatal(err)
	}
	body := decode[struct {
		Documents []models.DocumentListItem `json:"documents"`
		Total     int                       `json:"total"`
	}](t, resp)
	if body.Total != 2 || len(body.Documents) != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestTagsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	putDocument(t, srv, "a.md", "---\ntags: [go, web]\n---\n\n# A")
	putDocument(t, srv, "b.md", "---\ntags: [go]\n---\n\n# B")

	resp, err := http.Get(srv.URL + "/tags")
	if err != nil {
		t.Fatal(err)
	}
	counts := decode[[]models.FacetCount](t, resp)
	if len(counts) != 2 || counts[0].Name != "go" || counts[0].Count != 2 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestAnnotationEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	putDocument(t, srv, "a.md", "# Alpha\n\nannotated body text")

	resp := doJSON(t, http.MethodPost, srv.URL+"/annotations", map[string]any{
		"documentPath": "a.md",
		"selectedText": "Alpha",
		"note":         "title",
		"startOffset":  2,
		"endOffset":    7,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}
	ann := decode[models.Annotation](t, resp)
	if ann.ID == "" || ann.Color != models.ColorYellow {
		t.Errorf("ann = %+v", ann)
	}

	// Out-of-range offsets are a validation failure.
	resp = doJSON(t, http.MethodPost, srv.URL+"/annotations", map[string]any{
		"documentPath": "a.md",
		"selectedText": "x",
		"startOffset":  0,
		"endOffset":    100000,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad offsets: status %d, want 400", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPut, srv.URL+"/annotations/"+ann.ID, map[string]any{
		"color": models.ColorGreen,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status %d", resp.StatusCode)
	}
	updated := decode[models.Annotation](t, resp)
	if updated.Color != models.ColorGreen || updated.Note != "title" {
		t.Errorf("updated = %+v", updated)
	}

	resp, err := http.Get(srv.URL + "/annotations?documentPath=a.md")
	if err != nil {
		t.Fatal(err)
	}
	anns := decode[[]models.Annotation](t, resp)
	if len(anns) != 1 {
		t.Errorf("anns = %+v", anns)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/annotations/"+ann.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: status %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/annotations/" + ann.ID)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: status %d", resp.StatusCode)
	}
}

func TestCollectionEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	putDocument(t, srv, "a.md", "# A")
	putDocument(t, srv, "b.md", "# B")

	resp := doJSON(t, http.MethodPost, srv.URL+"/collections", map[string]string{
		"name": "Reading", "description": "to read",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}
	col := decode[models.Collection](t, resp)

	// Duplicate name conflicts.
	resp = doJSON(t, http.MethodPost, srv.URL+"/collections", map[string]string{"name": "Reading"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate: status %d, want 409", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/collections/"+col.ID+"/documents", map[string]string{
		"documentPath": "a.md",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("add member: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/collections/"+col.ID+"/documents/bulk", map[string]any{
		"action":        "add",
		"documentPaths": []string{"a.md", "b.md"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bulk: status %d", resp.StatusCode)
	}
	bulk := decode[docservice.BulkMembershipResult](t, resp)
	if bulk.Added != 1 {
		t.Errorf("bulk added = %d, want 1 (a.md already a member)", bulk.Added)
	}

	resp, err := http.Get(srv.URL + "/collections/" + col.ID)
	if err != nil {
		t.Fatal(err)
	}
	got := decode[models.Collection](t, resp)
	if got.DocumentCount != 2 {
		t.Errorf("count = %d", got.DocumentCount)
	}

	resp, err = http.Get(srv.URL + "/collections/" + col.ID + "/documents")
	if err != nil {
		t.Fatal(err)
	}
	items := decode[[]models.DocumentListItem](t, resp)
	if len(items) != 2 {
		t.Errorf("items = %+v", items)
	}

	resp, err = http.Get(srv.URL + "/document/collections?path=a.md")
	if err != nil {
		t.Fatal(err)
	}
	cols := decode[[]models.Collection](t, resp)
	if len(cols) != 1 || cols[0].ID != col.ID {
		t.Errorf("cols = %+v", cols)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/collections/"+col.ID+"/documents?documentPath=a.md", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("remove member: status %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/collections/"+col.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete collection: status %d", resp.StatusCode)
	}
}

func TestRescanEndpoint_NoCoordinator(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/index", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status %d, want 503", resp.StatusCode)
	}
}

func TestUploadEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "uploaded.md")
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprint(fw, "# Uploaded\n\nbody")
	mw.Close()

	resp, err := http.Post(srv.URL+"/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status %d", resp.StatusCode)
	}
	doc := decode[models.Document](t, resp)
	if doc.Path != "uploaded.md" || doc.Title != "Uploaded" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestUploadEndpoint_BadNames(t *testing.T) {
	srv, _ := newTestServer(t)

	// The multipart reader strips forward-slash path components from the
	// filename, so traversal arrives as backslash paths or stays in the name.
	for _, name := range []string{`..\..\escape.md`, "payload.exe"} {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprint(fw, "# Bad")
		mw.Close()

		resp, err := http.Post(srv.URL+"/upload", mw.FormDataContentType(), &buf)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", name, resp.StatusCode)
		}
	}
}

func TestUploadMultipleEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range []struct{ name, content string }{
		{"one.md", "# One"},
		{"two.bin", "binary"},
		{"three.md", "# Three"},
	} {
		fw, err := mw.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprint(fw, f.content)
	}
	mw.Close()

	resp, err := http.Post(srv.URL+"/upload/multiple", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	body := decode[struct {
		Uploads []struct {
			Filename string           `json:"filename"`
			Document *models.Document `json:"document"`
			Error    string           `json:"error"`
		} `json:"uploads"`
	}](t, resp)
	if len(body.Uploads) != 3 {
		t.Fatalf("uploads = %+v", body.Uploads)
	}
	// The bad file is reported alongside the successes, not instead of them.
	if body.Uploads[0].Document == nil || body.Uploads[2].Document == nil {
		t.Error("valid files not indexed")
	}
	if body.Uploads[1].Error == "" {
		t.Error("invalid file should carry an error")
	}
}

func TestAuthMiddleware(t *testing.T) {
	_, store := testutil.TestLibrary(t)
	svc := docservice.NewService(store, testutil.TestDB(t))
	srv := httptest.NewServer(NewRouter(svc, nil, true, "secret-token", nil))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/tags")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/tags", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token: status %d, want 401", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/tags", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid token: status %d, want 200", resp.StatusCode)
	}
}

func TestListParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/search?tags=go,web&tags=cli", nil)
	got := listParam(req, "tags")
	want := "go web cli"
	if strings.Join(got, " ") != want {
		t.Errorf("listParam = %v, want %q", got, want)
	}
}
