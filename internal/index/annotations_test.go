package index

import (
	"errors"
	"testing"

	"github.com/lectern/lectern/internal/apperr"
	"github.com/lectern/lectern/internal/models"
)

func TestCreateAnnotation(t *testing.T) {
	db := newTestDB(t)

	doc := testDoc("a.md")
	doc.RawContent = "0123456789" // length 10
	if err := db.UpsertDocument(doc); err != nil {
		t.Fatal(err)
	}

	got, err := db.CreateAnnotation(models.Annotation{
		ID: "ann-1", DocumentPath: "a.md", SelectedText: "234",
		Note: "important", StartOffset: 2, EndOffset: 5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Color != models.ColorYellow {
		t.Errorf("default color = %q", got.Color)
	}
	if got.CreatedAt == 0 || got.UpdatedAt != got.CreatedAt {
		t.Errorf("timestamps: created=%d updated=%d", got.CreatedAt, got.UpdatedAt)
	}
}

func TestCreateAnnotation_Validation(t *testing.T) {
	db := newTestDB(t)

	doc := testDoc("a.md")
	doc.RawContent = "0123456789"
	if err := db.UpsertDocument(doc); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name       string
		start, end int
		want       error
	}{
		{"negative start", -1, 3, apperr.ErrValidation},
		{"end before start", 5, 5, apperr.ErrValidation},
		{"end beyond content", 0, 11, apperr.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := db.CreateAnnotation(models.Annotation{
				ID: "ann-" + tc.name, DocumentPath: "a.md",
				StartOffset: tc.start, EndOffset: tc.end,
			})
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}

	_, err := db.CreateAnnotation(models.Annotation{
		ID: "ann-x", DocumentPath: "missing.md", StartOffset: 0, EndOffset: 1,
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing document: err = %v, want ErrNotFound", err)
	}
}

func TestCreateAnnotation_FullSpan(t *testing.T) {
	db := newTestDB(t)

	doc := testDoc("a.md")
	doc.RawContent = "0123456789"
	if err := db.UpsertDocument(doc); err != nil {
		t.Fatal(err)
	}

	// end == content length is the inclusive upper bound.
	if _, err := db.CreateAnnotation(models.Annotation{
		ID: "ann-full", DocumentPath: "a.md", StartOffset: 0, EndOffset: 10,
	}); err != nil {
		t.Fatalf("full span rejected: %v", err)
	}
}

func TestUpdateAnnotation(t *testing.T) {
	db := newTestDB(t)

	if err := db.UpsertDocument(testDoc("a.md")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateAnnotation(models.Annotation{
		ID: "ann-1", DocumentPath: "a.md", Note: "original",
		StartOffset: 1, EndOffset: 4,
	}); err != nil {
		t.Fatal(err)
	}

	note := "revised"
	got, err := db.UpdateAnnotation("ann-1", &note, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Note != "revised" {
		t.Errorf("note = %q", got.Note)
	}
	if got.Color != models.ColorYellow {
		t.Errorf("nil color changed the field: %q", got.Color)
	}
	if got.StartOffset != 1 || got.EndOffset != 4 {
		t.Errorf("offsets changed: [%d,%d)", got.StartOffset, got.EndOffset)
	}

	color := models.ColorGreen
	got, err = db.UpdateAnnotation("ann-1", nil, &color)
	if err != nil {
		t.Fatal(err)
	}
	if got.Note != "revised" || got.Color != models.ColorGreen {
		t.Errorf("partial update: note=%q color=%q", got.Note, got.Color)
	}

	if _, err := db.UpdateAnnotation("missing", &note, nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteAnnotation(t *testing.T) {
	db := newTestDB(t)

	if err := db.UpsertDocument(testDoc("a.md")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateAnnotation(models.Annotation{
		ID: "ann-1", DocumentPath: "a.md", StartOffset: 0, EndOffset: 2,
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteAnnotation("ann-1"); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteAnnotation("ann-1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestListAnnotationsForDocument_Order(t *testing.T) {
	db := newTestDB(t)

	doc := testDoc("a.md")
	doc.RawContent = "a longer body of raw content"
	if err := db.UpsertDocument(doc); err != nil {
		t.Fatal(err)
	}
	for _, a := range []models.Annotation{
		{ID: "ann-late", DocumentPath: "a.md", StartOffset: 10, EndOffset: 14},
		{ID: "ann-early", DocumentPath: "a.md", StartOffset: 2, EndOffset: 6},
	} {
		if _, err := db.CreateAnnotation(a); err != nil {
			t.Fatal(err)
		}
	}

	anns, err := db.ListAnnotationsForDocument("a.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(anns) != 2 || anns[0].ID != "ann-early" || anns[1].ID != "ann-late" {
		t.Errorf("order = %+v", anns)
	}

	anns, err = db.ListAnnotationsForDocument("unannotated.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(anns) != 0 {
		t.Errorf("expected empty slice, got %+v", anns)
	}
}
