package index

import (
	"errors"
	"testing"

	"github.com/lectern/lectern/internal/apperr"
	"github.com/lectern/lectern/internal/models"
)

func TestCreateCollection_DuplicateName(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.CreateCollection(models.Collection{ID: "c1", Name: "Reading"}); err != nil {
		t.Fatal(err)
	}
	_, err := db.CreateCollection(models.Collection{ID: "c2", Name: "Reading"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	// The failed create must not leave a row behind.
	cols, err := db.ListCollections()
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 1 {
		t.Errorf("collections = %+v", cols)
	}
}

func TestCollection_DocumentCount(t *testing.T) {
	db := newTestDB(t)

	for _, p := range []string{"a.md", "b.md"} {
		if err := db.UpsertDocument(testDoc(p)); err != nil {
			t.Fatal(err)
		}
	}
	col, err := db.CreateCollection(models.Collection{ID: "c1", Name: "Reading"})
	if err != nil {
		t.Fatal(err)
	}
	if col.DocumentCount != 0 {
		t.Errorf("fresh collection count = %d", col.DocumentCount)
	}

	added, _, err := db.ChangeCollectionMembers("c1", []string{"a.md", "b.md"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}

	got, err := db.GetCollection("c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.DocumentCount != 2 {
		t.Errorf("count = %d, want 2", got.DocumentCount)
	}
}

func TestCollectionMembership_Idempotent(t *testing.T) {
	db := newTestDB(t)

	if err := db.UpsertDocument(testDoc("a.md")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateCollection(models.Collection{ID: "c1", Name: "Reading"}); err != nil {
		t.Fatal(err)
	}

	if err := db.AddDocumentToCollection("a.md", "c1"); err != nil {
		t.Fatal(err)
	}
	// Adding again is a no-op, not an error.
	if err := db.AddDocumentToCollection("a.md", "c1"); err != nil {
		t.Fatalf("repeat add: %v", err)
	}
	got, err := db.GetCollection("c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.DocumentCount != 1 {
		t.Errorf("count = %d, want 1", got.DocumentCount)
	}

	if err := db.RemoveDocumentFromCollection("a.md", "c1"); err != nil {
		t.Fatal(err)
	}
	// Removing a non-member is a no-op as well.
	if err := db.RemoveDocumentFromCollection("a.md", "c1"); err != nil {
		t.Fatalf("repeat remove: %v", err)
	}
}

func TestChangeCollectionMembers_BadPathAbortsBatch(t *testing.T) {
	db := newTestDB(t)

	if err := db.UpsertDocument(testDoc("good.md")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateCollection(models.Collection{ID: "c1", Name: "Reading"}); err != nil {
		t.Fatal(err)
	}

	_, _, err := db.ChangeCollectionMembers("c1", []string{"good.md", "missing.md"}, nil)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// The whole batch rolls back, including the valid path.
	got, err := db.GetCollection("c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.DocumentCount != 0 {
		t.Errorf("partial batch applied: count = %d", got.DocumentCount)
	}

	_, _, err = db.ChangeCollectionMembers("missing-collection", []string{"good.md"}, nil)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing collection: err = %v", err)
	}
}

func TestUpdateCollection(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.CreateCollection(models.Collection{ID: "c1", Name: "Reading"}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateCollection(models.Collection{ID: "c2", Name: "Archive"}); err != nil {
		t.Fatal(err)
	}

	desc := "things to read"
	got, err := db.UpdateCollection("c1", nil, &desc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Reading" || got.Description != "things to read" {
		t.Errorf("partial update: %+v", got)
	}

	name := "Archive"
	if _, err := db.UpdateCollection("c1", &name, nil, nil); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("rename onto taken name: err = %v, want ErrConflict", err)
	}
}

func TestDeleteCollection_KeepsDocuments(t *testing.T) {
	db := newTestDB(t)

	if err := db.UpsertDocument(testDoc("a.md")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateCollection(models.Collection{ID: "c1", Name: "Reading"}); err != nil {
		t.Fatal(err)
	}
	if err := db.AddDocumentToCollection("a.md", "c1"); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteCollection("c1"); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteCollection("c1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: err = %v", err)
	}

	// Deleting a collection never touches the documents themselves.
	if _, err := db.GetDocument("a.md"); err != nil {
		t.Errorf("document lost with collection: %v", err)
	}
	cols, err := db.GetDocumentCollections("a.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 0 {
		t.Errorf("stale memberships: %+v", cols)
	}
}

func TestListCollectionDocuments(t *testing.T) {
	db := newTestDB(t)

	for _, p := range []string{"a.md", "b.md"} {
		if err := db.UpsertDocument(testDoc(p)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.CreateCollection(models.Collection{ID: "c1", Name: "Reading"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := db.ChangeCollectionMembers("c1", []string{"a.md", "b.md"}, nil); err != nil {
		t.Fatal(err)
	}

	items, err := db.ListCollectionDocuments("c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	for _, item := range items {
		if len(item.Tags) == 0 {
			t.Errorf("tags not attached for %s", item.Path)
		}
	}

	if _, err := db.ListCollectionDocuments("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing collection: err = %v", err)
	}
}
