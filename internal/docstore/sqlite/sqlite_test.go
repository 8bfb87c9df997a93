package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/splitbill/internal/docstore"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("Add generates ID and Get returns fields", func(t *testing.T) {
		id, err := store.Add(ctx, docstore.Users, docstore.Fields{
			"Name":  "Alice",
			"Email": "alice@example.com",
		})
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if id == "" {
			t.Fatal("Expected ID to be generated")
		}

		doc, err := store.Get(ctx, docstore.Users, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if doc.ID != id {
			t.Errorf("ID mismatch: got %s, want %s", doc.ID, id)
		}
		if doc.Fields["Name"] != "Alice" {
			t.Errorf("Name mismatch: got %v, want Alice", doc.Fields["Name"])
		}
	})

	t.Run("Get returns ErrNotFound for nonexistent document", func(t *testing.T) {
		_, err := store.Get(ctx, docstore.Users, "nonexistent-id")
		if !errors.Is(err, docstore.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Set with explicit ID replaces content", func(t *testing.T) {
		if _, err := store.Set(ctx, docstore.Users, "u-set", docstore.Fields{"Name": "Before"}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if _, err := store.Set(ctx, docstore.Users, "u-set", docstore.Fields{"Name": "After"}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		doc, err := store.Get(ctx, docstore.Users, "u-set")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if doc.Fields["Name"] != "After" {
			t.Errorf("Name mismatch: got %v, want After", doc.Fields["Name"])
		}
	})

	t.Run("Query matches references in insertion order", func(t *testing.T) {
		expenseRef := docstore.RefTo(docstore.Expenses, "e-query")
		for _, user := range []string{"u3", "u1", "u2"} {
			_, err := store.Add(ctx, docstore.Participations, docstore.Fields{
				"ExpenseID":  expenseRef,
				"UserID":     docstore.RefTo(docstore.Users, user),
				"PaidAmount": 10.5,
			})
			if err != nil {
				t.Fatalf("Add failed: %v", err)
			}
		}
		// A fact for another expense must not match
		store.Add(ctx, docstore.Participations, docstore.Fields{
			"ExpenseID": docstore.RefTo(docstore.Expenses, "other"),
			"UserID":    docstore.RefTo(docstore.Users, "u1"),
		})

		docs, err := store.Query(ctx, docstore.Participations, "ExpenseID", expenseRef)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(docs) != 3 {
			t.Fatalf("Expected 3 documents, got %d", len(docs))
		}
		want := []string{"User/u3", "User/u1", "User/u2"}
		for i, doc := range docs {
			if doc.Fields["UserID"] != want[i] {
				t.Errorf("Document %d UserID = %v, want %s", i, doc.Fields["UserID"], want[i])
			}
			if doc.Fields["PaidAmount"] != 10.5 {
				t.Errorf("Document %d PaidAmount = %v, want 10.5", i, doc.Fields["PaidAmount"])
			}
		}
	})

	t.Run("Query rejects unsafe field names", func(t *testing.T) {
		_, err := store.Query(ctx, docstore.Users, "Name') OR 1=1 --", "x")
		if err == nil {
			t.Error("Expected error for unsafe field name")
		}
	})

	t.Run("time values are stored as RFC3339", func(t *testing.T) {
		when := time.Date(2024, 4, 13, 12, 0, 0, 0, time.UTC)
		id, err := store.Add(ctx, docstore.Friends, docstore.Fields{"FriendshipDate": when})
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		doc, _ := store.Get(ctx, docstore.Friends, id)
		if doc.Fields["FriendshipDate"] != "2024-04-13T12:00:00Z" {
			t.Errorf("FriendshipDate = %v", doc.Fields["FriendshipDate"])
		}
	})

	t.Run("BatchDelete removes every key", func(t *testing.T) {
		a, _ := store.Add(ctx, docstore.Participations, docstore.Fields{"ExpenseID": "Expense/batch"})
		b, _ := store.Add(ctx, docstore.Participations, docstore.Fields{"ExpenseID": "Expense/batch"})

		err := store.BatchDelete(ctx, []docstore.Key{
			{Collection: docstore.Participations, ID: a},
			{Collection: docstore.Participations, ID: b},
		})
		if err != nil {
			t.Fatalf("BatchDelete failed: %v", err)
		}

		docs, err := store.Query(ctx, docstore.Participations, "ExpenseID", "Expense/batch")
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(docs) != 0 {
			t.Errorf("Expected 0 documents after batch delete, got %d", len(docs))
		}
	})

	t.Run("Delete of missing document is not an error", func(t *testing.T) {
		if err := store.Delete(ctx, docstore.Expenses, "missing"); err != nil {
			t.Errorf("Delete failed: %v", err)
		}
	})
}

func TestValidField(t *testing.T) {
	tests := []struct {
		field string
		want  bool
	}{
		{"UserID", true},
		{"paid_amount", true},
		{"", false},
		{"a.b", false},
		{"a b", false},
		{"$.x", false},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			if got := validField(tt.field); got != tt.want {
				t.Errorf("validField(%q) = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}
