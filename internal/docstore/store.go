// Package docstore provides abstractions for the remote document store.
//
// Documents live in named collections and are addressed by a store-assigned ID.
// Each document write is atomic on its own; nothing spans documents except BatchDelete.
package docstore

import (
	"context"
	"errors"
	"strings"
)

// Collection names used by the ledger.
const (
	Users          = "User"
	Friends        = "Friends"
	Expenses       = "Expense"
	Participations = "ExpenseParticipations"
)

// ErrNotFound is returned by Get when the document does not exist.
var ErrNotFound = errors.New("document not found")

// Fields is the raw, schema-less content of a document.
type Fields map[string]any

// Document is one stored record.
type Document struct {
	Collection string
	ID         string
	Fields     Fields
}

// Key identifies a document for deletion.
func (d Document) Key() Key {
	return Key{Collection: d.Collection, ID: d.ID}
}

// Key addresses a single document.
type Key struct {
	Collection string
	ID         string
}

// Ref is a stored reference to another document, encoded as "<collection>/<id>".
type Ref string

// RefTo builds a reference to the document id in collection.
func RefTo(collection, id string) Ref {
	return Ref(collection + "/" + id)
}

// ID returns the referenced document ID, or "" when the reference is malformed.
func (r Ref) ID() string {
	_, id, ok := strings.Cut(string(r), "/")
	if !ok {
		return ""
	}
	return id
}

// Collection returns the referenced collection name.
func (r Ref) Collection() string {
	c, _, _ := strings.Cut(string(r), "/")
	return c
}

// Store defines the document operations the ledger relies on.
// This abstraction allows swapping backends (SQLite, MongoDB) without changing the ledger.
type Store interface {
	// Query returns every document in collection whose field equals value, in store order.
	Query(ctx context.Context, collection, field string, value any) ([]Document, error)

	// Get returns the document with the given ID, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Set writes fields to the document with the given ID, replacing it.
	// An empty id lets the store assign one. The resulting ID is returned.
	Set(ctx context.Context, collection, id string, fields Fields) (string, error)

	// Add creates a new document with a store-assigned ID.
	Add(ctx context.Context, collection string, fields Fields) (string, error)

	// Delete removes one document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// BatchDelete removes all keys as a single unit: either every document is gone or none is.
	BatchDelete(ctx context.Context, keys []Key) error

	// Close releases any resources held by the store.
	Close() error
}
