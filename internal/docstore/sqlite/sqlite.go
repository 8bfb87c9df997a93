// Package sqlite provides a SQLite-backed implementation of the docstore.Store interface.
// Documents are stored as JSON text and queried with json_extract.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/splitbill/internal/docstore"
)

// Ensure SQLiteStore implements docstore.Store
var _ docstore.Store = (*SQLiteStore)(nil)

// SQLiteStore implements docstore.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time. The ledger fans out many
	// concurrent reads and writes, so serialize them on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Query returns documents in collection whose field equals value, in insertion order.
func (s *SQLiteStore) Query(ctx context.Context, collection, field string, value any) ([]docstore.Document, error) {
	if !validField(field) {
		return nil, fmt.Errorf("invalid field name %q", field)
	}
	if ref, ok := value.(docstore.Ref); ok {
		value = string(ref)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fields FROM documents
		 WHERE collection = ? AND json_extract(fields, ?) = ?
		 ORDER BY seq`,
		collection, "$."+field, value,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
		}
		docs = append(docs, docstore.Document{Collection: collection, ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return docs, nil
}

// Get retrieves a document by ID.
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT fields FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}
	return &docstore.Document{Collection: collection, ID: id, Fields: fields}, nil
}

// Set writes fields under id, replacing any existing content.
func (s *SQLiteStore) Set(ctx context.Context, collection, id string, fields docstore.Fields) (string, error) {
	// Generate ID if not set
	if id == "" {
		id = uuid.New().String()
	}

	raw, err := encodeFields(fields)
	if err != nil {
		return "", err
	}

	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`,
		collection, id, raw, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to set document: %w", err)
	}

	return id, nil
}

// Add creates a document with a generated ID.
func (s *SQLiteStore) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	return s.Set(ctx, collection, "", fields)
}

// Delete removes a document by ID.
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// BatchDelete removes all keys in one transaction.
func (s *SQLiteStore) BatchDelete(ctx context.Context, keys []docstore.Key) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM documents WHERE collection = ? AND id = ?",
			k.Collection, k.ID,
		); err != nil {
			return fmt.Errorf("failed to delete %s/%s: %w", k.Collection, k.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func encodeFields(fields docstore.Fields) (string, error) {
	normalized := make(map[string]any, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case docstore.Ref:
			normalized[k] = string(val)
		case time.Time:
			normalized[k] = val.UTC().Format(time.RFC3339Nano)
		default:
			normalized[k] = val
		}
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("failed to encode fields: %w", err)
	}
	return string(raw), nil
}

func decodeFields(raw string) (docstore.Fields, error) {
	fields := docstore.Fields{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// validField accepts plain identifiers so field names cannot alter the JSON path.
func validField(field string) bool {
	if field == "" {
		return false
	}
	for _, r := range field {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
