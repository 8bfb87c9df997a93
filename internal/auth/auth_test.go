package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/splitbill/internal/docstore"
	"github.com/mmynk/splitbill/internal/docstore/sqlite"
	"github.com/mmynk/splitbill/internal/models"
	"github.com/mmynk/splitbill/internal/records"
)

func TestPasswordAuthenticator(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	a := NewPasswordAuthenticator(store)

	var registered models.Participant

	t.Run("Register writes a User document", func(t *testing.T) {
		registered, err = a.Register(ctx, Registration{
			Email:       "alice@example.com",
			Name:        "Alice",
			PhoneNumber: "555-0100",
			Credential:  "correct horse",
		})
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if registered.ID == "" {
			t.Fatal("Expected user ID to be assigned")
		}

		doc, err := store.Get(ctx, docstore.Users, registered.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if doc.Fields[records.FieldName] != "Alice" {
			t.Errorf("Name = %v, want Alice", doc.Fields[records.FieldName])
		}
		if doc.Fields[records.FieldPasswordHash] == "correct horse" {
			t.Error("Password stored in plain text")
		}
	})

	t.Run("Register rejects duplicate email", func(t *testing.T) {
		_, err := a.Register(ctx, Registration{Email: "alice@example.com", Name: "Other", Credential: "password123"})
		if !errors.Is(err, ErrEmailExists) {
			t.Errorf("Expected ErrEmailExists, got %v", err)
		}
	})

	t.Run("Register rejects weak password", func(t *testing.T) {
		_, err := a.Register(ctx, Registration{Email: "bob@example.com", Name: "Bob", Credential: "short"})
		if !errors.Is(err, ErrWeakPassword) {
			t.Errorf("Expected ErrWeakPassword, got %v", err)
		}
	})

	t.Run("Authenticate succeeds with correct password", func(t *testing.T) {
		user, err := a.Authenticate(ctx, "alice@example.com", "correct horse")
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if user.ID != registered.ID {
			t.Errorf("ID = %s, want %s", user.ID, registered.ID)
		}
		if user.PhoneNumber != "555-0100" {
			t.Errorf("PhoneNumber = %s, want 555-0100", user.PhoneNumber)
		}
	})

	t.Run("Authenticate fails with wrong password or unknown email", func(t *testing.T) {
		if _, err := a.Authenticate(ctx, "alice@example.com", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
		if _, err := a.Authenticate(ctx, "nobody@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("test-secret-key-32-bytes-long!!", time.Hour)
	user := models.Participant{ID: "u1", Email: "u1@example.com"}

	token, err := m.Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "u1@example.com" {
		t.Errorf("Unexpected claims: %+v", claims)
	}

	other := NewJWTManager("a-different-secret-key-entirely", time.Hour)
	if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for foreign signature, got %v", err)
	}

	expired := NewJWTManager("test-secret-key-32-bytes-long!!", -time.Minute)
	old, _ := expired.Generate(user)
	if _, err := m.Validate(old); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for expired token, got %v", err)
	}
}
