package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/splitbill/internal/docstore"
	"github.com/mmynk/splitbill/internal/models"
	"github.com/mmynk/splitbill/internal/records"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmailExists        = errors.New("email already registered")
)

// PasswordAuthenticator implements password-based authentication using bcrypt.
// Accounts are stored as User documents; the hash sits next to the profile fields.
type PasswordAuthenticator struct {
	store docstore.Store
}

// NewPasswordAuthenticator creates a new password-based authenticator.
func NewPasswordAuthenticator(store docstore.Store) *PasswordAuthenticator {
	return &PasswordAuthenticator{
		store: store,
	}
}

// ValidateCredential checks if the password meets minimum requirements.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// Register creates a new user account with a hashed password.
func (a *PasswordAuthenticator) Register(ctx context.Context, reg Registration) (models.Participant, error) {
	if err := a.ValidateCredential(reg.Credential); err != nil {
		return models.Participant{}, err
	}

	email := strings.TrimSpace(reg.Email)
	existing, err := a.store.Query(ctx, docstore.Users, records.FieldEmail, email)
	if err != nil {
		return models.Participant{}, fmt.Errorf("failed to look up email: %w", err)
	}
	if len(existing) > 0 {
		return models.Participant{}, ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(reg.Credential), bcrypt.DefaultCost)
	if err != nil {
		return models.Participant{}, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := a.store.Add(ctx, docstore.Users, records.UserFields(reg.Name, email, reg.PhoneNumber, string(hashedPassword)))
	if err != nil {
		return models.Participant{}, fmt.Errorf("failed to create user: %w", err)
	}

	return models.Participant{
		ID:          id,
		Name:        reg.Name,
		PhoneNumber: reg.PhoneNumber,
		Email:       email,
	}, nil
}

// Authenticate verifies the email and password, returning the user if valid.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, credential string) (models.Participant, error) {
	docs, err := a.store.Query(ctx, docstore.Users, records.FieldEmail, strings.TrimSpace(email))
	if err != nil || len(docs) == 0 {
		return models.Participant{}, ErrInvalidCredentials
	}
	doc := docs[0]

	hash, _ := doc.Fields[records.FieldPasswordHash].(string)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)); err != nil {
		return models.Participant{}, ErrInvalidCredentials
	}

	return records.DecodeUser(&doc)
}
