// Package session carries the identity of the logged-in user.
//
// A Context is built once (from the persisted local session, or from a validated request token)
// and passed explicitly to every ledger operation that needs to know who is asking.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmynk/splitbill/internal/docstore"
)

// ErrLoggedOut means no session user is available.
var ErrLoggedOut = errors.New("no active session")

// Context identifies the user on whose behalf the ledger is read or written.
type Context struct {
	UserID string
}

// New returns a Context for userID.
func New(userID string) (Context, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Context{}, ErrLoggedOut
	}
	return Context{UserID: userID}, nil
}

// UserRef is the stored reference to the session user's User document.
func (c Context) UserRef() docstore.Ref {
	return docstore.RefTo(docstore.Users, c.UserID)
}

// Provider is the persisted local session state.
type Provider interface {
	// CurrentSessionUserID returns the stored user ID, or false when logged out.
	CurrentSessionUserID() (string, bool)

	// Clear logs the user out.
	Clear() error
}

// FromProvider builds a Context from the persisted session.
func FromProvider(p Provider) (Context, error) {
	id, ok := p.CurrentSessionUserID()
	if !ok {
		return Context{}, ErrLoggedOut
	}
	return New(id)
}

// FileProvider keeps the session user ID in a single file. A missing or empty file means logged out.
type FileProvider struct {
	path string
}

// NewFileProvider returns a provider backed by path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// CurrentSessionUserID reads the stored user ID.
func (p *FileProvider) CurrentSessionUserID() (string, bool) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return "", false
	}
	id := strings.TrimSpace(string(data))
	return id, id != ""
}

// Save stores userID as the current session.
func (p *FileProvider) Save(userID string) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(userID+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Clear removes the stored session.
func (p *FileProvider) Clear() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

type contextKey struct{}

// WithContext attaches sc to ctx for request-scoped handlers.
func WithContext(ctx context.Context, sc Context) context.Context {
	return context.WithValue(ctx, contextKey{}, sc)
}

// FromContext returns the Context attached by WithContext.
func FromContext(ctx context.Context) (Context, bool) {
	sc, ok := ctx.Value(contextKey{}).(Context)
	return sc, ok && sc.UserID != ""
}
