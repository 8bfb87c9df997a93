package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmynk/splitbill/internal/ledger"
	"github.com/mmynk/splitbill/internal/models"
	"github.com/mmynk/splitbill/internal/session"
	"github.com/mmynk/splitbill/internal/state"
)

// Sessions persists which user this process works for.
type Sessions interface {
	session.Provider
	Save(userID string) error
}

// Workspace keeps the in-memory ledger of the session user in step with the store.
// Requests from other users are served but never touch the in-memory ledger.
type Workspace struct {
	engine   *ledger.Engine
	state    *state.Ledger
	sessions Sessions
	log      *slog.Logger

	mu sync.Mutex // serializes Begin/End/Restore
}

// NewWorkspace creates a Workspace over st.
func NewWorkspace(engine *ledger.Engine, st *state.Ledger, sessions Sessions, log *slog.Logger) *Workspace {
	if log == nil {
		log = slog.Default()
	}
	return &Workspace{engine: engine, state: st, sessions: sessions, log: log}
}

// State returns the in-memory ledger.
func (w *Workspace) State() *state.Ledger {
	return w.state
}

// Owner returns the session user.
func (w *Workspace) Owner() (session.Context, bool) {
	sc, err := session.FromProvider(w.sessions)
	return sc, err == nil
}

func (w *Workspace) owns(sc session.Context) bool {
	owner, ok := w.Owner()
	return ok && owner.UserID == sc.UserID
}

// Restore loads the ledger of the persisted session user, if any.
func (w *Workspace) Restore(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	sc, err := session.FromProvider(w.sessions)
	if errors.Is(err, session.ErrLoggedOut) {
		w.log.Info("No session to restore")
		return nil
	}
	if err != nil {
		return err
	}
	return w.load(ctx, sc)
}

// Begin makes userID the session user and loads their ledger.
func (w *Workspace) Begin(ctx context.Context, userID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	sc, err := session.New(userID)
	if err != nil {
		return err
	}
	if err := w.sessions.Save(sc.UserID); err != nil {
		return err
	}
	if err := w.state.Reset(); err != nil {
		return err
	}
	return w.load(ctx, sc)
}

// End logs the session user out and empties the ledger.
func (w *Workspace) End() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.sessions.Clear(); err != nil {
		return err
	}
	return w.state.Reset()
}

func (w *Workspace) load(ctx context.Context, sc session.Context) error {
	user, err := w.engine.ResolveCurrentUser(ctx, sc)
	if err != nil {
		return fmt.Errorf("failed to load session user: %w", err)
	}

	var (
		wg       sync.WaitGroup
		expenses []models.Expense
		friends  []models.Participant
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		expenses = w.engine.ReconstructExpenses(ctx, sc)
	}()
	go func() {
		defer wg.Done()
		friends = w.engine.LoadFriends(ctx, sc)
	}()
	wg.Wait()

	if err := w.state.SetCurrentUser(&user); err != nil {
		return err
	}
	if err := w.state.SetExpenses(expenses); err != nil {
		return err
	}
	if err := w.state.SetFriends(friends); err != nil {
		return err
	}

	w.log.Info("Ledger loaded", "user_id", sc.UserID, "expenses", len(expenses), "friends", len(friends))
	return nil
}

// reflect applies fn to the in-memory ledger when sc is the session user.
func (w *Workspace) reflect(sc session.Context, fn func(*state.Ledger) error) {
	if w == nil || !w.owns(sc) {
		return
	}
	if err := fn(w.state); err != nil {
		w.log.Warn("Failed to update in-memory ledger", "user_id", sc.UserID, "error", err)
	}
}
