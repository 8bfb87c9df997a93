// Package ledger reads and writes the expense ledger held in the document store.
//
// Expenses are normalized into a header document plus one participation fact per participant.
// Reads rebuild the aggregate with concurrent fan-out and drop unresolvable branches instead of failing;
// writes are sequenced and surface every partial failure to the caller.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mmynk/splitbill/internal/docstore"
	"github.com/mmynk/splitbill/internal/metrics"
	"github.com/mmynk/splitbill/internal/models"
	"github.com/mmynk/splitbill/internal/records"
	"github.com/mmynk/splitbill/internal/session"
)

// ImageStore uploads receipt images and returns a reference to them.
type ImageStore interface {
	Upload(ctx context.Context, image []byte) (string, error)
}

// Options configures an Engine.
type Options struct {
	// MaxConcurrentCalls bounds in-flight store calls. Zero means unbounded.
	MaxConcurrentCalls int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Images  ImageStore

	// Now stamps new headers and friendship edges. Defaults to time.Now.
	Now func() time.Time
}

// Engine runs ledger reads and writes against a document store.
// It holds no ledger state of its own and is safe for concurrent use.
type Engine struct {
	store   docstore.Store
	images  ImageStore
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	sem     chan struct{}
}

// New creates an Engine over store.
func New(store docstore.Store, opts Options) *Engine {
	e := &Engine{
		store:   store,
		images:  opts.Images,
		log:     opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if opts.MaxConcurrentCalls > 0 {
		e.sem = make(chan struct{}, opts.MaxConcurrentCalls)
	}
	return e
}

// ResolveCurrentUser loads the profile of the session user.
func (e *Engine) ResolveCurrentUser(ctx context.Context, sc session.Context) (models.Participant, error) {
	return e.profile(ctx, sc.UserID)
}

// profile is the write-path lookup: failures are returned.
func (e *Engine) profile(ctx context.Context, userID string) (models.Participant, error) {
	doc, err := e.get(ctx, docstore.Users, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return models.Participant{}, &NotFoundError{Collection: docstore.Users, ID: userID}
	}
	if err != nil {
		return models.Participant{}, &TransportError{Op: "get user", Err: err}
	}
	return records.DecodeUser(doc)
}

// resolveUser is the read-path lookup: any failure is logged and reported as unresolved.
func (e *Engine) resolveUser(ctx context.Context, userID string) (models.Participant, bool) {
	doc, err := e.get(ctx, docstore.Users, userID)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			e.log.Warn("User lookup failed", "user_id", userID, "error", err)
		}
		return models.Participant{}, false
	}
	user, err := records.DecodeUser(doc)
	if err != nil {
		e.log.Warn("User decode failed", "user_id", userID, "error", err)
		return models.Participant{}, false
	}
	return user, true
}

// The helpers below are the only places the engine touches the store.
// They hold a concurrency slot for the duration of one call and never while waiting on other work.

func (e *Engine) acquire(ctx context.Context) (func(), error) {
	if e.sem == nil {
		return func() {}, nil
	}
	select {
	case e.sem <- struct{}{}:
		return func() { <-e.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return e.store.Get(ctx, collection, id)
}

func (e *Engine) query(ctx context.Context, collection, field string, value any) ([]docstore.Document, error) {
	release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return e.store.Query(ctx, collection, field, value)
}

func (e *Engine) add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	release, err := e.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()
	return e.store.Add(ctx, collection, fields)
}

func (e *Engine) delete(ctx context.Context, collection, id string) error {
	release, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return e.store.Delete(ctx, collection, id)
}

func (e *Engine) batchDelete(ctx context.Context, keys []docstore.Key) error {
	release, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return e.store.BatchDelete(ctx, keys)
}

// Profiles loads the users with the given IDs concurrently, in the given order.
// Any missing user fails the call with *NotFoundError.
func (e *Engine) Profiles(ctx context.Context, ids []string) ([]models.Participant, error) {
	type lookup struct {
		index int
		user  models.Participant
		err   error
	}

	results := make(chan lookup, len(ids))
	for i, id := range ids {
		go func() {
			user, err := e.profile(ctx, id)
			results <- lookup{index: i, user: user, err: err}
		}()
	}

	users := make([]models.Participant, len(ids))
	var firstErr error
	for range ids {
		r := <-results
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
		users[r.index] = r.user
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return users, nil
}
