// Package state holds the in-memory ledger of the primary process.
//
// All mutation runs on one goroutine owned by Ledger; callers on other goroutines hand their
// changes to it and read back deep copies. Subscribers are told about every change.
package state

import (
	"errors"
	"sync"

	"github.com/mmynk/splitbill/internal/models"
)

// ErrClosed is returned by operations on a closed Ledger.
var ErrClosed = errors.New("ledger closed")

// Field names one part of the snapshot.
type Field string

const (
	FieldCurrentUser Field = "currentUser"
	FieldExpenses    Field = "expenses"
	FieldFriends     Field = "friends"
)

// Change is delivered to subscribers after every mutation.
type Change struct {
	Field    Field
	Snapshot models.Snapshot

	// Ready is true once every field has been populated by a completed fetch.
	Ready bool
}

type ledgerState struct {
	snap   models.Snapshot
	loaded map[Field]bool
	subs   map[int]chan Change
	nextID int
}

func (s *ledgerState) ready() bool {
	return s.loaded[FieldCurrentUser] && s.loaded[FieldExpenses] && s.loaded[FieldFriends]
}

// Ledger is the owner of the in-memory snapshot.
type Ledger struct {
	cmds      chan func(*ledgerState)
	done      chan struct{}
	closeOnce sync.Once
}

// New starts the ledger goroutine. Call Close to stop it.
func New() *Ledger {
	l := &Ledger{
		cmds: make(chan func(*ledgerState)),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Ledger) run() {
	s := &ledgerState{
		loaded: make(map[Field]bool, 3),
		subs:   make(map[int]chan Change),
	}
	for {
		select {
		case cmd := <-l.cmds:
			cmd(s)
		case <-l.done:
			for _, ch := range s.subs {
				close(ch)
			}
			return
		}
	}
}

// do runs fn on the ledger goroutine and waits for it.
func (l *Ledger) do(fn func(*ledgerState)) error {
	finished := make(chan struct{})
	select {
	case l.cmds <- func(s *ledgerState) { fn(s); close(finished) }:
	case <-l.done:
		return ErrClosed
	}
	<-finished
	return nil
}

// Close stops the ledger and closes every subscription.
func (l *Ledger) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

// mutate applies fn, marks field loaded when asked to, and notifies subscribers.
func (l *Ledger) mutate(field Field, load bool, fn func(*models.Snapshot)) error {
	return l.do(func(s *ledgerState) {
		fn(&s.snap)
		if load {
			s.loaded[field] = true
		}
		change := Change{Field: field, Snapshot: s.snap.Clone(), Ready: s.ready()}
		for _, ch := range s.subs {
			notify(ch, change)
		}
	})
}

// notify keeps only the latest change for a slow subscriber. The ledger goroutine is the only sender.
func notify(ch chan Change, c Change) {
	select {
	case ch <- c:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- c
}

// SetCurrentUser records the result of resolving the session user. nil means no user was resolved.
func (l *Ledger) SetCurrentUser(user *models.Participant) error {
	return l.mutate(FieldCurrentUser, true, func(s *models.Snapshot) {
		if user == nil {
			s.CurrentUser = nil
			return
		}
		u := *user
		s.CurrentUser = &u
	})
}

// SetExpenses replaces the expenses with the result of a completed fetch.
func (l *Ledger) SetExpenses(expenses []models.Expense) error {
	return l.mutate(FieldExpenses, true, func(s *models.Snapshot) {
		s.Expenses = models.Snapshot{Expenses: nonNil(expenses)}.Clone().Expenses
	})
}

// SetFriends replaces the friends with the result of a completed fetch.
func (l *Ledger) SetFriends(friends []models.Participant) error {
	return l.mutate(FieldFriends, true, func(s *models.Snapshot) {
		s.Friends = append([]models.Participant{}, friends...)
	})
}

// AddExpense appends a confirmed expense.
func (l *Ledger) AddExpense(e models.Expense) error {
	added := models.Snapshot{Expenses: []models.Expense{e}}.Clone().Expenses[0]
	return l.mutate(FieldExpenses, false, func(s *models.Snapshot) {
		s.Expenses = append(s.Expenses, added)
	})
}

// RemoveExpense drops the expense with the given ID.
func (l *Ledger) RemoveExpense(id string) error {
	return l.mutate(FieldExpenses, false, func(s *models.Snapshot) {
		kept := make([]models.Expense, 0, len(s.Expenses))
		for _, e := range s.Expenses {
			if e.ID != id {
				kept = append(kept, e)
			}
		}
		s.Expenses = kept
	})
}

// AddFriend appends a confirmed friend.
func (l *Ledger) AddFriend(p models.Participant) error {
	return l.mutate(FieldFriends, false, func(s *models.Snapshot) {
		s.Friends = append(s.Friends, p)
	})
}

// RemoveFriend drops the friend resolved through the given friendship edge.
func (l *Ledger) RemoveFriend(edgeID string) error {
	return l.mutate(FieldFriends, false, func(s *models.Snapshot) {
		kept := make([]models.Participant, 0, len(s.Friends))
		for _, f := range s.Friends {
			if f.FriendshipID != edgeID {
				kept = append(kept, f)
			}
		}
		s.Friends = kept
	})
}

// Reset clears everything, including readiness. Used on logout.
func (l *Ledger) Reset() error {
	return l.do(func(s *ledgerState) {
		s.snap = models.Snapshot{}
		clear(s.loaded)
		change := Change{Field: FieldCurrentUser, Snapshot: models.Snapshot{}, Ready: false}
		for _, ch := range s.subs {
			notify(ch, change)
		}
	})
}

// Snapshot returns a copy of the current ledger and whether it is ready to replicate.
func (l *Ledger) Snapshot() (models.Snapshot, bool) {
	var snap models.Snapshot
	var ready bool
	err := l.do(func(s *ledgerState) {
		snap = s.snap.Clone()
		ready = s.ready()
	})
	if err != nil {
		return models.Snapshot{}, false
	}
	return snap, ready
}

// Ready reports whether every field has completed at least one fetch.
func (l *Ledger) Ready() bool {
	_, ready := l.Snapshot()
	return ready
}

// Subscribe returns a channel receiving the latest change. Slow readers only see the most recent one.
// The channel is closed by cancel or by Close.
func (l *Ledger) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 1)
	var id int
	if err := l.do(func(s *ledgerState) {
		id = s.nextID
		s.nextID++
		s.subs[id] = ch
	}); err != nil {
		close(ch)
		return ch, func() {}
	}

	cancel := func() {
		_ = l.do(func(s *ledgerState) {
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

func nonNil(expenses []models.Expense) []models.Expense {
	if expenses == nil {
		return []models.Expense{}
	}
	return expenses
}
