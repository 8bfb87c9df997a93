package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitbill/internal/models"
)

func receive(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return c
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
		return Change{}
	}
}

func TestLedger_Readiness(t *testing.T) {
	l := New()
	defer l.Close()

	assert.False(t, l.Ready())

	require.NoError(t, l.SetCurrentUser(nil))
	require.NoError(t, l.SetExpenses(nil))
	assert.False(t, l.Ready(), "friends never fetched")

	// Adding to an unfetched list does not count as a fetch.
	require.NoError(t, l.AddFriend(models.Participant{ID: "bob", FriendshipID: "e1"}))
	assert.False(t, l.Ready())

	require.NoError(t, l.SetFriends(nil))
	assert.True(t, l.Ready(), "empty results of completed fetches are ready")

	snap, ready := l.Snapshot()
	assert.True(t, ready)
	assert.Nil(t, snap.CurrentUser)
	assert.NotNil(t, snap.Expenses)
	assert.NotNil(t, snap.Friends)

	require.NoError(t, l.Reset())
	assert.False(t, l.Ready())
}

func TestLedger_Mutations(t *testing.T) {
	l := New()
	defer l.Close()

	alice := models.Participant{ID: "alice", Name: "Alice"}
	require.NoError(t, l.SetCurrentUser(&alice))
	alice.Name = "changed after the fact"

	require.NoError(t, l.SetExpenses([]models.Expense{{ID: "x1"}, {ID: "x2"}}))
	require.NoError(t, l.AddExpense(models.Expense{ID: "x3"}))
	require.NoError(t, l.RemoveExpense("x1"))

	require.NoError(t, l.SetFriends([]models.Participant{
		{ID: "bob", FriendshipID: "e1"},
		{ID: "bob", FriendshipID: "e2"},
	}))
	require.NoError(t, l.RemoveFriend("e1"))

	snap, _ := l.Snapshot()
	require.NotNil(t, snap.CurrentUser)
	assert.Equal(t, "Alice", snap.CurrentUser.Name)
	assert.Equal(t, []models.Expense{{ID: "x2"}, {ID: "x3"}}, snap.Expenses)
	assert.Equal(t, []models.Participant{{ID: "bob", FriendshipID: "e2"}}, snap.Friends)

	// Snapshots are copies.
	snap.Expenses[0].ID = "mutated"
	again, _ := l.Snapshot()
	assert.Equal(t, "x2", again.Expenses[0].ID)
}

func TestLedger_Subscribe(t *testing.T) {
	l := New()
	defer l.Close()

	changes, cancel := l.Subscribe()

	require.NoError(t, l.SetCurrentUser(&models.Participant{ID: "alice"}))
	c := receive(t, changes)
	assert.Equal(t, FieldCurrentUser, c.Field)
	assert.False(t, c.Ready)

	require.NoError(t, l.SetExpenses(nil))
	require.NoError(t, l.SetFriends(nil))

	// A slow subscriber only sees the latest change.
	c = receive(t, changes)
	assert.Equal(t, FieldFriends, c.Field)
	assert.True(t, c.Ready)

	cancel()
	_, ok := <-changes
	assert.False(t, ok, "cancel closes the channel")
}

func TestLedger_ConcurrentWriters(t *testing.T) {
	l := New()
	defer l.Close()
	require.NoError(t, l.SetExpenses(nil))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.AddExpense(models.Expense{ID: "x"})
		}()
	}
	wg.Wait()

	snap, _ := l.Snapshot()
	assert.Len(t, snap.Expenses, 50)
}

func TestLedger_Closed(t *testing.T) {
	l := New()
	changes, _ := l.Subscribe()
	l.Close()
	l.Close()

	_, ok := <-changes
	assert.False(t, ok)
	assert.ErrorIs(t, l.SetFriends(nil), ErrClosed)
	assert.False(t, l.Ready())
}
