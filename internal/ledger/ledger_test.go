package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitbill/internal/calculator"
	"github.com/mmynk/splitbill/internal/docstore"
	"github.com/mmynk/splitbill/internal/docstore/sqlite"
	"github.com/mmynk/splitbill/internal/metrics"
	"github.com/mmynk/splitbill/internal/models"
	"github.com/mmynk/splitbill/internal/records"
	"github.com/mmynk/splitbill/internal/session"
)

var errInjected = errors.New("injected failure")

var fixedNow = time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC)

// faultStore wraps a real store and fails selected calls.
type faultStore struct {
	docstore.Store

	mu         sync.Mutex
	failGet    map[docstore.Key]bool
	failQuery  map[string]bool // collection + "." + field
	failAdd    func(collection string, fields docstore.Fields) bool
	failDelete map[string]bool // collection
	failBatch  bool

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFaultStore(inner docstore.Store) *faultStore {
	return &faultStore{
		Store:      inner,
		failGet:    map[docstore.Key]bool{},
		failQuery:  map[string]bool{},
		failDelete: map[string]bool{},
	}
}

func (f *faultStore) enter() func() {
	n := f.inFlight.Add(1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	return func() { f.inFlight.Add(-1) }
}

func (f *faultStore) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	defer f.enter()()
	f.mu.Lock()
	fail := f.failGet[docstore.Key{Collection: collection, ID: id}]
	f.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return f.Store.Get(ctx, collection, id)
}

func (f *faultStore) Query(ctx context.Context, collection, field string, value any) ([]docstore.Document, error) {
	defer f.enter()()
	f.mu.Lock()
	fail := f.failQuery[collection+"."+field]
	f.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return f.Store.Query(ctx, collection, field, value)
}

func (f *faultStore) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	defer f.enter()()
	f.mu.Lock()
	fail := f.failAdd != nil && f.failAdd(collection, fields)
	f.mu.Unlock()
	if fail {
		return "", errInjected
	}
	return f.Store.Add(ctx, collection, fields)
}

func (f *faultStore) Delete(ctx context.Context, collection, id string) error {
	f.mu.Lock()
	fail := f.failDelete[collection]
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.Store.Delete(ctx, collection, id)
}

func (f *faultStore) BatchDelete(ctx context.Context, keys []docstore.Key) error {
	f.mu.Lock()
	fail := f.failBatch
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.Store.BatchDelete(ctx, keys)
}

type fixture struct {
	ctx    context.Context
	store  *faultStore
	engine *Engine
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	inner, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { inner.Close() })

	store := newFaultStore(inner)
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	opts.Now = func() time.Time { return fixedNow }
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	f := &fixture{ctx: context.Background(), store: store, engine: New(store, opts)}
	f.user(t, "alice", "Alice", "alice@example.com", "555-0001")
	f.user(t, "bob", "Bob", "bob@example.com", "555-0002")
	f.user(t, "carol", "Carol", "carol@example.com", "555-0003")
	return f
}

func (f *fixture) user(t *testing.T, id, name, email, phone string) models.Participant {
	t.Helper()
	_, err := f.store.Set(f.ctx, docstore.Users, id, records.UserFields(name, email, phone, ""))
	require.NoError(t, err)
	return models.Participant{ID: id, Name: name, Email: email, PhoneNumber: phone}
}

func (f *fixture) participants(ids ...string) []models.Participant {
	out := make([]models.Participant, len(ids))
	for i, id := range ids {
		out[i] = models.Participant{ID: id}
	}
	return out
}

func (f *fixture) header(t *testing.T, description, payerID string) string {
	t.Helper()
	id, err := f.store.Store.Add(f.ctx, docstore.Expenses, records.ExpenseHeaderFields(records.ExpenseHeader{
		Description: description,
		TotalAmount: 10,
		SplitType:   models.SplitEqually,
		Date:        fixedNow,
		PayerID:     payerID,
	}))
	require.NoError(t, err)
	return id
}

func (f *fixture) fact(t *testing.T, expenseID, userID string, amount float64) {
	t.Helper()
	_, err := f.store.Store.Add(f.ctx, docstore.Participations, records.ParticipationFields(expenseID, userID, amount))
	require.NoError(t, err)
}

func (f *fixture) addExpense(t *testing.T, description string, total float64, ids ...string) models.Expense {
	t.Helper()
	exp, err := f.engine.AddExpense(f.ctx, session.Context{UserID: ids[0]}, NewExpense{
		Description:  description,
		TotalAmount:  total,
		SplitType:    models.SplitEqually,
		Participants: f.participants(ids...),
	})
	require.NoError(t, err)
	return exp
}

func expenseIDs(expenses []models.Expense) []string {
	ids := make([]string, len(expenses))
	for i, e := range expenses {
		ids[i] = e.ID
	}
	return ids
}

func TestReconstructExpenses_RoundTrip(t *testing.T) {
	f := newFixture(t, Options{})

	added := f.addExpense(t, "Costco", 100, "alice", "bob", "carol")

	expenses := f.engine.ReconstructExpenses(f.ctx, session.Context{UserID: "bob"})
	require.Len(t, expenses, 1)

	got := expenses[0]
	assert.Equal(t, added.ID, got.ID)
	assert.Equal(t, "Costco", got.Description)
	assert.Equal(t, 100.0, got.TotalAmount)
	assert.Equal(t, models.SplitEqually, got.SplitType)
	assert.True(t, got.Date.Equal(fixedNow), "date = %v", got.Date)
	assert.Equal(t, "alice", got.Payer.ID)
	assert.Equal(t, "Alice", got.Payer.Name)
	assert.Empty(t, got.Payer.FriendshipID)

	// Participants and details follow the store order of the facts.
	require.Len(t, got.Participants, 3)
	require.Len(t, got.PaymentDetails, 3)
	for i, p := range got.Participants {
		assert.Equal(t, p.ID, got.PaymentDetails[i].ParticipantID)
	}
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, []string{
		got.Participants[0].ID, got.Participants[1].ID, got.Participants[2].ID,
	})
	assert.True(t, calculator.SumAmounts(got.PaymentDetails).Equal(decimal.NewFromInt(100)))
}

func TestReconstructExpenses_NoFacts(t *testing.T) {
	f := newFixture(t, Options{})

	expenses := f.engine.ReconstructExpenses(f.ctx, session.Context{UserID: "carol"})
	assert.NotNil(t, expenses)
	assert.Empty(t, expenses)
}

func TestReconstructExpenses_UnresolvablePayerDropsExpense(t *testing.T) {
	f := newFixture(t, Options{})

	ghost := f.header(t, "Ghost dinner", "ghost")
	f.fact(t, ghost, "alice", 5)
	f.fact(t, ghost, "bob", 5)
	kept := f.addExpense(t, "Groceries", 30, "alice", "bob")

	expenses := f.engine.ReconstructExpenses(f.ctx, session.Context{UserID: "alice"})
	assert.Equal(t, []string{kept.ID}, expenseIDs(expenses))
}

func TestReconstructExpenses_UnresolvableParticipantDropped(t *testing.T) {
	f := newFixture(t, Options{})

	id := f.header(t, "Lunch", "alice")
	f.fact(t, id, "alice", 4)
	f.fact(t, id, "ghost", 3)
	f.fact(t, id, "bob", 3)

	expenses := f.engine.ReconstructExpenses(f.ctx, session.Context{UserID: "alice"})
	require.Len(t, expenses, 1)

	got := expenses[0]
	require.Len(t, got.Participants, 2)
	assert.Equal(t, "alice", got.Participants[0].ID)
	assert.Equal(t, "bob", got.Participants[1].ID)
	assert.Equal(t, []models.PaymentDetail{
		{ParticipantID: "alice", Amount: 4},
		{ParticipantID: "bob", Amount: 3},
	}, got.PaymentDetails)
}

func TestReconstructExpenses_HeaderFailureDropsOnlyThatExpense(t *testing.T) {
	f := newFixture(t, Options{})

	broken := f.addExpense(t, "Broken", 10, "alice", "bob")
	ok := f.addExpense(t, "Fine", 20, "alice", "carol")
	f.store.failGet[docstore.Key{Collection: docstore.Expenses, ID: broken.ID}] = true

	expenses := f.engine.ReconstructExpenses(f.ctx, session.Context{UserID: "alice"})
	assert.Equal(t, []string{ok.ID}, expenseIDs(expenses))
}

func TestReconstructExpenses_MissingHeaderIsTolerated(t *testing.T) {
	f := newFixture(t, Options{})

	exp := f.addExpense(t, "Orphaned", 10, "alice", "bob")
	require.NoError(t, f.store.Store.Delete(f.ctx, docstore.Expenses, exp.ID))

	assert.Empty(t, f.engine.ReconstructExpenses(f.ctx, session.Context{UserID: "alice"}))
}

func TestReconstructExpenses_QueryFailureDegradesToEmpty(t *testing.T) {
	f := newFixture(t, Options{})

	f.addExpense(t, "Dinner", 10, "alice", "bob")
	f.store.failQuery[docstore.Participations+"."+records.FieldUserID] = true

	expenses := f.engine.ReconstructExpenses(f.ctx, session.Context{UserID: "alice"})
	assert.NotNil(t, expenses)
	assert.Empty(t, expenses)
}

func TestReconstructExpenses_Idempotent(t *testing.T) {
	f := newFixture(t, Options{})

	for _, d := range []string{"a", "b", "c", "d", "e"} {
		f.addExpense(t, d, 12.5, "alice", "bob", "carol")
	}

	sc := session.Context{UserID: "carol"}
	first := f.engine.ReconstructExpenses(f.ctx, sc)
	second := f.engine.ReconstructExpenses(f.ctx, sc)

	assert.Len(t, first, 5)
	assert.Equal(t, expenseIDs(first), expenseIDs(second))
	for i := range first {
		assert.Equal(t, first[i].Participants, second[i].Participants)
	}
}

func TestReconstructExpenses_BoundedConcurrency(t *testing.T) {
	f := newFixture(t, Options{MaxConcurrentCalls: 2})

	for _, d := range []string{"a", "b", "c", "d"} {
		f.addExpense(t, d, 9, "alice", "bob", "carol")
	}
	f.store.maxInFlight.Store(0)

	expenses := f.engine.ReconstructExpenses(f.ctx, session.Context{UserID: "alice"})
	assert.Len(t, expenses, 4)
	assert.LessOrEqual(t, f.store.maxInFlight.Load(), int32(2))
}

func TestLoadFriends_BothEndpoints(t *testing.T) {
	f := newFixture(t, Options{})

	e1, err := f.store.Store.Add(f.ctx, docstore.Friends, records.FriendshipFields("alice", "bob", fixedNow))
	require.NoError(t, err)
	e2, err := f.store.Store.Add(f.ctx, docstore.Friends, records.FriendshipFields("carol", "alice", fixedNow))
	require.NoError(t, err)

	friends := f.engine.LoadFriends(f.ctx, session.Context{UserID: "alice"})
	require.Len(t, friends, 2)
	assert.Equal(t, "bob", friends[0].ID)
	assert.Equal(t, e1, friends[0].FriendshipID)
	assert.Equal(t, "carol", friends[1].ID)
	assert.Equal(t, e2, friends[1].FriendshipID)
	assert.Equal(t, "Carol", friends[1].Name)
}

func TestLoadFriends_DuplicateEdgesKept(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.store.Store.Add(f.ctx, docstore.Friends, records.FriendshipFields("alice", "bob", fixedNow))
	require.NoError(t, err)
	_, err = f.store.Store.Add(f.ctx, docstore.Friends, records.FriendshipFields("bob", "alice", fixedNow))
	require.NoError(t, err)

	friends := f.engine.LoadFriends(f.ctx, session.Context{UserID: "alice"})
	require.Len(t, friends, 2)
	assert.Equal(t, "bob", friends[0].ID)
	assert.Equal(t, "bob", friends[1].ID)
	assert.NotEqual(t, friends[0].FriendshipID, friends[1].FriendshipID)
}

func TestLoadFriends_OneEndpointFailing(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.store.Store.Add(f.ctx, docstore.Friends, records.FriendshipFields("alice", "bob", fixedNow))
	require.NoError(t, err)
	_, err = f.store.Store.Add(f.ctx, docstore.Friends, records.FriendshipFields("carol", "alice", fixedNow))
	require.NoError(t, err)
	f.store.failQuery[docstore.Friends+"."+records.FieldUserID1] = true

	friends := f.engine.LoadFriends(f.ctx, session.Context{UserID: "alice"})
	require.Len(t, friends, 1)
	assert.Equal(t, "carol", friends[0].ID)
}

func TestFriendMutations(t *testing.T) {
	f := newFixture(t, Options{})
	sc := session.Context{UserID: "alice"}

	t.Run("search by email", func(t *testing.T) {
		friend, found, err := f.engine.SearchAndAddFriend(f.ctx, sc, " bob@example.com ")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "bob", friend.ID)
		assert.NotEmpty(t, friend.FriendshipID)
	})

	t.Run("search by phone", func(t *testing.T) {
		friend, found, err := f.engine.SearchAndAddFriend(f.ctx, sc, "555-0003")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "carol", friend.ID)
	})

	t.Run("search miss", func(t *testing.T) {
		_, found, err := f.engine.SearchAndAddFriend(f.ctx, sc, "nobody@example.com")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("self", func(t *testing.T) {
		_, _, err := f.engine.SearchAndAddFriend(f.ctx, sc, "alice@example.com")
		assert.ErrorIs(t, err, ErrSelfFriend)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.engine.AddFriend(f.ctx, sc, "ghost")
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
	})

	t.Run("delete", func(t *testing.T) {
		friends := f.engine.LoadFriends(f.ctx, sc)
		require.Len(t, friends, 2)

		require.NoError(t, f.engine.DeleteFriend(f.ctx, friends[0].FriendshipID))

		remaining := f.engine.LoadFriends(f.ctx, sc)
		require.Len(t, remaining, 1)
		assert.Equal(t, friends[1].ID, remaining[0].ID)
	})

	t.Run("delete failure", func(t *testing.T) {
		f.store.failDelete[docstore.Friends] = true
		defer delete(f.store.failDelete, docstore.Friends)

		var te *TransportError
		assert.ErrorAs(t, f.engine.DeleteFriend(f.ctx, "anything"), &te)
	})
}

func TestAddExpense_ComputesAllocations(t *testing.T) {
	f := newFixture(t, Options{})

	exp, err := f.engine.AddExpense(f.ctx, session.Context{UserID: "alice"}, NewExpense{
		Description:  "Trader Joe's",
		TotalAmount:  50,
		SplitType:    models.SplitPercentage,
		Participants: f.participants("alice", "bob"),
		SplitInputs:  []string{"60", "40"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, exp.ID)
	assert.Equal(t, "Alice", exp.Payer.Name, "payer defaults to the session user")
	assert.Equal(t, []models.PaymentDetail{
		{ParticipantID: "alice", Amount: 30},
		{ParticipantID: "bob", Amount: 20},
	}, exp.PaymentDetails)

	header, err := f.store.Get(f.ctx, docstore.Expenses, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Percentage", header.Fields[records.FieldSplitType])
	assert.Equal(t, "User/alice", header.Fields[records.FieldPayerID])
}

func TestAddExpense_InvalidSplitWritesNothing(t *testing.T) {
	f := newFixture(t, Options{})

	cases := []struct {
		name string
		in   NewExpense
	}{
		{
			name: "percentages off",
			in: NewExpense{
				TotalAmount: 50, SplitType: models.SplitPercentage,
				Participants: f.participants("alice", "bob"), SplitInputs: []string{"60", "30"},
			},
		},
		{
			name: "no participants",
			in:   NewExpense{TotalAmount: 50, SplitType: models.SplitEqually},
		},
		{
			name: "duplicate participants",
			in: NewExpense{
				TotalAmount: 50, SplitType: models.SplitEqually,
				Participants: f.participants("alice", "alice"),
			},
		},
		{
			name: "payment details naming a non-participant",
			in: NewExpense{
				TotalAmount: 10, SplitType: models.SplitByAmount,
				Participants: f.participants("alice", "bob"),
				PaymentDetails: []models.PaymentDetail{
					{ParticipantID: "alice", Amount: 1},
					{ParticipantID: "carol", Amount: 2},
				},
			},
		},
		{
			name: "payment details short of the total",
			in: NewExpense{
				TotalAmount: 10, SplitType: models.SplitByAmount,
				Participants: f.participants("alice", "bob"),
				PaymentDetails: []models.PaymentDetail{
					{ParticipantID: "alice", Amount: 4},
					{ParticipantID: "bob", Amount: 5},
				},
			},
		},
		{
			name: "non-finite total",
			in: NewExpense{
				TotalAmount: math.NaN(), SplitType: models.SplitEqually,
				Participants: f.participants("alice", "bob"),
			},
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.AddExpense(f.ctx, session.Context{UserID: "alice"}, tt.in)
			var invalid *InvalidSplitError
			assert.ErrorAs(t, err, &invalid)
		})
	}

	headers, err := f.store.Query(f.ctx, docstore.Expenses, records.FieldPayerID, docstore.RefTo(docstore.Users, "alice"))
	require.NoError(t, err)
	assert.Empty(t, headers)

	assert.Empty(t, f.engine.ReconstructExpenses(f.ctx, session.Context{UserID: "carol"}))
}

func TestAddExpense_SuppliedPaymentDetails(t *testing.T) {
	f := newFixture(t, Options{})

	exp, err := f.engine.AddExpense(f.ctx, session.Context{UserID: "alice"}, NewExpense{
		Description:  "Groceries",
		TotalAmount:  10,
		SplitType:    models.SplitByAmount,
		Participants: f.participants("alice", "bob"),
		PaymentDetails: []models.PaymentDetail{
			{ParticipantID: "alice", Amount: 3.5},
			{ParticipantID: "bob", Amount: 6.5},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 6.5, exp.AmountFor("bob"))

	expenses := f.engine.ReconstructExpenses(f.ctx, session.Context{UserID: "bob"})
	require.Len(t, expenses, 1)
	assert.Equal(t, 3.5, expenses[0].AmountFor("alice"))
}

func TestAddExpense_PartialWrite(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.failAdd = func(collection string, fields docstore.Fields) bool {
		return collection == docstore.Participations && fields[records.FieldUserID] == docstore.RefTo(docstore.Users, "bob")
	}

	_, err := f.engine.AddExpense(f.ctx, session.Context{UserID: "alice"}, NewExpense{
		Description:  "Walmart",
		TotalAmount:  90,
		SplitType:    models.SplitEqually,
		Participants: f.participants("alice", "bob", "carol"),
	})

	var partial *PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{"alice", "carol"}, partial.Written)
	assert.Equal(t, []string{"bob"}, partial.Failed)
	assert.ErrorIs(t, err, errInjected)

	// No rollback: the header and the written facts stay.
	_, err = f.store.Get(f.ctx, docstore.Expenses, partial.ExpenseID)
	assert.NoError(t, err)
	facts, err := f.store.Query(f.ctx, docstore.Participations, records.FieldExpenseID, docstore.RefTo(docstore.Expenses, partial.ExpenseID))
	require.NoError(t, err)
	assert.Len(t, facts, 2)
}

func TestAddExpense_HeaderFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.failAdd = func(collection string, _ docstore.Fields) bool {
		return collection == docstore.Expenses
	}

	_, err := f.engine.AddExpense(f.ctx, session.Context{UserID: "alice"}, NewExpense{
		TotalAmount:  10,
		Participants: f.participants("alice", "bob"),
	})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "add expense header", te.Op)
}

type fakeImages struct {
	url string
	err error
	got []byte
}

func (i *fakeImages) Upload(_ context.Context, image []byte) (string, error) {
	i.got = image
	return i.url, i.err
}

func TestAddExpense_Receipt(t *testing.T) {
	t.Run("uploaded before the header", func(t *testing.T) {
		images := &fakeImages{url: "file:///receipts/r1.jpg"}
		f := newFixture(t, Options{Images: images})

		exp, err := f.engine.AddExpense(f.ctx, session.Context{UserID: "alice"}, NewExpense{
			TotalAmount:  10,
			Participants: f.participants("alice", "bob"),
			Receipt:      []byte("jpeg"),
		})
		require.NoError(t, err)
		assert.Equal(t, []byte("jpeg"), images.got)

		expenses := f.engine.ReconstructExpenses(f.ctx, session.Context{UserID: "bob"})
		require.Len(t, expenses, 1)
		assert.Equal(t, exp.ID, expenses[0].ID)
		assert.Equal(t, "file:///receipts/r1.jpg", expenses[0].ImageURL)
	})

	t.Run("upload failure aborts", func(t *testing.T) {
		f := newFixture(t, Options{Images: &fakeImages{err: errInjected}})

		_, err := f.engine.AddExpense(f.ctx, session.Context{UserID: "alice"}, NewExpense{
			TotalAmount:  10,
			Participants: f.participants("alice", "bob"),
			Receipt:      []byte("jpeg"),
		})
		assert.ErrorIs(t, err, errInjected)
		assert.Empty(t, f.engine.ReconstructExpenses(f.ctx, session.Context{UserID: "alice"}))
	})

	t.Run("no image store", func(t *testing.T) {
		f := newFixture(t, Options{})

		_, err := f.engine.AddExpense(f.ctx, session.Context{UserID: "alice"}, NewExpense{
			TotalAmount:  10,
			Participants: f.participants("alice", "bob"),
			Receipt:      []byte("jpeg"),
		})
		assert.ErrorIs(t, err, ErrNoImageStore)
	})
}

func TestDeleteExpense(t *testing.T) {
	f := newFixture(t, Options{})
	exp := f.addExpense(t, "Target", 40, "alice", "bob")
	other := f.addExpense(t, "Restaurant", 60, "alice", "carol")

	require.NoError(t, f.engine.DeleteExpense(f.ctx, exp.ID))

	_, err := f.store.Get(f.ctx, docstore.Expenses, exp.ID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	facts, err := f.store.Query(f.ctx, docstore.Participations, records.FieldExpenseID, docstore.RefTo(docstore.Expenses, exp.ID))
	require.NoError(t, err)
	assert.Empty(t, facts)

	assert.Equal(t, []string{other.ID}, expenseIDs(f.engine.ReconstructExpenses(f.ctx, session.Context{UserID: "alice"})))
}

func TestDeleteExpense_HeaderFailureLeavesNoOrphanedFacts(t *testing.T) {
	f := newFixture(t, Options{})
	exp := f.addExpense(t, "Costco", 40, "alice", "bob")
	f.store.failDelete[docstore.Expenses] = true

	err := f.engine.DeleteExpense(f.ctx, exp.ID)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "delete expense header", te.Op)

	// Facts are gone, the header is still there.
	_, err = f.store.Get(f.ctx, docstore.Expenses, exp.ID)
	assert.NoError(t, err)
	facts, err := f.store.Query(f.ctx, docstore.Participations, records.FieldExpenseID, docstore.RefTo(docstore.Expenses, exp.ID))
	require.NoError(t, err)
	assert.Empty(t, facts)

	// Retrying completes the deletion.
	delete(f.store.failDelete, docstore.Expenses)
	require.NoError(t, f.engine.DeleteExpense(f.ctx, exp.ID))
	_, err = f.store.Get(f.ctx, docstore.Expenses, exp.ID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestDeleteExpense_BatchFailureKeepsHeader(t *testing.T) {
	f := newFixture(t, Options{})
	exp := f.addExpense(t, "Costco", 40, "alice", "bob")
	f.store.failBatch = true

	err := f.engine.DeleteExpense(f.ctx, exp.ID)
	assert.ErrorIs(t, err, errInjected)

	_, err = f.store.Get(f.ctx, docstore.Expenses, exp.ID)
	assert.NoError(t, err)
	facts, err := f.store.Query(f.ctx, docstore.Participations, records.FieldExpenseID, docstore.RefTo(docstore.Expenses, exp.ID))
	require.NoError(t, err)
	assert.Len(t, facts, 2)
}

func TestResolveCurrentUser(t *testing.T) {
	f := newFixture(t, Options{})

	user, err := f.engine.ResolveCurrentUser(f.ctx, session.Context{UserID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, "Bob", user.Name)

	_, err = f.engine.ResolveCurrentUser(f.ctx, session.Context{UserID: "ghost"})
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)

	f.store.failGet[docstore.Key{Collection: docstore.Users, ID: "bob"}] = true
	_, err = f.engine.ResolveCurrentUser(f.ctx, session.Context{UserID: "bob"})
	var te *TransportError
	assert.ErrorAs(t, err, &te)
}

func TestProfiles(t *testing.T) {
	f := newFixture(t, Options{MaxConcurrentCalls: 2})

	users, err := f.engine.Profiles(f.ctx, []string{"carol", "alice", "bob"})
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, []string{"Carol", "Alice", "Bob"}, []string{users[0].Name, users[1].Name, users[2].Name})

	_, err = f.engine.Profiles(f.ctx, []string{"alice", "ghost"})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "ghost", nf.ID)

	empty, err := f.engine.Profiles(f.ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
