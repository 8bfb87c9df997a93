package companion

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mmynk/splitbill/internal/calculator"
	"github.com/mmynk/splitbill/internal/models"
)

// maxPayload bounds an accepted snapshot body.
const maxPayload = 8 << 20

// Replica is the companion's read-only copy of the ledger.
type Replica struct {
	log *slog.Logger

	mu       sync.RWMutex
	snap     models.Snapshot
	received time.Time
}

func NewReplica(log *slog.Logger) *Replica {
	if log == nil {
		log = slog.Default()
	}
	return &Replica{log: log}
}

// Receive applies a snapshot payload. Fields that fail to decode keep their previous value.
func (r *Replica) Receive(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, skipped, err := DecodeSnapshot(payload, r.snap)
	if err != nil {
		return err
	}
	if len(skipped) > 0 {
		r.log.Warn("Snapshot fields not applied", "fields", skipped)
	}
	r.snap = snap
	r.received = time.Now()
	r.log.Info("Snapshot received",
		"expenses", len(snap.Expenses),
		"friends", len(snap.Friends),
	)
	return nil
}

// Snapshot returns a copy of the replica and when it was last updated. The time is zero before
// the first snapshot arrives.
func (r *Replica) Snapshot() (models.Snapshot, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap.Clone(), r.received
}

// LedgerView is what the companion serves to its readers.
type LedgerView struct {
	CurrentUser *models.Participant        `json:"currentUser"`
	Expenses    []models.Expense           `json:"expenses"`
	Friends     []models.Participant       `json:"friends"`
	Balances    []calculator.MemberBalance `json:"balances"`
	Debts       []calculator.DebtEdge      `json:"debts"`
	ReceivedAt  *time.Time                 `json:"receivedAt,omitempty"`
}

// View derives balances from the replicated expenses.
func (r *Replica) View() LedgerView {
	snap, received := r.Snapshot()
	balances, debts := calculator.CalculateBalances(snap.Expenses)
	view := LedgerView{
		CurrentUser: snap.CurrentUser,
		Expenses:    snap.Expenses,
		Friends:     snap.Friends,
		Balances:    balances,
		Debts:       debts,
	}
	if !received.IsZero() {
		view.ReceivedAt = &received
	}
	return view
}

// Handler accepts snapshots from the primary and serves the replica read-only.
func (r *Replica) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("POST "+SnapshotPath, func(w http.ResponseWriter, req *http.Request) {
		payload, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxPayload))
		if err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		if err := r.Receive(payload); err != nil {
			r.log.Warn("Rejected snapshot", "error", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET "+LedgerPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(r.View()); err != nil {
			r.log.Error("Failed to write ledger view", "error", err)
		}
	})

	return mux
}
