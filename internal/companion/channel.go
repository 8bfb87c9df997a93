// Package companion replicates the in-memory ledger to a paired, read-only companion.
//
// The primary side runs a Channel that pushes a snapshot whenever the ledger changes while the
// companion session is active. Delivery is best effort: nothing is queued, retried or acknowledged.
// The companion side keeps the last received snapshot in a Replica.
package companion

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mmynk/splitbill/internal/metrics"
	"github.com/mmynk/splitbill/internal/models"
	"github.com/mmynk/splitbill/internal/state"
)

// State of the companion session.
type State int

const (
	Inactive State = iota
	Activating
	Active
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Activating:
		return "activating"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// Transport delivers payloads to the companion.
type Transport interface {
	IsPaired() bool

	// Send returns immediately and never reports delivery.
	Send(payload []byte)
}

// Source is the ledger being replicated.
type Source interface {
	Snapshot() (models.Snapshot, bool)
	Subscribe() (<-chan state.Change, func())
}

// Outcomes of a push attempt, also used as metric labels.
const (
	OutcomeSent        = "sent"
	OutcomeInactive    = "inactive"
	OutcomeUnpaired    = "unpaired"
	OutcomeNotReady    = "not_ready"
	OutcomeEncodeError = "encode_error"
)

// Channel is the primary side of replication.
type Channel struct {
	transport Transport
	source    Source
	log       *slog.Logger
	metrics   *metrics.Metrics

	mu    sync.Mutex
	state State
}

// NewChannel creates an inactive channel.
func NewChannel(transport Transport, source Source, log *slog.Logger, m *metrics.Metrics) *Channel {
	if log == nil {
		log = slog.Default()
	}
	return &Channel{transport: transport, source: source, log: log, metrics: m}
}

// State returns the current session state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Activate starts a companion session. It only moves an inactive channel.
func (c *Channel) Activate() {
	c.transition(Inactive, Activating)
}

// Activated completes activation. On success the channel becomes active and pushes right away;
// on failure it falls back to inactive.
func (c *Channel) Activated(err error) {
	if err != nil {
		c.log.Warn("Companion activation failed", "error", err)
		c.transition(Activating, Inactive)
		return
	}
	if c.transition(Activating, Active) {
		snap, ready := c.source.Snapshot()
		c.push(snap, ready)
	}
}

// Deactivate ends the session from any state.
func (c *Channel) Deactivate() {
	c.mu.Lock()
	prev := c.state
	c.state = Inactive
	c.mu.Unlock()
	if prev != Inactive {
		c.log.Info("Companion session state changed", "from", prev, "to", Inactive)
	}
}

func (c *Channel) transition(from, to State) bool {
	c.mu.Lock()
	ok := c.state == from
	if ok {
		c.state = to
	}
	c.mu.Unlock()
	if ok {
		c.log.Info("Companion session state changed", "from", from, "to", to)
	}
	return ok
}

// Start subscribes to the source and pushes every change in the background until ctx is done or
// the source closes the subscription.
func (c *Channel) Start(ctx context.Context) {
	changes, cancel := c.source.Subscribe()
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-changes:
				if !ok {
					return
				}
				c.push(change.Snapshot, change.Ready)
			}
		}
	}()
}

// push attempts one best-effort send and returns its outcome.
func (c *Channel) push(snap models.Snapshot, ready bool) string {
	outcome := c.tryPush(snap, ready)
	c.metrics.Replication(outcome)
	c.log.Debug("Companion push", "outcome", outcome)
	return outcome
}

func (c *Channel) tryPush(snap models.Snapshot, ready bool) string {
	if c.State() != Active {
		return OutcomeInactive
	}
	if !c.transport.IsPaired() {
		return OutcomeUnpaired
	}
	if !ready {
		return OutcomeNotReady
	}
	payload, skipped, err := EncodeSnapshot(snap)
	if err != nil {
		c.log.Error("Failed to encode companion snapshot", "error", err)
		return OutcomeEncodeError
	}
	if len(skipped) > 0 {
		c.log.Warn("Companion snapshot sent without some fields", "skipped", skipped)
	}
	c.transport.Send(payload)
	return OutcomeSent
}
