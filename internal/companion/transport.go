package companion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Paths served by Handler.
const (
	SnapshotPath = "/v1/snapshot"
	LedgerPath   = "/v1/ledger"
	HealthPath   = "/healthz"
)

// HTTPTransport posts snapshots to a companion's Handler. A single sender goroutine delivers them in
// order; a snapshot still waiting when a newer one arrives is replaced.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger

	pending chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
	start   sync.Once
}

// NewHTTPTransport creates a transport for the companion at baseURL. An empty baseURL means unpaired.
func NewHTTPTransport(baseURL string, client *http.Client, log *slog.Logger) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &HTTPTransport{
		baseURL: baseURL,
		client:  client,
		log:     log,
		pending: make(chan []byte, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (t *HTTPTransport) IsPaired() bool {
	return t.baseURL != ""
}

// Probe checks that the companion is reachable. Its result feeds Channel.Activated.
func (t *HTTPTransport) Probe(ctx context.Context) error {
	endpoint, err := url.JoinPath(t.baseURL, HealthPath)
	if err != nil {
		return fmt.Errorf("invalid companion url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("companion unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("companion health check returned %s", resp.Status)
	}
	return nil
}

// Send queues payload for the sender goroutine and returns immediately. Failures are logged and dropped.
func (t *HTTPTransport) Send(payload []byte) {
	t.start.Do(func() { go t.run() })
	for {
		select {
		case <-t.ctx.Done():
			return
		case t.pending <- payload:
			return
		default:
		}
		// Drop the stale snapshot still waiting.
		select {
		case <-t.pending:
		default:
		}
	}
}

// Close stops the sender goroutine and aborts a post in flight. Later sends are dropped.
func (t *HTTPTransport) Close() {
	t.cancel()
}

func (t *HTTPTransport) run() {
	for {
		select {
		case <-t.ctx.Done():
			return
		case payload := <-t.pending:
			t.post(payload)
		}
	}
}

func (t *HTTPTransport) post(payload []byte) {
	endpoint, err := url.JoinPath(t.baseURL, SnapshotPath)
	if err != nil {
		t.log.Warn("Companion send failed", "error", err)
		return
	}
	req, err := http.NewRequestWithContext(t.ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		t.log.Warn("Companion send failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		t.log.Warn("Companion send failed", "error", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		t.log.Warn("Companion rejected snapshot", "status", resp.StatusCode)
	}
}
