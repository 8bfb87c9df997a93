package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.JoinDropped("payer")
	m.JoinDropped("payer")
	m.Write("add_expense", nil)
	m.Write("add_expense", errors.New("boom"))
	m.Replication("skipped")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.joinDrops.WithLabelValues("payer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.writes.WithLabelValues("add_expense", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.writes.WithLabelValues("add_expense", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replications.WithLabelValues("skipped")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.JoinDropped("header")
		m.JoinFinished(time.Now())
		m.Write("delete_expense", nil)
		m.Replication("sent")
		m.RPC("/x", "ok", time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Replication("sent")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `splitbill_companion_pushes_total{outcome="sent"} 1`))
}
