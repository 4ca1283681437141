package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.BidSubmitted("c")
		m.BidFailed("c", "x")
		m.BidCancelled("c", true)
		m.ObservePass("c", time.Second)
		m.UpdateCoalesced("c")
		m.SetFailsafe(true)
		m.FeedEvent("connect")
	})
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.BidSubmitted("cool")
	m.BidSubmitted("cool")
	m.BidCancelled("cool", false)
	m.SetFailsafe(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BidsSubmitted.WithLabelValues("cool")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BidsCancelled.WithLabelValues("cool", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FailsafeActive))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "poolbid_bids_submitted_total")
}
