package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bidder's collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	BidsSubmitted    *prometheus.CounterVec
	BidsFailed       *prometheus.CounterVec
	BidsCancelled    *prometheus.CounterVec
	PassDuration     *prometheus.HistogramVec
	UpdatesCoalesced *prometheus.CounterVec
	FailsafeActive   prometheus.Gauge
	FeedEvents       *prometheus.CounterVec
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		BidsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolbid_bids_submitted_total",
				Help: "Bid tranches accepted by the marketplace.",
			},
			[]string{"collection"},
		),
		BidsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolbid_bids_failed_total",
				Help: "Bid tranches rejected or failed, by reason.",
			},
			[]string{"collection", "reason"},
		),
		BidsCancelled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolbid_bids_cancelled_total",
				Help: "Cancel requests by outcome.",
			},
			[]string{"collection", "outcome"},
		),
		PassDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poolbid_pass_duration_seconds",
				Help:    "Duration of one reconciliation pass for one wallet.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"collection"},
		),
		UpdatesCoalesced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolbid_updates_coalesced_total",
				Help: "Queued updates overwritten before they were processed.",
			},
			[]string{"collection"},
		),
		FailsafeActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "poolbid_failsafe_active",
				Help: "1 while the failsafe poller owns the pipeline.",
			},
		),
		FeedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolbid_feed_events_total",
				Help: "Push feed lifecycle and data events.",
			},
			[]string{"event"},
		),
	}

	registry.MustRegister(
		m.BidsSubmitted, m.BidsFailed, m.BidsCancelled, m.PassDuration,
		m.UpdatesCoalesced, m.FailsafeActive, m.FeedEvents,
	)
	return m
}

func (m *Metrics) BidSubmitted(collection string) {
	if m == nil {
		return
	}
	m.BidsSubmitted.WithLabelValues(collection).Inc()
}

func (m *Metrics) BidFailed(collection, reason string) {
	if m == nil {
		return
	}
	m.BidsFailed.WithLabelValues(collection, reason).Inc()
}

func (m *Metrics) BidCancelled(collection string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.BidsCancelled.WithLabelValues(collection, outcome).Inc()
}

func (m *Metrics) ObservePass(collection string, d time.Duration) {
	if m == nil {
		return
	}
	m.PassDuration.WithLabelValues(collection).Observe(d.Seconds())
}

func (m *Metrics) UpdateCoalesced(collection string) {
	if m == nil {
		return
	}
	m.UpdatesCoalesced.WithLabelValues(collection).Inc()
}

func (m *Metrics) SetFailsafe(active bool) {
	if m == nil {
		return
	}
	v := 0.0
	if active {
		v = 1
	}
	m.FailsafeActive.Set(v)
}

func (m *Metrics) FeedEvent(event string) {
	if m == nil {
		return
	}
	m.FeedEvents.WithLabelValues(event).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
