// Package metrics exposes Prometheus collectors for guide resolution.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "iptvguide"

// Label values.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultOK    = "ok"
	ResultError = "error"
	ResultEmpty = "empty"
	ResultLarge = "too_large"
)

type Metrics struct {
	cacheLookups       *prometheus.CounterVec
	directoryRefreshes *prometheus.CounterVec
	guideFetches       *prometheus.CounterVec
	aliasResolutions   *prometheus.CounterVec
	guideFetchSeconds  prometheus.Histogram
}

// New creates the collectors and registers them with reg (nil skips registration).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Schedule cache lookups by result.",
		}, []string{"result"}),
		directoryRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_refreshes_total",
			Help:      "Channel directory refresh attempts by result.",
		}, []string{"result"}),
		guideFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guide_fetches_total",
			Help:      "Country guide fetches by result.",
		}, []string{"result"}),
		aliasResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alias_resolutions_total",
			Help:      "Requested ids aliased onto guide channels, by strategy.",
		}, []string{"strategy"}),
		guideFetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "guide_fetch_seconds",
			Help:      "Time to download and parse one country guide.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.cacheLookups, m.directoryRefreshes, m.guideFetches, m.aliasResolutions, m.guideFetchSeconds)
	}
	return m
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) DirectoryRefresh(result string) {
	if m == nil {
		return
	}
	m.directoryRefreshes.WithLabelValues(result).Inc()
}

// GuideFetch counts one fetch and observes its duration.
func (m *Metrics) GuideFetch(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.guideFetches.WithLabelValues(result).Inc()
	m.guideFetchSeconds.Observe(d.Seconds())
}

func (m *Metrics) AliasResolution(strategy string) {
	if m == nil {
		return
	}
	m.aliasResolutions.WithLabelValues(strategy).Inc()
}
