// Package metrics exposes Prometheus collectors for the scrape pipeline.
// Every method is safe to call on a nil *Metrics so callers can leave
// instrumentation unconfigured.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes.
const (
	FetchOK        = "ok"
	FetchNotHTML   = "not_html"
	FetchBadScheme = "bad_scheme"
	FetchRobots    = "robots"
	FetchStatus    = "status"
	FetchTimeout   = "timeout"
	FetchError     = "error"
)

type Metrics struct {
	FetchTotal       *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	RejectedTotal    *prometheus.CounterVec
	AcceptedTotal    prometheus.Counter
	PipelineTotal    *prometheus.CounterVec
	PipelineDuration prometheus.Histogram
	CandidatesTotal  prometheus.Counter
}

// New registers the collectors on reg. Passing a fresh prometheus.NewRegistry
// keeps tests isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goscrape_fetch_total",
				Help: "Page fetches by outcome",
			},
			[]string{"result"},
		),
		FetchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "goscrape_fetch_duration_seconds",
				Help:    "Probe plus full fetch duration per URL",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
		),
		RejectedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goscrape_filter_rejected_total",
				Help: "Fetched pages dropped by the content filter",
			},
			[]string{"reason"},
		),
		AcceptedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "goscrape_filter_accepted_total",
				Help: "Fetched pages that passed every filter predicate",
			},
		),
		PipelineTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goscrape_pipeline_runs_total",
				Help: "Pipeline runs by status",
			},
			[]string{"status"},
		),
		PipelineDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "goscrape_pipeline_duration_seconds",
				Help:    "End to end pipeline duration",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
		),
		CandidatesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "goscrape_candidates_total",
				Help: "Candidate URLs returned by the search provider",
			},
		),
	}
}

func (m *Metrics) RecordFetch(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(result).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	m.RejectedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordAccepted() {
	if m == nil {
		return
	}
	m.AcceptedTotal.Inc()
}

func (m *Metrics) RecordCandidates(n int) {
	if m == nil {
		return
	}
	m.CandidatesTotal.Add(float64(n))
}

func (m *Metrics) RecordPipeline(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.PipelineTotal.WithLabelValues(status).Inc()
	m.PipelineDuration.Observe(d.Seconds())
}
