// Package metrics exposes prometheus counters for normalization and the
// unknown queue. A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery outcomes
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeAppended  = "appended"
	OutcomeAppendErr = "append_failed"
)

// Recorder owns the beanlens collectors and the registry they live in
type Recorder struct {
	registry *prometheus.Registry

	matchesTotal    *prometheus.CounterVec
	eventsTotal     *prometheus.CounterVec
	deliveriesTotal *prometheus.CounterVec
	receivedTotal   *prometheus.CounterVec
}

// New creates a Recorder with its own registry, including the go and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		matchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beanlens_matches_total",
			Help: "Total number of raw values matched, by domain and match kind",
		}, []string{"domain", "match_kind"}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beanlens_unknown_events_total",
			Help: "Total number of unknown queue events emitted, by domain and reason",
		}, []string{"domain", "reason"}),
		deliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beanlens_unknown_deliveries_total",
			Help: "Total number of unknown queue sink writes, by sink and outcome",
		}, []string{"sink", "outcome"}),
		receivedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beanlens_receiver_events_total",
			Help: "Total number of unknown queue events accepted or rejected by the receiver",
		}, []string{"status"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.matchesTotal,
		r.eventsTotal,
		r.deliveriesTotal,
		r.receivedTotal,
	)
	return r
}

// Match records one matcher outcome
func (r *Recorder) Match(domain, kind string) {
	if r == nil {
		return
	}
	r.matchesTotal.WithLabelValues(domain, kind).Inc()
}

// Event records one emitted unknown queue event
func (r *Recorder) Event(domain, reason string) {
	if r == nil {
		return
	}
	r.eventsTotal.WithLabelValues(domain, reason).Inc()
}

// Delivery records a sink write. sink is "local" or "remote".
func (r *Recorder) Delivery(sink, outcome string) {
	if r == nil {
		return
	}
	r.deliveriesTotal.WithLabelValues(sink, outcome).Inc()
}

// Received records an event posted to the receiver
func (r *Recorder) Received(status string) {
	if r == nil {
		return
	}
	r.receivedTotal.WithLabelValues(status).Inc()
}

// Handler serves the registry in the prometheus text format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
