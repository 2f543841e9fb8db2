// Package metrics holds the ManageAPI Prometheus instrumentation
// (SPEC_FULL.md "ManageAPI" module), grounded on the teacher's
// stats/prom.go registration style: a package-level Registry type owning
// its collectors rather than registering against the global default
// registry, so a caller can expose multiple independent dispatchers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the set of collectors one ManageAPI dispatcher reports
// through.
type Registry struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewRegistry builds a Registry and registers its collectors into reg. If
// reg is nil, prometheus.NewRegistry() is used, matching the teacher's
// pattern of never touching prometheus.DefaultRegisterer implicitly.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nsfs_manageapi_requests_total",
			Help: "Count of ManageAPI dispatches by type, action and outcome.",
		}, []string{"type", "action", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nsfs_manageapi_request_duration_seconds",
			Help:    "ManageAPI dispatch latency by type and action.",
			Buckets: prometheus.DefBuckets,
		}, []string{"type", "action"}),
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(r.requestsTotal, r.requestDuration)
	return r
}

// Outcome is the third requestsTotal label: "ok" or "error".
type Outcome string

const (
	Ok    Outcome = "ok"
	Error Outcome = "error"
)

// Observe records one completed dispatch.
func (r *Registry) Observe(typ, action string, outcome Outcome, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requestsTotal.WithLabelValues(typ, action, string(outcome)).Inc()
	r.requestDuration.WithLabelValues(typ, action).Observe(elapsed.Seconds())
}
