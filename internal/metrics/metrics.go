// Package metrics records server-level observability for the responder
// and resolver using Prometheus client types.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dnsauth/dnsauthd/internal/wire"
)

// Recorder is the observability surface the responder and resolver write
// to. A nil *Recorder is safe to call methods on: every method is a
// no-op when its receiver (or the Recorder itself) is nil, so wiring
// metrics is optional.
type Recorder struct {
	queriesTotal      *prometheus.CounterVec
	responseDuration  prometheus.Histogram
	resolverAttempts  *prometheus.CounterVec
	resolverEvictions prometheus.Counter
	cnameChaseHops    prometheus.Histogram
}

// New builds a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dnsauthd_queries_total",
			Help: "Total queries answered, by response code.",
		}, []string{"rcode"}),
		responseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dnsauthd_response_duration_seconds",
			Help:    "Time to compose a response, from decode to encode.",
			Buckets: prometheus.DefBuckets,
		}),
		resolverAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dnsauthd_resolver_attempts_total",
			Help: "Per-server resolution attempts, by outcome.",
		}, []string{"outcome"}),
		resolverEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dnsauthd_resolver_evictions_total",
			Help: "Servers evicted from the resolver's server list after SERVFAIL.",
		}),
		cnameChaseHops: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dnsauthd_cname_chase_hops",
			Help:    "Number of CNAME switches per recursive resolution.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
		}),
	}
	reg.MustRegister(r.queriesTotal, r.responseDuration, r.resolverAttempts, r.resolverEvictions, r.cnameChaseHops)
	return r
}

// ObserveQuery records one completed query with its final rcode and the
// wall-clock time spent composing the response.
func (r *Recorder) ObserveQuery(rcode wire.Rcode, d time.Duration) {
	if r == nil {
		return
	}
	r.queriesTotal.WithLabelValues(rcode.String()).Inc()
	r.responseDuration.Observe(d.Seconds())
}

// ObserveResolverAttempt records one per-server resolution attempt.
func (r *Recorder) ObserveResolverAttempt(outcome string) {
	if r == nil {
		return
	}
	r.resolverAttempts.WithLabelValues(outcome).Inc()
}

// ObserveEviction records a server being dropped from the resolver's
// server list after a SERVFAIL.
func (r *Recorder) ObserveEviction() {
	if r == nil {
		return
	}
	r.resolverEvictions.Inc()
}

// ObserveCNAMEChase records how many CNAME switches one recursive
// resolution required.
func (r *Recorder) ObserveCNAMEChase(hops int) {
	if r == nil {
		return
	}
	r.cnameChaseHops.Observe(float64(hops))
}
