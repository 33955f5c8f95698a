package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultIssued   = "issued"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Recorder counts token requests by grant type and outcome.
type Recorder struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates the token endpoint metrics and registers them on reg (or the default registerer if nil).
func New(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_token_requests_total",
			Help: "Token requests by grant type and result",
		}, []string{"grant_type", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oauth_token_request_duration_seconds",
			Help:    "Token request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"grant_type"}),
	}

	requests, err := register(reg, r.requests)
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, r.duration)
	if err != nil {
		return nil, err
	}
	r.requests, r.duration = requests, duration
	return r, nil
}

// register returns the collector already registered under the same
// descriptor when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, err
		}
		existing, ok := are.ExistingCollector.(C)
		if !ok {
			return c, err
		}
		return existing, nil
	}
	return c, nil
}

// Observe records one token request. A nil Recorder records nothing.
func (r *Recorder) Observe(grantType, result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	if grantType == "" {
		grantType = "none"
	}
	r.requests.WithLabelValues(grantType, result).Inc()
	r.duration.WithLabelValues(grantType).Observe(elapsed.Seconds())
}

// Requests exposes the request counter (primarily for testing)
func (r *Recorder) Requests() *prometheus.CounterVec {
	return r.requests
}
