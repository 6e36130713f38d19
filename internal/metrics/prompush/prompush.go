// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A pipeline run is a short-lived batch job with nothing to scrape, so the
// collected series are pushed to a Pushgateway when metrics.Flush is called.
// The job label is carried by the Pushgateway grouping key rather than by
// each series.
package prompush

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"recjoin/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter     *prometheus.CounterVec // step, status
	stepDuration    *prometheus.SummaryVec // step, status
	recordCounter   *prometheus.CounterVec // kind
	mismatchCounter *prometheus.CounterVec // source
}

// NewBackend constructs a Prometheus Pushgateway backend. jobName defaults to
// "recjoin".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, errors.New("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "recjoin"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline step executions, partitioned by step and status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Pipeline step duration in seconds, partitioned by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step", "status"},
	)
	recordCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Record counts per kind (joined, stale, current, untimed).",
		},
		[]string{"kind"},
	)
	mismatchCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.MismatchesTotal,
			Help: "Join steps where a secondary source did not carry the primary key.",
		},
		[]string{"source"},
	)

	for _, c := range []struct {
		what string
		col  prometheus.Collector
	}{
		{"step counter", stepCounter},
		{"step summary", stepDuration},
		{"record counter", recordCounter},
		{"mismatch counter", mismatchCounter},
	} {
		if err := reg.Register(c.col); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", c.what, err)
		}
	}

	return &Backend{
		gatewayURL:      gatewayURL,
		jobName:         jobName,
		reg:             reg,
		stepCounter:     stepCounter,
		stepDuration:    stepDuration,
		recordCounter:   recordCounter,
		mismatchCounter: mismatchCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)

	case metrics.RecordsTotal:
		if b.recordCounter == nil {
			return
		}
		b.recordCounter.WithLabelValues(labels["kind"]).Add(delta)

	case metrics.MismatchesTotal:
		if b.mismatchCounter == nil {
			return
		}
		b.mismatchCounter.WithLabelValues(labels["source"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
