// Package metrics records operational metrics from a pipeline run without
// tying the pipeline to a particular metrics system.
//
// A single global Backend receives every observation. It defaults to a no-op,
// so instrumentation is always safe to call; concrete systems live in
// subpackages (prompush, datadog) and are installed with SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by every backend.
const (
	StepTotal       = "recjoin_step_total"
	StepDuration    = "recjoin_step_duration_seconds"
	RecordsTotal    = "recjoin_records_total"
	MismatchesTotal = "recjoin_join_mismatches_total"
)

// Pipeline steps.
const (
	StepOpen      = "open"
	StepJoin      = "join"
	StepFilter    = "filter"
	StepAggregate = "aggregate"
)

// Record kinds counted by RecordRow.
const (
	KindJoined  = "joined"
	KindStale   = "stale"
	KindCurrent = "current"
	KindUntimed = "untimed"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Reset restores the no-op backend.
func Reset() {
	mu.Lock()
	backend = nopBackend{}
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one execution of a pipeline step and observes its
// duration, labelled by outcome.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow adds delta records of the given kind (KindJoined, KindStale, ...).
// Non-positive deltas are ignored.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordMismatches counts join steps where the named secondary source did not
// carry the primary key.
func RecordMismatches(job, source string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(MismatchesTotal, float64(delta), Labels{
		"job":    job,
		"source": source,
	})
}
