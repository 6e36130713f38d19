package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	callsCounters   []counterCall
	callsHistograms []histCall
	flushCount      int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsCounters = append(f.callsCounters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsHistograms = append(f.callsHistograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

// install swaps in a fake backend for the duration of the test. Tests using
// it must not run in parallel.
func install(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	SetBackend(fb)
	t.Cleanup(Reset)
	return fb
}

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	fb := install(t)

	RecordStep("jobA", StepJoin, nil, 2*time.Second)
	RecordStep("jobB", StepAggregate, errors.New("boom"), 1500*time.Millisecond)

	require.Len(t, fb.callsCounters, 2)
	require.Len(t, fb.callsHistograms, 2)

	cc0 := fb.callsCounters[0]
	assert.Equal(t, StepTotal, cc0.name)
	assert.Equal(t, 1.0, cc0.delta)
	assert.Equal(t, Labels{"job": "jobA", "step": "join", "status": "success"}, cc0.labels)

	h0 := fb.callsHistograms[0]
	assert.Equal(t, StepDuration, h0.name)
	assert.InDelta(t, 2.0, h0.value, 0.001)

	cc1 := fb.callsCounters[1]
	assert.Equal(t, Labels{"job": "jobB", "step": "aggregate", "status": "failure"}, cc1.labels)
	assert.InDelta(t, 1.5, fb.callsHistograms[1].value, 0.001)
}

func TestRecordRowAndMismatches(t *testing.T) {
	fb := install(t)

	RecordRow("jobX", KindJoined, 3)
	RecordRow("jobX", KindStale, 0) // ignored
	RecordRow("jobY", KindCurrent, 5)
	RecordMismatches("jobZ", "VehicleInfo", 2)
	RecordMismatches("jobZ", "EmploymentInfo", -1) // ignored

	require.Len(t, fb.callsCounters, 3)

	assert.Equal(t, counterCall{RecordsTotal, 3, Labels{"job": "jobX", "kind": "joined"}}, fb.callsCounters[0])
	assert.Equal(t, counterCall{RecordsTotal, 5, Labels{"job": "jobY", "kind": "current"}}, fb.callsCounters[1])
	assert.Equal(t, counterCall{MismatchesTotal, 2, Labels{"job": "jobZ", "source": "VehicleInfo"}}, fb.callsCounters[2])
}

func TestSetBackendAndFlush(t *testing.T) {
	fb := install(t)

	require.NoError(t, Flush())
	assert.Equal(t, 1, fb.flushCount)

	SetBackend(nil)
	assert.Same(t, fb, current(), "SetBackend(nil) should not change backend")

	Reset()
	assert.Equal(t, nopBackend{}, current())
	assert.NoError(t, Flush())
}
