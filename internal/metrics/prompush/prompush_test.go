package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recjoin/internal/metrics"
)

// readCounterValue reads the current value of a Counter for assertions in tests.
func readCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	require.NotNil(t, m.GetCounter(), "metric did not contain Counter value")
	return m.GetCounter().GetValue()
}

// readSummaryCountSum reads sample count and sum from a SummaryVec.
func readSummaryCountSum(t *testing.T, v *prometheus.SummaryVec, labels ...string) (uint64, float64) {
	t.Helper()

	m := &dto.Metric{}
	metric, ok := v.WithLabelValues(labels...).(prometheus.Metric)
	require.True(t, ok, "SummaryVec.WithLabelValues(...) does not implement prometheus.Metric")
	require.NoError(t, metric.Write(m))
	require.NotNil(t, m.GetSummary())
	return m.GetSummary().GetSampleCount(), m.GetSummary().GetSampleSum()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{
			name:       "missing gateway URL returns error",
			jobName:    "nightly",
			gatewayURL: "",
			wantErr:    true,
		},
		{
			name:        "empty job name uses default",
			gatewayURL:  "http://pushgateway:9091",
			wantJobName: "recjoin",
		},
		{
			name:        "explicit job name is preserved",
			jobName:     "nightly",
			gatewayURL:  "http://pushgateway:9091",
			wantJobName: "nightly",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, b)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantJobName, b.jobName)
			assert.Equal(t, tt.gatewayURL, b.gatewayURL)

			require.NotNil(t, b.stepCounter)
			require.NotNil(t, b.stepDuration)
			require.NotNil(t, b.recordCounter)
			require.NotNil(t, b.mismatchCounter)
		})
	}
}

func TestIncCounter(t *testing.T) {
	t.Parallel()

	type args struct {
		name   string
		delta  float64
		labels metrics.Labels
	}
	tests := []struct {
		name  string
		args  []args
		check func(t *testing.T, b *Backend)
	}{
		{
			name: "step counter",
			args: []args{{metrics.StepTotal, 3, metrics.Labels{"step": metrics.StepJoin, "status": "success"}}},
			check: func(t *testing.T, b *Backend) {
				assert.Equal(t, 3.0, readCounterValue(t, b.stepCounter.WithLabelValues("join", "success")))
			},
		},
		{
			name: "record counter by kind",
			args: []args{
				{metrics.RecordsTotal, 5, metrics.Labels{"kind": metrics.KindJoined}},
				{metrics.RecordsTotal, 2, metrics.Labels{"kind": metrics.KindStale}},
			},
			check: func(t *testing.T, b *Backend) {
				assert.Equal(t, 5.0, readCounterValue(t, b.recordCounter.WithLabelValues("joined")))
				assert.Equal(t, 2.0, readCounterValue(t, b.recordCounter.WithLabelValues("stale")))
			},
		},
		{
			name: "mismatch counter by source",
			args: []args{
				{metrics.MismatchesTotal, 2, metrics.Labels{"source": "VehicleInfo"}},
				{metrics.MismatchesTotal, 0.5, metrics.Labels{"source": "VehicleInfo"}},
			},
			check: func(t *testing.T, b *Backend) {
				assert.Equal(t, 2.5, readCounterValue(t, b.mismatchCounter.WithLabelValues("VehicleInfo")))
			},
		},
		{
			name: "unknown metric name is ignored",
			args: []args{{"unknown_metric", 10, metrics.Labels{"foo": "bar"}}},
			check: func(t *testing.T, b *Backend) {
				assert.Zero(t, readCounterValue(t, b.stepCounter.WithLabelValues("x", "y")))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend("recjoin", "http://example.com")
			require.NoError(t, err)
			for _, a := range tt.args {
				b.IncCounter(a.name, a.delta, a.labels)
			}
			tt.check(t, b)
		})
	}
}

func TestIncCounterNilMetrics(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	assert.NotPanics(t, func() {
		b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "s", "status": "ok"})
		b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{"kind": "joined"})
		b.IncCounter(metrics.MismatchesTotal, 1, metrics.Labels{"source": "x"})
		b.ObserveHistogram(metrics.StepDuration, 1, metrics.Labels{})
	})
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("recjoin", "http://example.com")
	require.NoError(t, err)

	lbls := metrics.Labels{"step": metrics.StepFilter, "status": "success"}
	b.ObserveHistogram(metrics.StepDuration, 1.5, lbls)
	b.ObserveHistogram("other_metric", 2.0, lbls)

	count, sum := readSummaryCountSum(t, b.stepDuration, "filter", "success")
	assert.Equal(t, uint64(1), count)
	assert.Equal(t, 1.5, sum)
}

// TestFlush pushes to a fake Pushgateway and checks the request it receives.
func TestFlush(t *testing.T) {
	t.Parallel()

	type pushRequest struct {
		method string
		path   string
		body   string
	}
	reqCh := make(chan pushRequest, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		reqCh <- pushRequest{method: r.Method, path: r.URL.Path, body: string(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	b, err := NewBackend("nightly", server.URL)
	require.NoError(t, err)
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": metrics.StepOpen, "status": "success"})

	require.NoError(t, b.Flush())

	var got pushRequest
	select {
	case got = <-reqCh:
	default:
		t.Fatal("Flush() did not result in any HTTP request to the Pushgateway")
	}
	assert.Equal(t, http.MethodPut, got.method)
	assert.True(t, strings.HasSuffix(got.path, "/job/nightly"), "path %q", got.path)
	assert.NotEmpty(t, got.body)
}

func TestFlush_GatewayError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	b, err := NewBackend("nightly", server.URL)
	require.NoError(t, err)
	assert.Error(t, b.Flush())
}

func BenchmarkIncCounterRecord(b *testing.B) {
	backend, err := NewBackend("recjoin", "http://example.com")
	if err != nil {
		b.Fatalf("NewBackend() error = %v", err)
	}

	labels := metrics.Labels{"kind": metrics.KindJoined}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		backend.IncCounter(metrics.RecordsTotal, 1, labels)
	}
}
