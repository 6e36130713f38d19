package pipeline

import (
	"fmt"

	"go.uber.org/multierr"

	"recjoin/internal/config"
	"recjoin/internal/metrics"
	"recjoin/internal/metrics/datadog"
	"recjoin/internal/metrics/prompush"
)

// InstallMetrics selects the global metrics backend for m. The returned
// function flushes it, releases any client and restores the no-op backend;
// call it once the run is over. With MetricsNone it only resets.
func InstallMetrics(job string, m config.Metrics) (func() error, error) {
	switch m.Backend {
	case "", config.MetricsNone:
		return func() error { metrics.Reset(); return nil }, nil

	case config.MetricsPrometheus:
		b, err := prompush.NewBackend(job, m.URL)
		if err != nil {
			return nil, err
		}
		metrics.SetBackend(b)
		return func() error {
			defer metrics.Reset()
			return metrics.Flush()
		}, nil

	case config.MetricsDatadog:
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       m.Addr,
			Namespace:  m.Namespace,
			GlobalTags: append([]string{"job:" + job}, m.Tags...),
		})
		if err != nil {
			return nil, err
		}
		metrics.SetBackend(b)
		return func() error {
			defer metrics.Reset()
			return multierr.Combine(metrics.Flush(), b.Close())
		}, nil

	default:
		return nil, fmt.Errorf("metrics: unknown backend %q", m.Backend)
	}
}
