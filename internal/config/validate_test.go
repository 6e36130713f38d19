package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func issuePaths(issues []Issue, sev IssueSeverity) []string {
	var out []string
	for _, iss := range issues {
		if iss.Severity == sev {
			out = append(out, iss.Path)
		}
	}
	return out
}

func TestValidatePipeline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mutate     func(p *Pipeline)
		wantErrors []string
		wantWarns  []string
	}{
		{
			name:   "defaults are clean",
			mutate: func(p *Pipeline) {},
		},
		{
			name:      "empty job warns",
			mutate:    func(p *Pipeline) { p.Job = " " },
			wantWarns: []string{"job"},
		},
		{
			name:       "no sources",
			mutate:     func(p *Pipeline) { p.Sources = nil },
			wantErrors: []string{"sources"},
		},
		{
			name: "bad source fields",
			mutate: func(p *Pipeline) {
				p.Sources[1].Kind = ""
				p.Sources[2].Path = ""
				p.Sources[3].Types = []string{"SSN", "FLOAT"}
			},
			wantErrors: []string{"sources[1].kind", "sources[2].path", "sources[3].types"},
		},
		{
			name:       "missing types",
			mutate:     func(p *Pipeline) { p.Sources[0].Types = nil },
			wantErrors: []string{"sources[0].types"},
		},
		{
			name:      "duplicate kind warns",
			mutate:    func(p *Pipeline) { p.Sources[2].Kind = "VehicleInfo" },
			wantWarns: []string{"sources[2].kind"},
		},
		{
			name:      "primary without ssn column warns",
			mutate:    func(p *Pipeline) { p.Sources[0].Types = []string{"STRING", "STRING"} },
			wantWarns: []string{"sources[0].types"},
		},
		{
			name: "bad dialect options",
			mutate: func(p *Pipeline) {
				p.Sources[0].Options = Options{
					"comma":      ";;",
					"encoding":   "klingon-8",
					"header_map": "nope",
					"has_header": true,
				}
				p.Sources[1].Options = Options{"comma": "\""}
			},
			wantErrors: []string{"sources[0].options.comma", "sources[0].options.encoding", "sources[1].options.comma"},
			wantWarns:  []string{"sources[0].options.header_map", "sources[0].options.has_header"},
		},
		{
			name:   "known encoding passes",
			mutate: func(p *Pipeline) { p.Sources[0].Options = Options{"encoding": "windows-1250", "comma": "\t"} },
		},
		{
			name:       "empty identifier",
			mutate:     func(p *Pipeline) { p.Join.Identifier = "" },
			wantErrors: []string{"join.identifier"},
		},
		{
			name: "bad stale settings",
			mutate: func(p *Pipeline) {
				p.Stale.Field = ""
				p.Stale.Threshold = "2017-03-01"
			},
			wantErrors: []string{"stale.field", "stale.threshold"},
		},
		{
			name: "bad aggregate settings",
			mutate: func(p *Pipeline) {
				p.Aggregate.PartitionField = ""
				p.Aggregate.Target = ""
				p.Aggregate.PartitionValues = nil
				p.Aggregate.Input = "stale"
			},
			wantErrors: []string{"aggregate.partition_field", "aggregate.target", "aggregate.input"},
			wantWarns:  []string{"aggregate.partition_values"},
		},
		{
			name:       "prometheus needs url",
			mutate:     func(p *Pipeline) { p.Metrics.Backend = MetricsPrometheus },
			wantErrors: []string{"metrics.url"},
		},
		{
			name:       "datadog needs addr",
			mutate:     func(p *Pipeline) { p.Metrics.Backend = MetricsDatadog },
			wantErrors: []string{"metrics.addr"},
		},
		{
			name:       "unknown metrics backend",
			mutate:     func(p *Pipeline) { p.Metrics.Backend = "graphite" },
			wantErrors: []string{"metrics.backend"},
		},
		{
			name: "http settings ignored for local sources",
			mutate: func(p *Pipeline) {
				p.HTTP = HTTP{Timeout: "soon", Retries: -1}
			},
		},
		{
			name: "remote sources check http settings",
			mutate: func(p *Pipeline) {
				p.Sources[1].Path = "https://example.com/vehicles.csv"
				p.HTTP = HTTP{Timeout: "soon", Retries: -1, InsecureSkipVerify: true}
			},
			wantErrors: []string{"http.timeout", "http.retries"},
			wantWarns:  []string{"http.insecure_skip_verify"},
		},
		{
			name: "remote source with defaults",
			mutate: func(p *Pipeline) {
				p.Sources[0].Path = "http://127.0.0.1:8080/personal_info.csv"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := Default("data")
			tt.mutate(&p)
			issues := ValidatePipeline(p)

			assert.Equal(t, tt.wantErrors, issuePaths(issues, SeverityError))
			assert.Equal(t, tt.wantWarns, issuePaths(issues, SeverityWarning))
			assert.Equal(t, len(tt.wantErrors) > 0, HasErrors(issues))
		})
	}
}

func TestIssue_Error(t *testing.T) {
	t.Parallel()

	iss := Issue{Severity: SeverityError, Path: "stale.field", Message: "must not be empty"}
	assert.Equal(t, "error at stale.field: must not be empty", iss.Error())
}
