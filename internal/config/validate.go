package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"recjoin/pkg/records"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "sources[1].types[3]").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static checks over p without touching the
// filesystem. Callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  "job is empty; logs and metrics will not identify the run",
		})
	}
	issues = append(issues, validateSources(p.Sources, p.Join.Identifier)...)
	issues = append(issues, validateStale(p.Stale)...)
	issues = append(issues, validateAggregate(p.Aggregate)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	if usesHTTP(p.Sources) {
		issues = append(issues, validateHTTP(p.HTTP)...)
	}

	return issues
}

func validateSources(ss []Source, identifier string) []Issue {
	var issues []Issue

	if strings.TrimSpace(identifier) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "join.identifier",
			Message:  "join.identifier must not be empty",
		})
	}
	if len(ss) == 0 {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "sources",
			Message:  "at least one source is required",
		})
	}

	kinds := map[string]int{}
	for i, s := range ss {
		base := fmt.Sprintf("sources[%d]", i)

		if strings.TrimSpace(s.Kind) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     base + ".kind",
				Message:  "source kind must not be empty",
			})
		} else if prev, ok := kinds[s.Kind]; ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     base + ".kind",
				Message:  fmt.Sprintf("kind %q already used by sources[%d]; join statistics will merge them", s.Kind, prev),
			})
		} else {
			kinds[s.Kind] = i
		}

		if strings.TrimSpace(s.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     base + ".path",
				Message:  "source path must not be empty",
			})
		}

		if len(s.Types) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     base + ".types",
				Message:  "source needs one type tag per column",
			})
		} else if _, err := s.FieldTypes(); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     base + ".types",
				Message:  err.Error(),
			})
		}

		issues = append(issues, validateOptions(base+".options", s.Options)...)
	}

	if first := ss[0]; len(first.Types) > 0 && !hasType(first.Types, records.TypeSSN) && identifier == DefaultIdentifier {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "sources[0].types",
			Message:  "primary source has no SSN column; the ssn identifier will likely be missing",
		})
	}
	return issues
}

func hasType(tags []string, want records.FieldType) bool {
	for _, tag := range tags {
		if ft, err := records.ParseFieldType(tag); err == nil && ft == want {
			return true
		}
	}
	return false
}

func validateOptions(path string, o Options) []Issue {
	var issues []Issue

	if v, ok := o["comma"]; ok {
		s, isStr := v.(string)
		if !isStr || len([]rune(s)) != 1 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".comma",
				Message:  "comma must be a single character",
			})
		} else if s == "\"" || s == "\r" || s == "\n" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".comma",
				Message:  fmt.Sprintf("comma %q is not a valid delimiter", s),
			})
		}
	}
	if enc := o.String("encoding", ""); enc != "" {
		if _, err := htmlindex.Get(enc); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".encoding",
				Message:  fmt.Sprintf("unknown encoding %q", enc),
			})
		}
	}
	if v, ok := o["header_map"]; ok {
		if _, isMap := v.(map[string]any); !isMap {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path + ".header_map",
				Message:  "header_map is not an object; it will be ignored",
			})
		}
	}

	known := map[string]struct{}{
		"comma": {}, "trim_space": {}, "lazy_quotes": {},
		"encoding": {}, "normalize_headers": {}, "header_map": {},
	}
	for _, k := range slices.Sorted(maps.Keys(o)) {
		if _, ok := known[k]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path + "." + k,
				Message:  fmt.Sprintf("unknown option %q", k),
			})
		}
	}
	return issues
}

func validateStale(s Stale) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Field) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "stale.field",
			Message:  "stale.field must not be empty",
		})
	}
	if _, err := s.ThresholdTimestamp(); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "stale.threshold",
			Message:  fmt.Sprintf("threshold must look like 2017-03-01T00:00:00Z: %v", err),
		})
	}
	return issues
}

func validateAggregate(a Aggregate) []Issue {
	var issues []Issue
	if strings.TrimSpace(a.PartitionField) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "aggregate.partition_field",
			Message:  "aggregate.partition_field must not be empty",
		})
	}
	if strings.TrimSpace(a.Target) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "aggregate.target",
			Message:  "aggregate.target must not be empty",
		})
	}
	if len(a.PartitionValues) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "aggregate.partition_values",
			Message:  "no partition values; nothing will be aggregated",
		})
	}
	switch a.Input {
	case InputAll, InputCurrent:
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "aggregate.input",
			Message:  fmt.Sprintf("input must be %q or %q, got %q", InputAll, InputCurrent, a.Input),
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", MetricsNone:
		return nil
	case MetricsPrometheus:
		if strings.TrimSpace(m.URL) == "" {
			return []Issue{{
				Severity: SeverityError,
				Path:     "metrics.url",
				Message:  "prometheus backend requires a Pushgateway URL",
			}}
		}
	case MetricsDatadog:
		if strings.TrimSpace(m.Addr) == "" {
			return []Issue{{
				Severity: SeverityError,
				Path:     "metrics.addr",
				Message:  "datadog backend requires a DogStatsD address",
			}}
		}
	default:
		return []Issue{{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q", m.Backend),
		}}
	}
	return nil
}

func usesHTTP(ss []Source) bool {
	return slices.ContainsFunc(ss, func(s Source) bool { return IsRemote(s.Path) })
}

func validateHTTP(h HTTP) []Issue {
	var issues []Issue
	if d, err := h.TimeoutDuration(); err != nil || d <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "http.timeout",
			Message:  fmt.Sprintf("timeout %q must be a positive duration such as 30s", h.Timeout),
		})
	}
	if h.Retries < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "http.retries",
			Message:  "retries must not be negative",
		})
	}
	if h.InsecureSkipVerify {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "http.insecure_skip_verify",
			Message:  "TLS certificates of remote sources are not verified",
		})
	}
	return issues
}
