// Package config defines the configuration model for a recjoin run: which
// tabular inputs to read and how to type them, the join identifier, the
// staleness rule and the aggregation to report.
//
// A Pipeline is usually produced by Load, which layers built-in defaults, an
// optional YAML/JSON file, RECJOIN_* environment variables and command-line
// flags. Default returns the stock four-dataset layout.
//
// Example:
//
//	job: nightly
//	data_dir: ./data
//	sources:
//	  - kind: PersonalInfo
//	    path: personal_info.csv
//	    types: [SSN, STRING, STRING, STRING, STRING]
//	  - kind: VehicleInfo
//	    path: vehicles.csv
//	    types: [SSN, STRING, STRING, INT]
//	    options: { comma: ";", encoding: windows-1250 }
//	stale:
//	  field: last_updated
//	  threshold: 2017-03-01T00:00:00Z
//	aggregate:
//	  partition_field: gender
//	  partition_values: [Male, Female]
//	  target: vehicle_make
package config

import (
	"encoding/json"
	"strings"
	"time"

	"recjoin/pkg/records"
)

// Aggregate inputs.
const (
	InputAll     = "all"
	InputCurrent = "current"
)

// Metrics backends.
const (
	MetricsNone       = "none"
	MetricsPrometheus = "prometheus"
	MetricsDatadog    = "datadog"
)

// Pipeline is the top-level run configuration.
type Pipeline struct {
	// Job labels logs and metrics for the run.
	Job string `koanf:"job" json:"job"`

	// DataDir anchors relative source paths.
	DataDir string `koanf:"data_dir" json:"data_dir"`

	// Sources are joined in order; the first is the primary.
	Sources []Source `koanf:"sources" json:"sources"`

	Join      Join      `koanf:"join" json:"join"`
	Stale     Stale     `koanf:"stale" json:"stale"`
	Aggregate Aggregate `koanf:"aggregate" json:"aggregate"`
	Report    Report    `koanf:"report" json:"report"`
	Metrics   Metrics   `koanf:"metrics" json:"metrics"`
	HTTP      HTTP      `koanf:"http" json:"http"`
}

// Source is one delimited input file.
type Source struct {
	// Kind is the record-kind label, e.g. "VehicleInfo".
	Kind string `koanf:"kind" json:"kind"`

	// Path is the file to read, relative to Pipeline.DataDir unless absolute.
	Path string `koanf:"path" json:"path"`

	// Types holds one type tag per column (STRING, INT, DATE, SSN, DATETIME).
	Types []string `koanf:"types" json:"types"`

	// Options is the CSV dialect bag: comma, trim_space, lazy_quotes,
	// encoding, normalize_headers, header_map.
	Options Options `koanf:"options" json:"options"`
}

// FieldTypes parses Types.
func (s Source) FieldTypes() ([]records.FieldType, error) {
	return records.ParseFieldTypes(s.Types)
}

// Join configures the positional join.
type Join struct {
	Identifier string `koanf:"identifier" json:"identifier"`
}

// Stale configures the freshness filter.
type Stale struct {
	Field        string `koanf:"field" json:"field"`
	Threshold    string `koanf:"threshold" json:"threshold"`
	MatchByValue bool   `koanf:"match_by_value" json:"match_by_value"`
}

// ThresholdTimestamp parses Threshold.
func (s Stale) ThresholdTimestamp() (records.Timestamp, error) {
	return records.ParseTimestamp(s.Threshold)
}

// Aggregate configures the largest-group report.
type Aggregate struct {
	PartitionField  string   `koanf:"partition_field" json:"partition_field"`
	PartitionValues []string `koanf:"partition_values" json:"partition_values"`
	Target          string   `koanf:"target" json:"target"`

	// Input is InputAll (every joined record) or InputCurrent (stale
	// records excluded).
	Input string `koanf:"input" json:"input"`
}

// Report controls the CLI summary.
type Report struct {
	// Sample is how many joined records to print.
	Sample int `koanf:"sample" json:"sample"`
}

// Metrics selects where run metrics go.
type Metrics struct {
	Backend string `koanf:"backend" json:"backend"`

	// URL is the Pushgateway base URL for the prometheus backend.
	URL string `koanf:"url" json:"url"`

	// Addr is the DogStatsD address for the datadog backend.
	Addr      string   `koanf:"addr" json:"addr"`
	Namespace string   `koanf:"namespace" json:"namespace"`
	Tags      []string `koanf:"tags" json:"tags"`
}

// HTTP configures how sources with an http:// or https:// path are fetched.
type HTTP struct {
	// Timeout bounds connect and response headers for each attempt, as a Go
	// duration ("30s"). Body reads are not timed.
	Timeout string `koanf:"timeout" json:"timeout"`

	// Retries is how many times a transport error, 429 or 5xx is retried.
	Retries int `koanf:"retries" json:"retries"`

	InsecureSkipVerify bool `koanf:"insecure_skip_verify" json:"insecure_skip_verify"`
}

// TimeoutDuration parses Timeout.
func (h HTTP) TimeoutDuration() (time.Duration, error) {
	return time.ParseDuration(h.Timeout)
}

// IsRemote reports whether path names an HTTP resource rather than a file.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// Options is a small helper to fetch typed values from a free-form map. It
// performs only minimal type coercion and returns provided defaults when a key
// is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers arrive as float64
// and YAML integers as int or int64; all three are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored. Returns an empty map
// when the key is missing or the value is not an object.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		switch m := v.(type) {
		case map[string]any:
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		case map[string]string:
			for k, s := range m {
				res[k] = s
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of strings.
// Returns nil when the key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON decodes a missing or null object to a non-nil, empty Options.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
