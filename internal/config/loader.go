package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix marks environment overrides. A double underscore descends one
// level: RECJOIN_STALE__THRESHOLD sets stale.threshold.
const EnvPrefix = "RECJOIN_"

// flagKeys maps command-line flag names onto config keys. Flags not listed
// here are not configuration.
var flagKeys = map[string]string{
	"job":            "job",
	"data-dir":       "data_dir",
	"identifier":     "join.identifier",
	"stale-field":    "stale.field",
	"threshold":      "stale.threshold",
	"match-by-value": "stale.match_by_value",
	"partition":      "aggregate.partition_field",
	"values":         "aggregate.partition_values",
	"target":         "aggregate.target",
	"input":          "aggregate.input",
	"sample":         "report.sample",
	"metrics":        "metrics.backend",
	"pushgateway":    "metrics.url",
	"statsd":         "metrics.addr",
	"http-timeout":   "http.timeout",
	"http-retries":   "http.retries",
}

// Load builds a Pipeline. Precedence, highest first: flags that were
// explicitly set, RECJOIN_* environment variables, the file at path (YAML or
// JSON; skipped when path is empty), built-in defaults.
//
// When a file is given and data_dir is relative (or unset), it is resolved
// against the file's directory.
func Load(path string, flags *pflag.FlagSet) (Pipeline, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"job":                        DefaultJob,
		"join.identifier":            DefaultIdentifier,
		"stale.field":                DefaultStaleField,
		"stale.threshold":            DefaultThreshold,
		"aggregate.partition_field":  DefaultPartitionField,
		"aggregate.partition_values": DefaultPartitionValues,
		"aggregate.target":           DefaultTarget,
		"aggregate.input":            InputAll,
		"report.sample":              DefaultSample,
		"metrics.backend":            MetricsNone,
		"http.timeout":               DefaultHTTPTimeout,
		"http.retries":               DefaultHTTPRetries,
	}, "."), nil); err != nil {
		return Pipeline{}, fmt.Errorf("load defaults: %w", err)
	}

	baseDir := ""
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Pipeline{}, fmt.Errorf("config file: %w", err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Pipeline{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		baseDir = filepath.Dir(path)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Pipeline{}, fmt.Errorf("load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return Pipeline{}, fmt.Errorf("load flags: %w", err)
		}
	}

	var p Pipeline
	if err := k.Unmarshal("", &p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config: %w", err)
	}

	flagDataDir := flags != nil && flags.Changed("data-dir")
	if baseDir != "" && !flagDataDir && !filepath.IsAbs(p.DataDir) {
		p.DataDir = filepath.Join(baseDir, p.DataDir)
	}
	p.ApplyDefaults()
	return p, nil
}

// envKey turns RECJOIN_STALE__MATCH_BY_VALUE into stale.match_by_value. It
// returns "" for RECJOIN_DEBUG, which belongs to logging.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	if s == "DEBUG" {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// SourcePath resolves s.Path against DataDir. URLs are returned unchanged.
func (p Pipeline) SourcePath(s Source) string {
	if s.Path == "" || filepath.IsAbs(s.Path) || IsRemote(s.Path) {
		return s.Path
	}
	return filepath.Join(p.DataDir, s.Path)
}
