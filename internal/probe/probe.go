// Package probe samples the head of a delimited file and suggests a source
// configuration for it: the record kind, the delimiter and one type tag per
// column.
//
// Inference is best-effort. A column gets the narrowest tag that every
// non-empty sampled value satisfies, trying INT, DATETIME, SSN and DATE in
// that order and falling back to STRING. The suggestion is meant to be
// reviewed, not trusted blindly: a column of "1/2/3" values is a DATE as far
// as the sample can tell.
package probe

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"recjoin/internal/config"
	"recjoin/internal/datasource"
	"recjoin/internal/transformer"
	"recjoin/pkg/records"
)

// Defaults for Options.
const (
	DefaultMaxBytes = 64 << 10
	DefaultMaxRows  = 1000
)

// candidate delimiters, in tie-break order.
var delimiters = []rune{',', ';', '\t', '|'}

// Options control sampling.
type Options struct {
	// MaxBytes caps how much of the file is read.
	MaxBytes int
	// MaxRows caps how many data rows are inspected.
	MaxRows int
	// Comma forces the delimiter. Zero means detect it from the header line.
	Comma rune
}

func (o Options) withDefaults() Options {
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.MaxRows <= 0 {
		o.MaxRows = DefaultMaxRows
	}
	return o
}

// Column is the inference for one header.
type Column struct {
	Name  string
	Type  records.FieldType
	Rows  int // sampled values
	Empty int // sampled values that were blank
}

// Result describes one probed file.
type Result struct {
	Path    string
	Kind    string
	Comma   rune
	Columns []Column

	// Skipped counts sampled lines that failed to parse or had the wrong
	// width.
	Skipped int
}

// Types returns the inferred tags, one per column.
func (r Result) Types() []string {
	out := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		out[i] = c.Type.String()
	}
	return out
}

// Source returns the suggested source configuration. A file path is cut to
// its base name, ready to sit under a data_dir; URLs are kept whole.
func (r Result) Source() config.Source {
	path := filepath.Base(r.Path)
	if config.IsRemote(r.Path) {
		path = r.Path
	}
	s := config.Source{
		Kind:    r.Kind,
		Path:    path,
		Types:   r.Types(),
		Options: config.Options{},
	}
	if r.Comma != ',' {
		s.Options["comma"] = string(r.Comma)
	}
	return s
}

// Probe reads the head of src and infers its layout.
func Probe(ctx context.Context, src datasource.Source, opt Options) (Result, error) {
	opt = opt.withDefaults()

	rc, err := src.Open(ctx)
	if err != nil {
		return Result{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, int64(opt.MaxBytes)))
	if err != nil {
		return Result{}, fmt.Errorf("probe %s: read sample: %w", src.Name(), err)
	}
	// A sample that hit the byte cap may end mid-record; cut back to the last
	// newline. A file that fit whole keeps its final unterminated line.
	if len(data) == opt.MaxBytes {
		if i := bytes.LastIndexByte(data, '\n'); i > 0 {
			data = data[:i+1]
		}
	}
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))

	comma := opt.Comma
	if comma == 0 {
		comma = detectDelimiter(data)
	}

	headers, rows, skipped, err := readSample(data, comma, opt.MaxRows)
	if err != nil {
		return Result{}, fmt.Errorf("probe %s: %w", src.Name(), err)
	}

	res := Result{
		Path:    src.Name(),
		Kind:    kindFromPath(src.Name()),
		Comma:   comma,
		Columns: make([]Column, len(headers)),
		Skipped: skipped,
	}
	for i, h := range headers {
		col := Column{Name: h, Rows: len(rows)}
		values := make([]string, 0, len(rows))
		for _, row := range rows {
			if v := strings.TrimSpace(row[i]); v != "" {
				values = append(values, v)
			} else {
				col.Empty++
			}
		}
		col.Type = inferType(values)
		res.Columns[i] = col
	}
	return res, nil
}

// detectDelimiter picks the candidate that occurs most often in the header
// line, defaulting to ','.
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestN := ',', 0
	for _, d := range delimiters {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// readSample parses the header and up to maxRows data rows. Malformed or
// misaligned rows are skipped and counted.
func readSample(data []byte, comma rune, maxRows int) ([]string, [][]string, int, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	headers, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, 0, errors.New("no header row")
	}
	if err != nil {
		return nil, nil, 0, fmt.Errorf("read header: %w", err)
	}
	headers = append([]string(nil), headers...)

	var (
		rows    [][]string
		skipped int
	)
	for len(rows) < maxRows {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil || len(rec) != len(headers) {
			skipped++
			continue
		}
		rows = append(rows, rec)
	}
	return headers, rows, skipped, nil
}

// inferType returns the narrowest tag all values satisfy.
func inferType(values []string) records.FieldType {
	if len(values) == 0 {
		return records.TypeString
	}
	for _, c := range []struct {
		t  records.FieldType
		ok func(string) bool
	}{
		{records.TypeInt, casts(records.TypeInt)},
		{records.TypeDateTime, casts(records.TypeDateTime)},
		{records.TypeSSN, digitGroups(3, 2, 4)},
		{records.TypeDate, isDate},
	} {
		if allMatch(values, c.ok) {
			return c.t
		}
	}
	return records.TypeString
}

func casts(t records.FieldType) func(string) bool {
	return func(s string) bool {
		_, err := transformer.CastValue(t, s)
		return err == nil
	}
}

// digitGroups matches dash-separated digit groups of exactly the given
// widths, e.g. 3-2-4 for "100-53-9824".
func digitGroups(widths ...int) func(string) bool {
	return func(s string) bool {
		parts := strings.Split(s, "-")
		if len(parts) != len(widths) {
			return false
		}
		for i, p := range parts {
			if len(p) != widths[i] || !isDigits(p) {
				return false
			}
		}
		return true
	}
}

// isDate matches m/d/yyyy with numeric parts.
func isDate(s string) bool {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" || len(p) > 4 || !isDigits(p) {
			return false
		}
	}
	return len(parts[2]) == 4
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func allMatch(vals []string, fn func(string) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

// kindFromPath turns "personal_info.csv" into "PersonalInfo".
func kindFromPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	title := cases.Title(language.Und)

	var b strings.Builder
	for _, part := range strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	}) {
		b.WriteString(title.String(part))
	}
	if b.Len() == 0 {
		return "Source"
	}
	return b.String()
}

type sourceYAML struct {
	Kind    string         `yaml:"kind"`
	Path    string         `yaml:"path"`
	Types   []string       `yaml:"types,flow"`
	Options map[string]any `yaml:"options,omitempty"`
}

// YAML renders results as a sources block that can be pasted into a
// pipeline config.
func YAML(results []Result) ([]byte, error) {
	doc := struct {
		Sources []sourceYAML `yaml:"sources"`
	}{}
	for _, r := range results {
		s := r.Source()
		doc.Sources = append(doc.Sources, sourceYAML{
			Kind:    s.Kind,
			Path:    s.Path,
			Types:   s.Types,
			Options: s.Options,
		})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
