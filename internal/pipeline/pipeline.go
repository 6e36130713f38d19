// Package pipeline runs a full recjoin pass: open the configured sources,
// join them on the identifier, split stale from current records and report
// the largest target group per partition value.
//
// The CLI layer stays thin. It builds a config.Pipeline, installs a metrics
// backend and calls Run; everything that touches the inputs happens here.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"recjoin/internal/aggregate"
	"recjoin/internal/config"
	"recjoin/internal/datasource"
	"recjoin/internal/datasource/file"
	"recjoin/internal/datasource/httpds"
	"recjoin/internal/join"
	"recjoin/internal/logging"
	"recjoin/internal/metrics"
	csvparser "recjoin/internal/parser/csv"
	"recjoin/internal/stale"
	"recjoin/internal/transformer"
	"recjoin/pkg/records"
)

// SourceInfo describes one opened input.
type SourceInfo struct {
	Kind   string
	Path   string
	Fields []string
}

// Result is everything a run produced.
type Result struct {
	RunID string
	Job   string

	Sources []SourceInfo

	// Fields is the union of every source's field names, first-seen order.
	Fields []string

	// Records are the joined records in primary order.
	Records []records.Record
	Join    join.Stats

	Partition stale.Result

	// Input is the record set the groups were computed over (config.InputAll
	// or config.InputCurrent).
	Input  string
	Groups []aggregate.Group

	Duration time.Duration
}

// Function variable used as a test seam.
var openSourceFn = func(ctx context.Context, ds datasource.Source, spec csvparser.Spec) (join.Source, error) {
	src, err := csvparser.New(ctx, ds, spec)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// SourceFor returns the datasource behind path: a GET request for http and
// https URLs, the local file otherwise.
func SourceFor(h config.HTTP, path string) (datasource.Source, error) {
	if !config.IsRemote(path) {
		return file.NewLocal(path), nil
	}
	timeout, err := h.TimeoutDuration()
	if err != nil {
		return nil, fmt.Errorf("http.timeout: %w", err)
	}
	client := httpds.NewClient(httpds.Config{
		Timeout:            timeout,
		MaxRetries:         h.Retries,
		InsecureSkipVerify: h.InsecureSkipVerify,
	})
	return httpds.NewRemote(client, path), nil
}

// openSource resolves s and reads its header.
func openSource(ctx context.Context, cfg config.Pipeline, i int) (join.Source, string, error) {
	s := cfg.Sources[i]
	types, err := s.FieldTypes()
	if err != nil {
		return nil, "", fmt.Errorf("sources[%d]: %w", i, err)
	}
	path := cfg.SourcePath(s)
	ds, err := SourceFor(cfg.HTTP, path)
	if err != nil {
		return nil, "", err
	}
	src, err := openSourceFn(ctx, ds, csvparser.Spec{
		Kind:    s.Kind,
		Types:   types,
		Options: csvparser.OptionsFrom(s.Options),
	})
	return src, path, err
}

type run struct {
	cfg    config.Pipeline
	log    *zap.SugaredLogger
	result *Result
}

// Run executes cfg end to end. Configuration errors are reported before any
// file is opened.
//
// When a partition value matches no record, Run returns the result computed
// so far (groups for the preceding values included) together with a
// *records.EmptyGroupError. Any other failure returns a nil Result.
func Run(ctx context.Context, cfg config.Pipeline) (*Result, error) {
	start := time.Now()

	issues := config.ValidatePipeline(cfg)
	if config.HasErrors(issues) {
		var errs error
		for _, iss := range issues {
			if iss.Severity == config.SeverityError {
				errs = multierr.Append(errs, iss)
			}
		}
		return nil, fmt.Errorf("invalid config: %w", errs)
	}

	r := &run{
		cfg: cfg,
		result: &Result{
			RunID: uuid.NewString(),
			Job:   cfg.Job,
			Input: cfg.Aggregate.Input,
		},
	}
	r.log = logging.FromContext(ctx).With("job", cfg.Job, "run_id", r.result.RunID)
	for _, iss := range issues {
		r.log.Warnf("config: %s: %s", iss.Path, iss.Message)
	}

	sources, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.join(ctx, sources); err != nil {
		return nil, err
	}
	if err := r.filter(); err != nil {
		return nil, err
	}
	err = r.aggregate(sources)

	r.result.Duration = time.Since(start)
	if err != nil {
		if errors.Is(err, records.ErrEmptyGroup) {
			return r.result, err
		}
		return nil, err
	}
	r.log.Infof("run: completed in %s", r.result.Duration.Truncate(time.Millisecond))
	return r.result, nil
}

// step times fn and records it under name.
func (r *run) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	metrics.RecordStep(r.cfg.Job, name, err, d)
	if err != nil {
		r.log.Errorw(name+": failed", "elapsed", d, "error", err)
	} else {
		r.log.Debugw(name+": done", "elapsed", d)
	}
	return err
}

// open opens every configured source in order. On failure the sources
// already opened are closed again.
func (r *run) open(ctx context.Context) ([]join.Source, error) {
	var out []join.Source
	err := r.step(metrics.StepOpen, func() error {
		for i, s := range r.cfg.Sources {
			src, path, err := openSource(ctx, r.cfg, i)
			if err != nil {
				return err
			}
			out = append(out, src)

			fields := src.Schema().Names()
			r.result.Sources = append(r.result.Sources, SourceInfo{Kind: s.Kind, Path: path, Fields: fields})
			r.log.Infof("open: kind=%s path=%s fields=%d", s.Kind, path, len(fields))
		}
		return nil
	})
	if err != nil {
		var errs error
		for _, src := range out {
			errs = multierr.Append(errs, src.Close())
		}
		if errs != nil {
			r.log.Warnf("open: closing sources after failure: %v", errs)
		}
		return nil, err
	}

	schemas := make([]*records.Schema, len(out))
	for i, src := range out {
		schemas[i] = src.Schema()
	}
	r.result.Fields = join.FieldNames(schemas...)
	return out, nil
}

// join drains the joined stream. The join closes every source when it ends.
func (r *run) join(ctx context.Context, sources []join.Source) error {
	return r.step(metrics.StepJoin, func() error {
		recs, err := join.Collect(join.Join(ctx, sources, r.cfg.Join.Identifier, join.WithStats(&r.result.Join)))
		if err != nil {
			return fmt.Errorf("join: after %d records: %w", len(recs), err)
		}
		r.result.Records = recs

		metrics.RecordRow(r.cfg.Job, metrics.KindJoined, int64(len(recs)))
		for kind, n := range r.result.Join.Mismatched {
			metrics.RecordMismatches(r.cfg.Job, kind, int64(n))
			r.log.Warnf("join: kind=%s mismatched=%d", kind, n)
		}
		r.log.Infof("join: records=%d", len(recs))
		return nil
	})
}

func (r *run) filter() error {
	return r.step(metrics.StepFilter, func() error {
		threshold, err := r.cfg.Stale.ThresholdTimestamp()
		if err != nil {
			return fmt.Errorf("stale threshold: %w", err)
		}
		var opts []stale.Option
		if r.cfg.Stale.MatchByValue {
			opts = append(opts, stale.MatchByValue())
		}
		part, err := stale.Partition(r.result.Records, threshold, r.cfg.Stale.Field, opts...)
		if err != nil {
			return err
		}
		r.result.Partition = part

		metrics.RecordRow(r.cfg.Job, metrics.KindStale, int64(part.StaleCount()))
		metrics.RecordRow(r.cfg.Job, metrics.KindCurrent, int64(part.CurrentCount()))
		metrics.RecordRow(r.cfg.Job, metrics.KindUntimed, int64(part.Untimed))
		r.log.Infof("filter: threshold=%s stale=%d current=%d untimed=%d",
			threshold, part.StaleCount(), part.CurrentCount(), part.Untimed)
		return nil
	})
}

func (r *run) aggregate(sources []join.Source) error {
	return r.step(metrics.StepAggregate, func() error {
		a := r.cfg.Aggregate
		values, err := partitionValues(sources, a.PartitionField, a.PartitionValues)
		if err != nil {
			return err
		}

		input := r.result.Records
		if a.Input == config.InputCurrent {
			input = r.result.Partition.CurrentRecords()
		}

		groups, err := aggregate.LargestGroups(input, a.PartitionField, values, a.Target)
		r.result.Groups = groups
		for _, g := range groups {
			r.log.Infof("aggregate: %s=%v %s=%v count=%d size=%d", g.Field, g.Value, g.Target, g.Winners, g.Count, g.Size)
		}
		return err
	})
}

// partitionValues casts the configured values to the type of field in the
// first source that declares it, so they compare equal to joined values.
// Values for a field no source declares stay strings.
func partitionValues(sources []join.Source, field string, raw []string) ([]any, error) {
	var schema *records.Schema
	col := -1
	for _, src := range sources {
		if i := src.Schema().Index(field); i >= 0 {
			schema, col = src.Schema(), i
			break
		}
	}

	out := make([]any, 0, len(raw))
	for _, s := range raw {
		if schema == nil {
			out = append(out, s)
			continue
		}
		v, err := transformer.CastValue(schema.Type(col), s)
		if err != nil {
			return nil, &records.CastError{
				Kind:  schema.Kind(),
				Field: field,
				Type:  schema.Type(col),
				Value: s,
				Err:   err,
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// Sample returns at most the first n records.
func Sample(recs []records.Record, n int) []records.Record {
	if n <= 0 {
		return nil
	}
	return recs[:min(n, len(recs))]
}

// Inspect opens every configured source just far enough to read its header,
// then closes it. It returns each source's fields and their union.
func Inspect(ctx context.Context, cfg config.Pipeline) ([]SourceInfo, []string, error) {
	var (
		infos   []SourceInfo
		schemas []*records.Schema
	)
	for i, s := range cfg.Sources {
		src, path, err := openSource(ctx, cfg, i)
		if err != nil {
			return nil, nil, err
		}
		schema := src.Schema()
		if err := src.Close(); err != nil {
			return nil, nil, fmt.Errorf("close %s: %w", path, err)
		}
		schemas = append(schemas, schema)
		infos = append(infos, SourceInfo{Kind: s.Kind, Path: path, Fields: schema.Names()})
	}
	return infos, join.FieldNames(schemas...), nil
}
