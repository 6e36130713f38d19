package config

// Default field and file names for the stock dataset layout.
const (
	DefaultJob            = "recjoin"
	DefaultIdentifier     = "ssn"
	DefaultStaleField     = "last_updated"
	DefaultThreshold      = "2017-03-01T00:00:00Z"
	DefaultPartitionField = "gender"
	DefaultTarget         = "vehicle_make"
	DefaultSample         = 5
	DefaultHTTPTimeout    = "30s"
	DefaultHTTPRetries    = 3
)

// DefaultPartitionValues are reported when none are configured.
var DefaultPartitionValues = []string{"Male", "Female"}

// DefaultSources returns the four stock inputs: personal info (primary),
// vehicles, employment and update status. Paths are relative.
func DefaultSources() []Source {
	return []Source{
		{Kind: "PersonalInfo", Path: "personal_info.csv", Types: []string{"SSN", "STRING", "STRING", "STRING", "STRING"}},
		{Kind: "VehicleInfo", Path: "vehicles.csv", Types: []string{"SSN", "STRING", "STRING", "INT"}},
		{Kind: "EmploymentInfo", Path: "employment.csv", Types: []string{"STRING", "STRING", "STRING", "SSN"}},
		{Kind: "UpdateInfo", Path: "update_status.csv", Types: []string{"SSN", "DATETIME", "DATETIME"}},
	}
}

// Default returns a complete Pipeline for the stock datasets under dir.
func Default(dir string) Pipeline {
	p := Pipeline{DataDir: dir, HTTP: HTTP{Retries: DefaultHTTPRetries}}
	p.ApplyDefaults()
	return p
}

// ApplyDefaults fills every unset field.
func (p *Pipeline) ApplyDefaults() {
	if p.Job == "" {
		p.Job = DefaultJob
	}
	if p.DataDir == "" {
		p.DataDir = "."
	}
	if len(p.Sources) == 0 {
		p.Sources = DefaultSources()
	}
	for i := range p.Sources {
		if p.Sources[i].Options == nil {
			p.Sources[i].Options = Options{}
		}
	}
	if p.Join.Identifier == "" {
		p.Join.Identifier = DefaultIdentifier
	}
	if p.Stale.Field == "" {
		p.Stale.Field = DefaultStaleField
	}
	if p.Stale.Threshold == "" {
		p.Stale.Threshold = DefaultThreshold
	}
	if p.Aggregate.PartitionField == "" {
		p.Aggregate.PartitionField = DefaultPartitionField
	}
	if len(p.Aggregate.PartitionValues) == 0 {
		p.Aggregate.PartitionValues = append([]string(nil), DefaultPartitionValues...)
	}
	if p.Aggregate.Target == "" {
		p.Aggregate.Target = DefaultTarget
	}
	if p.Aggregate.Input == "" {
		p.Aggregate.Input = InputAll
	}
	if p.Report.Sample == 0 {
		p.Report.Sample = DefaultSample
	}
	if p.Metrics.Backend == "" {
		p.Metrics.Backend = MetricsNone
	}
	if p.HTTP.Timeout == "" {
		p.HTTP.Timeout = DefaultHTTPTimeout
	}
}
