package probe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"recjoin/internal/config"
	"recjoin/internal/datasource/file"
	"recjoin/pkg/records"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func probeFile(t *testing.T, name, body string, opt Options) Result {
	t.Helper()
	res, err := Probe(context.Background(), file.NewLocal(writeFile(t, name, body)), opt)
	require.NoError(t, err)
	return res
}

func TestProbe_StockLayouts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		file     string
		body     string
		wantKind string
		want     []string
	}{
		{
			name: "personal",
			file: "personal_info.csv",
			body: "ssn,first_name,last_name,gender,language\n" +
				"100-53-9824,Sebastiano,Tester,Male,Icelandic\n" +
				"101-71-4702,Cayla,MacDonagh,Female,Lao\n",
			wantKind: "PersonalInfo",
			want:     []string{"SSN", "STRING", "STRING", "STRING", "STRING"},
		},
		{
			name: "vehicles",
			file: "vehicles.csv",
			body: "ssn,vehicle_make,vehicle_model,model_year\n" +
				"100-53-9824,Toyota,Corolla,2008\n" +
				"101-71-4702,Ford,Focus,2011\n",
			wantKind: "Vehicles",
			want:     []string{"SSN", "STRING", "STRING", "INT"},
		},
		{
			name: "employment ids are not SSNs",
			file: "employment.csv",
			body: "employer,department,employee_id,ssn\n" +
				"Stiedemann-Bailey,Research and Development,29-0890771,100-53-9824\n",
			wantKind: "Employment",
			want:     []string{"STRING", "STRING", "STRING", "SSN"},
		},
		{
			name: "update status",
			file: "update_status.csv",
			body: "ssn,last_updated,created\n" +
				"100-53-9824,2017-10-07T00:14:42Z,2016-01-24T21:19:30Z\n",
			wantKind: "UpdateStatus",
			want:     []string{"SSN", "DATETIME", "DATETIME"},
		},
		{
			name:     "dates",
			file:     "birthdays.csv",
			body:     "name,born\nAnn,3/14/1987\nBo,12/1/2001\n",
			wantKind: "Birthdays",
			want:     []string{"STRING", "DATE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := probeFile(t, tt.file, tt.body, Options{})
			assert.Equal(t, tt.wantKind, res.Kind)
			assert.Equal(t, ',', res.Comma)
			assert.Equal(t, tt.want, res.Types())
		})
	}
}

func TestProbe_InferredTypesParse(t *testing.T) {
	t.Parallel()

	res := probeFile(t, "vehicles.csv", "ssn,model_year\n100-53-9824,2008\n", Options{})
	types, err := records.ParseFieldTypes(res.Types())
	require.NoError(t, err)
	assert.Equal(t, []records.FieldType{records.TypeSSN, records.TypeInt}, types)
}

func TestProbe_BlanksAndMixedColumns(t *testing.T) {
	t.Parallel()

	res := probeFile(t, "mixed.csv", "a,b,c\n1,,x\n,,2\n3,,y\n", Options{})
	assert.Equal(t, []string{"INT", "STRING", "STRING"}, res.Types())
	assert.Equal(t, 1, res.Columns[0].Empty)
	assert.Equal(t, 3, res.Columns[1].Empty)
	assert.Equal(t, 3, res.Columns[2].Rows)
}

func TestProbe_DetectsDelimiter(t *testing.T) {
	t.Parallel()

	res := probeFile(t, "semi.csv", "ssn;make;year\n100-53-9824;Škoda;2008\n", Options{})
	assert.Equal(t, ';', res.Comma)
	assert.Equal(t, []string{"SSN", "STRING", "INT"}, res.Types())
	assert.Equal(t, ";", res.Source().Options["comma"])

	forced := probeFile(t, "semi.csv", "a;b\n1;2\n", Options{Comma: ','})
	assert.Equal(t, ',', forced.Comma)
	assert.Len(t, forced.Columns, 1)
}

func TestProbe_SkipsMisalignedRows(t *testing.T) {
	t.Parallel()

	res := probeFile(t, "ragged.csv", "a,b\n1,2\n3\n4,5,6\n7,8\n", Options{})
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 2, res.Columns[0].Rows)
	assert.Equal(t, []string{"INT", "INT"}, res.Types())
}

func TestProbe_Limits(t *testing.T) {
	t.Parallel()

	body := "n\n1\n2\nthree\n"
	assert.Equal(t, []string{"INT"}, probeFile(t, "n.csv", body, Options{MaxRows: 2}).Types())
	assert.Equal(t, []string{"STRING"}, probeFile(t, "n.csv", body, Options{}).Types())

	// The partial last line is dropped when the byte cap cuts through it.
	cut := probeFile(t, "n.csv", "n\n1\n2\nthree\n", Options{MaxBytes: len("n\n1\n2\nth")})
	assert.Equal(t, []string{"INT"}, cut.Types())
	assert.Equal(t, 2, cut.Columns[0].Rows)
}

func TestProbe_KeepsUnterminatedLastLine(t *testing.T) {
	t.Parallel()

	res := probeFile(t, "short.csv", "id,n\na,1\nb,2", Options{})
	assert.Equal(t, 2, res.Columns[0].Rows)
	assert.Equal(t, []string{"STRING", "INT"}, res.Types())

	// Exactly at the cap the last line may be partial, so it is dropped.
	capped := probeFile(t, "short.csv", "id,n\na,1\nb,2", Options{MaxBytes: len("id,n\na,1\nb,2")})
	assert.Equal(t, 1, capped.Columns[0].Rows)
}

func TestProbe_StripsBOM(t *testing.T) {
	t.Parallel()

	res := probeFile(t, "bom.csv", "\uFEFFssn,x\n100-53-9824,1\n", Options{})
	assert.Equal(t, "ssn", res.Columns[0].Name)
}

func TestProbe_Errors(t *testing.T) {
	t.Parallel()

	_, err := Probe(context.Background(), file.NewLocal(filepath.Join(t.TempDir(), "nope.csv")), Options{})
	assert.ErrorIs(t, err, records.ErrSourceUnavailable)

	_, err = Probe(context.Background(), file.NewLocal(writeFile(t, "empty.csv", "")), Options{})
	assert.ErrorContains(t, err, "no header row")
}

func TestKindFromPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "PersonalInfo", kindFromPath("/data/personal_info.csv"))
	assert.Equal(t, "UpdateStatus", kindFromPath("update-status.tsv"))
	assert.Equal(t, "Source", kindFromPath("___.csv"))
}

func TestYAML(t *testing.T) {
	t.Parallel()

	results := []Result{
		{
			Path:  "/data/vehicles.csv",
			Kind:  "VehicleInfo",
			Comma: ',',
			Columns: []Column{
				{Name: "ssn", Type: records.TypeSSN},
				{Name: "model_year", Type: records.TypeInt},
			},
		},
		{
			Path:    "/data/semi.csv",
			Kind:    "Semi",
			Comma:   ';',
			Columns: []Column{{Name: "a", Type: records.TypeString}},
		},
	}

	out, err := YAML(results)
	require.NoError(t, err)
	assert.Contains(t, string(out), "types: [SSN, INT]")

	var doc struct {
		Sources []struct {
			Kind    string            `yaml:"kind"`
			Path    string            `yaml:"path"`
			Types   []string          `yaml:"types"`
			Options map[string]string `yaml:"options"`
		} `yaml:"sources"`
	}
	require.NoError(t, yaml.Unmarshal(out, &doc))
	require.Len(t, doc.Sources, 2)
	assert.Equal(t, "VehicleInfo", doc.Sources[0].Kind)
	assert.Equal(t, "vehicles.csv", doc.Sources[0].Path)
	assert.Equal(t, []string{"SSN", "INT"}, doc.Sources[0].Types)
	assert.Nil(t, doc.Sources[0].Options, "default comma is not written")
	assert.Equal(t, map[string]string{"comma": ";"}, doc.Sources[1].Options)

	remote := Result{Path: "https://example.com/data/vehicles.csv", Kind: "Vehicles", Comma: ','}
	assert.Equal(t, "https://example.com/data/vehicles.csv", remote.Source().Path)

	// The suggestion loads back as a valid source list.
	p := config.Default(".")
	p.Sources = []config.Source{results[0].Source(), results[1].Source()}
	assert.False(t, config.HasErrors(config.ValidatePipeline(p)))
}
