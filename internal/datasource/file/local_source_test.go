package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recjoin/pkg/records"
)

// TestLocalOpen covers success, missing file, directories, and a pre-canceled
// context. Table-driven to make behavior clear and extensible.
func TestLocalOpen(t *testing.T) {
	t.Parallel()

	type tc struct {
		name        string
		prepare     func(t *testing.T) string // returns path to open
		makeCtx     func(t *testing.T) context.Context
		wantErrIs   []error // each checked via errors.Is
		wantContent string  // if non-empty, verifies read content on success
	}

	cases := []tc{
		{
			name: "success_reads_content",
			prepare: func(t *testing.T) string {
				t.Helper()
				p := filepath.Join(t.TempDir(), "personal_info.csv")
				require.NoError(t, os.WriteFile(p, []byte("ssn,gender\n111-11-1111,Male\n"), 0o644))
				return p
			},
			makeCtx:     func(t *testing.T) context.Context { return context.Background() },
			wantContent: "ssn,gender\n111-11-1111,Male\n",
		},
		{
			name: "missing_file_is_source_unavailable",
			prepare: func(t *testing.T) string {
				t.Helper()
				return filepath.Join(t.TempDir(), "missing.csv")
			},
			makeCtx:   func(t *testing.T) context.Context { return context.Background() },
			wantErrIs: []error{records.ErrSourceUnavailable, os.ErrNotExist},
		},
		{
			name: "directory_is_source_unavailable",
			prepare: func(t *testing.T) string {
				t.Helper()
				return t.TempDir()
			},
			makeCtx:   func(t *testing.T) context.Context { return context.Background() },
			wantErrIs: []error{records.ErrSourceUnavailable},
		},
		{
			name: "pre_canceled_context_short_circuits",
			prepare: func(t *testing.T) string {
				t.Helper()
				p := filepath.Join(t.TempDir(), "data.csv")
				require.NoError(t, os.WriteFile(p, []byte("ignored"), 0o644))
				return p
			},
			makeCtx: func(t *testing.T) context.Context {
				t.Helper()
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			wantErrIs: []error{context.Canceled},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			path := c.prepare(t)
			src := NewLocal(path)
			assert.Equal(t, path, src.Name())

			rc, err := src.Open(c.makeCtx(t))
			if len(c.wantErrIs) > 0 {
				require.Error(t, err)
				assert.Nil(t, rc, "no ReadCloser on error")
				for _, target := range c.wantErrIs {
					assert.ErrorIs(t, err, target)
				}
				return
			}

			require.NoError(t, err)
			defer rc.Close()
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, c.wantContent, string(got))
		})
	}
}

// BenchmarkLocalOpen_Success measures the steady-state cost of opening a small file.
func BenchmarkLocalOpen_Success(b *testing.B) {
	p := filepath.Join(b.TempDir(), "data.csv")
	if err := os.WriteFile(p, []byte("payload"), 0o644); err != nil {
		b.Fatalf("write test file: %v", err)
	}

	src := NewLocal(p)
	ctx := context.Background()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rc, err := src.Open(ctx)
		if err != nil {
			b.Fatal(err)
		}
		if err := rc.Close(); err != nil {
			b.Fatal(err)
		}
	}
}
