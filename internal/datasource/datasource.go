// Package datasource abstracts where raw tabular bytes come from. A Source
// only opens a stream; parsing belongs to internal/parser.
package datasource

import (
	"context"
	"io"
)

// Source opens a fresh reader over the underlying data. Each call to Open
// returns an independent stream that the caller must Close.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name identifies the source in logs and errors (e.g. a file path).
	Name() string
}
