// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"

	"recjoin/pkg/records"
)

// Local is a filesystem data source that opens files from the local disk.
type Local struct{ path string }

// NewLocal returns a new Local data source bound to the provided filesystem
// path. The returned value is safe for concurrent use by multiple goroutines
// as long as the underlying path location is valid for concurrent reads.
func NewLocal(path string) *Local { return &Local{path: path} }

// Name returns the configured path.
func (l *Local) Name() string { return l.path }

// Open opens the configured path for reading and returns an io.ReadCloser.
//
// Behavior:
//   - If the context is already canceled or its deadline exceeded at the time
//     of the call, Open returns the context error immediately without touching
//     the filesystem.
//   - Missing, unreadable or non-regular paths (directories, devices) fail with
//     a *records.SourceUnavailableError. The underlying os error stays
//     reachable, so errors.Is(err, os.ErrNotExist) keeps working.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, &records.SourceUnavailableError{Path: l.path, Err: err}
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &records.SourceUnavailableError{Path: l.path, Err: err}
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, &records.SourceUnavailableError{Path: l.path, Err: fmt.Errorf("not a regular file (mode %s)", fi.Mode())}
	}
	return f, nil
}
