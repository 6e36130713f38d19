// Package csv reads delimited text files as lazy, typed record streams.
//
// A Source reads the header row once when it is opened, binds a
// records.Schema from the header names and the caller's type tags, and then
// casts one row per pull. Nothing is buffered beyond the current row.
package csv

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"recjoin/internal/config"
)

// Options configures the CSV dialect. All fields are optional; the zero value
// reads comma-separated, double-quote quoted UTF-8 with values kept verbatim.
type Options struct {
	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing spaces from every data value before
	// casting. Off by default so STRING fields pass through unchanged.
	TrimSpace bool

	// LazyQuotes relaxes quote handling (see encoding/csv.Reader.LazyQuotes).
	LazyQuotes bool

	// Encoding names the input character set (any WHATWG label, e.g.
	// "windows-1250", "iso-8859-2"). Empty or "utf-8" means UTF-8.
	Encoding string

	// NormalizeHeaders lowercases header names and replaces spaces with
	// underscores. Header names are otherwise used verbatim as field names.
	NormalizeHeaders bool

	// HeaderMap maps source header names to canonical field names. It is
	// applied after BOM stripping and before NormalizeHeaders.
	HeaderMap map[string]string
}

// OptionsFrom reads dialect settings from a pipeline options bag. Recognized
// keys: comma (string), trim_space (bool), lazy_quotes (bool), encoding
// (string), normalize_headers (bool), header_map (object).
func OptionsFrom(o config.Options) Options {
	return Options{
		Comma:            o.Rune("comma", ','),
		TrimSpace:        o.Bool("trim_space", false),
		LazyQuotes:       o.Bool("lazy_quotes", false),
		Encoding:         o.String("encoding", ""),
		NormalizeHeaders: o.Bool("normalize_headers", false),
		HeaderMap:        o.StringMap("header_map"),
	}
}

// decoder resolves Encoding. It returns nil for UTF-8, meaning bytes are
// passed through untouched.
func (o Options) decoder() (*encoding.Decoder, error) {
	name := strings.TrimSpace(o.Encoding)
	if name == "" {
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("encoding %q: %w", name, err)
	}
	if enc == unicode.UTF8 {
		return nil, nil
	}
	return enc.NewDecoder(), nil
}
