package csv

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const utf8BOM = "\uFEFF"

// normalizeHeaders produces field names from a raw header row: BOM stripped
// from the first cell, surrounding space trimmed, NFC-normalized, then mapped
// via HeaderMap or (when enabled) lowercased with spaces turned into
// underscores. The input slice is not modified.
func normalizeHeaders(h []string, opt Options) []string {
	res := make([]string, len(h))
	for i, col := range h {
		if i == 0 {
			col = strings.TrimPrefix(col, utf8BOM)
		}
		c := strings.TrimSpace(col)
		c = norm.NFC.String(c)
		if m, ok := opt.HeaderMap[c]; ok {
			res[i] = m
			continue
		}
		if opt.NormalizeHeaders {
			c = strings.ReplaceAll(strings.ToLower(c), " ", "_")
		}
		res[i] = c
	}
	return res
}
