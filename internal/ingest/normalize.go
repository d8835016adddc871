// Package ingest turns an uploaded delimited file into typed constituent records.
//
// Parsing never touches the database: it produces a Table of rows keyed by normalized
// header, a preview, and the mapped models.Eleitor values the import service writes.
package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const bom = "\ufeff"

// NormalizeHeader folds a header into its canonical key: lower-case, no diacritics,
// whitespace runs replaced by a single underscore, anything outside [a-z0-9_] removed.
// "Data Nascimento", "DATA_NASCIMENTO" and "data nascimento" all become "data_nascimento".
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, bom)))
	if folded, _, err := transform.String(stripMarks(), h); err == nil {
		h = folded
	}

	var b strings.Builder
	b.Grow(len(h))
	inSpace := false
	for _, r := range h {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		}
		inSpace = false
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripMarks decomposes to NFD and drops combining marks. Transformers keep state, so each
// call gets its own chain.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
}
