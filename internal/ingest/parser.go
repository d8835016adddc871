package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ErrParse marks a file that could not be read as delimited text.
var ErrParse = errors.New("unparsable file")

var delimiterCandidates = []rune{',', ';', '\t', '|'}

// RawRow is one data row keyed by normalized header.
type RawRow map[string]string

// Table is a parsed file: the header row as written, its normalized keys, and the data rows.
type Table struct {
	Headers   []string
	Keys      []string
	Records   [][]string
	Delimiter rune
}

// Preview is the read-only summary shown before an import is submitted.
type Preview struct {
	Headers   []string            `json:"headers"`
	Rows      []map[string]string `json:"rows"`
	TotalRows int                 `json:"total_rows"`
	Ignored   []string            `json:"ignored_columns"`
}

// Parse reads a delimited file with a header row. Empty lines are skipped and rows may be
// shorter or longer than the header. The delimiter is detected from the header line; input
// that is not valid UTF-8 is decoded as Windows-1252.
func Parse(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte(bom))
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("%w: decode: %v", ErrParse, err)
		}
		data = decoded
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrParse)
	}

	data = normalizeLineBreaks(data)
	delim := detectDelimiter(data)
	rd := csv.NewReader(bytes.NewReader(data))
	rd.Comma = delim
	rd.FieldsPerRecord = -1
	rd.LazyQuotes = true

	headers, err := rd.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrParse, err)
	}
	t := &Table{Headers: headers, Keys: make([]string, len(headers)), Delimiter: delim}
	named := false
	for i, h := range headers {
		t.Keys[i] = NormalizeHeader(h)
		if t.Keys[i] != "" {
			named = true
		}
	}
	if !named {
		return nil, fmt.Errorf("%w: header row has no usable column names", ErrParse)
	}

	for {
		rec, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Records) }

// Row returns data row i keyed by normalized header. When two headers normalize to the same
// key the rightmost column wins. Cells past the header width are dropped.
func (t *Table) Row(i int) RawRow {
	rec := t.Records[i]
	row := make(RawRow, len(t.Keys))
	for j, key := range t.Keys {
		if key == "" {
			continue
		}
		if j < len(rec) {
			row[key] = rec[j]
		} else {
			row[key] = ""
		}
	}
	return row
}

// RawRows returns every data row keyed by normalized header.
func (t *Table) RawRows() []RawRow {
	rows := make([]RawRow, t.Len())
	for i := range t.Records {
		rows[i] = t.Row(i)
	}
	return rows
}

// Preview returns the first n rows keyed by the header as written, and the total row count.
func (t *Table) Preview(n int) Preview {
	if n > t.Len() {
		n = t.Len()
	}
	p := Preview{Headers: t.Headers, TotalRows: t.Len(), Rows: make([]map[string]string, 0, n)}
	for i := 0; i < n; i++ {
		rec := t.Records[i]
		row := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			if j < len(rec) {
				row[h] = rec[j]
			} else {
				row[h] = ""
			}
		}
		p.Rows = append(p.Rows, row)
	}
	for j, key := range t.Keys {
		if !IsKnownKey(key) {
			p.Ignored = append(p.Ignored, t.Headers[j])
		}
	}
	return p
}

// normalizeLineBreaks turns CR-only files (legacy Mac/Excel exports) into LF files;
// encoding/csv only ends records at \n.
func normalizeLineBreaks(data []byte) []byte {
	if bytes.IndexByte(data, '\n') >= 0 || bytes.IndexByte(data, '\r') < 0 {
		return data
	}
	return bytes.ReplaceAll(data, []byte{'\r'}, []byte{'\n'})
}

// detectDelimiter counts candidate separators outside quotes on the header line and picks
// the most frequent one, preferring the comma on ties.
func detectDelimiter(data []byte) rune {
	line := bytes.TrimLeft(data, "\r\n")
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	counts := make(map[rune]int, len(delimiterCandidates))
	quoted := false
	for _, r := range string(line) {
		if r == '"' {
			quoted = !quoted
			continue
		}
		if !quoted {
			counts[r]++
		}
	}
	best := delimiterCandidates[0]
	for _, c := range delimiterCandidates[1:] {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}
