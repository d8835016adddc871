package template_test

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/gbp-politico/backend/internal/ingest"
	"github.com/gbp-politico/backend/internal/template"
)

func TestWriteProducesModeloSheet(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := template.Write(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("invalid workbook: %v", err)
	}
	defer f.Close()

	if name := f.GetSheetName(0); name != template.SheetName {
		t.Fatalf("expected sheet %q, got %q", template.SheetName, name)
	}
	rows, err := f.GetRows(template.SheetName)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header and example rows, got %d", len(rows))
	}
	if len(rows[0]) != 20 || rows[0][0] != "nome" || rows[0][19] != "indicado" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][0] != "João da Silva" || rows[1][15] != "SP" {
		t.Fatalf("unexpected example row %v", rows[1])
	}

	width, err := f.GetColWidth(template.SheetName, "A")
	if err != nil || width != 30 {
		t.Fatalf("expected column A width 30, got %v (%v)", width, err)
	}
	height, err := f.GetRowHeight(template.SheetName, 1)
	if err != nil || height != 30 {
		t.Fatalf("expected header height 30, got %v (%v)", height, err)
	}
}

// A filled template saved as CSV must import without renaming columns.
func TestTemplateHeadersRoundTripThroughImport(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := make([]string, len(template.Columns))
	example := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		header[i] = col.Header
		example[i] = col.Example
	}
	_ = w.Write(header)
	_ = w.Write(example)
	w.Flush()

	table, err := ingest.Parse(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, issues := ingest.Mapper{}.Map(ingest.Resolve(table.Row(0)), ingest.MapContext{})
	// the 10-digit landline is the only value forced to 11 digits
	if len(issues) != 1 || issues[0].Field != ingest.FieldTelefone || issues[0].Kind != ingest.IssuePadded {
		t.Fatalf("expected one padded telefone issue, got %v", issues)
	}
	if got := table.Preview(0).Ignored; len(got) != 3 {
		t.Fatalf("expected categoria, responsavel and indicado ignored, got %v", got)
	}
	if rec.Nome != "João da Silva" || rec.CPF != "12345678900" || rec.Nascimento == nil || rec.NomeMae != "Maria da Silva" {
		t.Fatalf("unexpected record %+v", rec.EleitorFields)
	}
}
