// Package template builds the spreadsheet users fill in before exporting it as CSV for import.
package template

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	// SheetName is the only sheet of the workbook.
	SheetName = "Modelo"
	// FileName is offered to the browser on download.
	FileName = "modelo_importacao_eleitores.xlsx"
	// ContentType of the workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	headerFill   = "0066CC"
	headerHeight = 30
)

// Column is one template column with its width in characters.
type Column struct {
	Header  string
	Width   float64
	Example string
}

// Columns in the order they appear in the workbook.
var Columns = []Column{
	{"nome", 30, "João da Silva"},
	{"cpf", 15, "12345678900"},
	{"nascimento", 15, "01/01/1990"},
	{"whatsapp", 15, "11987654321"},
	{"telefone", 15, "1133333333"},
	{"genero", 10, "M"},
	{"titulo", 15, "123456789012"},
	{"zona", 10, "123"},
	{"secao", 10, "456"},
	{"cep", 10, "12345678"},
	{"logradouro", 30, "Rua Exemplo"},
	{"cidade", 20, "São Paulo"},
	{"bairro", 20, "Centro"},
	{"numero", 10, "123"},
	{"complemento", 20, "Apto 45"},
	{"uf", 5, "SP"},
	{"nome_mae", 30, "Maria da Silva"},
	{"categoria", 20, "Apoiador"},
	{"responsavel", 30, "José Santos"},
	{"indicado", 30, "Maria Oliveira"},
}

// Build returns the workbook: a styled header row and one example row. Caller must close it.
func Build() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, col := range Columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := f.SetCellValue(SheetName, name+"1", col.Header); err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := f.SetCellValue(SheetName, name+"2", col.Example); err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := f.SetColWidth(SheetName, name, name, col.Width); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	last, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.SetCellStyle(SheetName, "A1", last+"1", style); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("apply header style: %w", err)
	}
	if err := f.SetRowHeight(SheetName, 1, headerHeight); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// Write builds the workbook and writes it to w.
func Write(w io.Writer) error {
	f, err := Build()
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
