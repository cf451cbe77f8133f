// Package parser provides the format adapters of the import pipeline. Three
// front ends (xlsx/xls workbooks, delimited text, free-text bank statements)
// normalize heterogeneous uploads into a common per-sheet row stream.
package parser

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// File kinds accepted by the adapters.
const (
	KindXLSX = "xlsx"
	KindXLS  = "xls"
	KindCSV  = "csv"
	KindPDF  = "pdf"
)

var (
	ErrUnsupportedKind = errors.New("unsupported file kind")
	ErrEmptyFile       = errors.New("file is empty")
)

// Mapping assigns column roles to a tabular source. It is supplied by the
// caller or produced by the sniffer and is immutable for one import.
type Mapping struct {
	DateCol   int // -1 when the source carries no date column
	NameCol   int
	AmountCol int
	HeaderRow int // 1-based; data starts on the following row

	// SheetsToImport restricts which worksheets are read (empty = all).
	SheetsToImport []string
	// ProjectSheets names worksheets whose rows are always tagged as
	// project records. Matched case-insensitively.
	ProjectSheets []string
}

// DefaultMapping is the legacy three-column convention: date, name, amount
// with the header on the first row.
func DefaultMapping() Mapping {
	return Mapping{
		DateCol:   0,
		NameCol:   1,
		AmountCol: 2,
		HeaderRow: 1,
	}
}

// Validate rejects structurally malformed mappings before any parsing begins.
func (m Mapping) Validate() error {
	if m.HeaderRow < 1 {
		return fmt.Errorf("header row must be >= 1, got %d", m.HeaderRow)
	}
	if m.NameCol < 0 {
		return fmt.Errorf("name column must be >= 0, got %d", m.NameCol)
	}
	if m.AmountCol < 0 {
		return fmt.Errorf("amount column must be >= 0, got %d", m.AmountCol)
	}
	if m.NameCol == m.AmountCol {
		return fmt.Errorf("name and amount columns must differ, both are %d", m.NameCol)
	}
	if m.DateCol < -1 {
		return fmt.Errorf("date column must be -1 or >= 0, got %d", m.DateCol)
	}
	return nil
}

// ImportsSheet reports whether a worksheet is selected by SheetsToImport.
func (m Mapping) ImportsSheet(name string) bool {
	if len(m.SheetsToImport) == 0 {
		return true
	}
	for _, s := range m.SheetsToImport {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

// IsProjectSheet reports whether a worksheet is declared as a project sheet.
func (m Mapping) IsProjectSheet(name string) bool {
	for _, s := range m.ProjectSheets {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

// SheetSource is the common downstream shape shared by the tabular and
// delimited adapters: one named sheet with its data rows in original order.
type SheetSource struct {
	Name     string
	StartRow int // 1-based row number of Rows[0] in the original file
	Rows     [][]string
}

// RawRow is one tabular row projected through a Mapping.
type RawRow struct {
	Source string
	Number int // 1-based row number in the original file
	Date   string
	Name   string
	Amount string
}

// RawSummary is a compact rendition of the mapped cells, kept on imported
// records for later review of what the row looked like in the upload.
func (r RawRow) RawSummary() string {
	parts := make([]string, 0, 3)
	for _, cell := range []string{r.Date, r.Name, r.Amount} {
		if v := strings.TrimSpace(cell); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " | ")
}

// RawRows projects every data row of the sheet through the mapping.
func (s SheetSource) RawRows(m Mapping) []RawRow {
	rows := make([]RawRow, 0, len(s.Rows))
	for i, cells := range s.Rows {
		rows = append(rows, RawRow{
			Source: s.Name,
			Number: s.StartRow + i,
			Date:   cellAt(cells, m.DateCol),
			Name:   cellAt(cells, m.NameCol),
			Amount: cellAt(cells, m.AmountCol),
		})
	}
	return rows
}

func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

// normalizeBytes strips a UTF-8 BOM and re-encodes Latin-1 payloads so the
// line scanners always see valid UTF-8.
func normalizeBytes(data []byte) []byte {
	data = stripUTF8BOM(data)
	if utf8.Valid(data) {
		return data
	}
	return decodeLatin1(data)
}

func stripUTF8BOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

func decodeLatin1(data []byte) []byte {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return []byte(string(runes))
}
