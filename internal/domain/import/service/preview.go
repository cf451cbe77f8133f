package service

import (
	"fmt"

	"github.com/slendyzo/vibefinance-sub000/internal/domain/import/parser"
	"github.com/slendyzo/vibefinance-sub000/internal/domain/import/sniffer"
)

// SheetPreview describes one sheet of an inspected payload.
type SheetPreview struct {
	Name             string
	HeaderRow        int
	Headers          []string
	SampleRows       [][]string
	SuggestedColumns *sniffer.ColumnSuggestions
	HasMixedValues   bool
	TotalRows        int
}

// PreviewResult is the outcome of inspecting a payload before import.
type PreviewResult struct {
	Sheets           []SheetPreview
	SuggestedMapping parser.Mapping
}

// Preview inspects a structured payload without persisting anything, so a
// caller can confirm or adjust the column mapping before the real import.
// Free-text statements have no columns to map and are not previewable.
func (s *ImportService) Preview(payload []byte, fileKind, fileName string) (*PreviewResult, error) {
	var sheets []parser.SheetSource

	switch fileKind {
	case parser.KindXLSX, parser.KindXLS:
		f, err := parser.OpenWorkbook(payload, fileKind)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sheets, err = parser.ReadAllSheets(f)
		if err != nil {
			return nil, err
		}

	case parser.KindCSV:
		sheet, err := parser.ReadDelimitedAll(payload, fileName)
		if err != nil {
			return nil, err
		}
		sheets = []parser.SheetSource{sheet}

	default:
		return nil, fmt.Errorf("%w: preview not available for %q", parser.ErrUnsupportedKind, fileKind)
	}

	result := &PreviewResult{SuggestedMapping: parser.DefaultMapping()}
	for i, sheet := range sheets {
		preview := previewSheet(sheet)
		if i == 0 && preview.SuggestedColumns != nil {
			applySuggestions(&result.SuggestedMapping, preview)
		}
		result.Sheets = append(result.Sheets, preview)
	}
	return result, nil
}

func previewSheet(sheet parser.SheetSource) SheetPreview {
	headerRow := sniffer.DetectHeaderRow(sheet.Rows)
	preview := SheetPreview{
		Name:      sheet.Name,
		HeaderRow: headerRow,
		TotalRows: len(sheet.Rows),
	}
	if headerRow >= 1 && headerRow <= len(sheet.Rows) {
		preview.Headers = sheet.Rows[headerRow-1]
		preview.SuggestedColumns = sniffer.SuggestColumns(preview.Headers)
	}
	preview.SampleRows = sniffer.SampleRows(sheet.Rows, headerRow)

	amountCol := parser.DefaultMapping().AmountCol
	if preview.SuggestedColumns != nil && preview.SuggestedColumns.AmountCol >= 0 {
		amountCol = preview.SuggestedColumns.AmountCol
	}
	preview.HasMixedValues = sniffer.DetectMixedSigns(sheet.Rows, headerRow, amountCol)
	return preview
}

// applySuggestions folds the first sheet's detected header and columns into
// the mapping offered back to the caller. Unrecognized columns keep the
// legacy defaults.
func applySuggestions(m *parser.Mapping, preview SheetPreview) {
	m.HeaderRow = preview.HeaderRow
	cols := preview.SuggestedColumns
	if cols.DateCol >= 0 {
		m.DateCol = cols.DateCol
	}
	if cols.NameCol >= 0 {
		m.NameCol = cols.NameCol
	}
	if cols.AmountCol >= 0 {
		m.AmountCol = cols.AmountCol
	}
}
