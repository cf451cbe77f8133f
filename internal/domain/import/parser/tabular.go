package parser

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// zipMagic is the container signature shared by xlsx and every other OOXML
// document.
var zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}

// OpenWorkbook opens a spreadsheet payload as an excelize workbook. Payloads
// declared as the legacy binary format are converted first; a payload that
// already carries the zip container signature is read directly regardless of
// the declared kind, since mislabeled uploads are common.
func OpenWorkbook(data []byte, kind string) (*excelize.File, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	switch kind {
	case KindXLSX:
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open workbook: %w", err)
		}
		return f, nil
	case KindXLS:
		if bytes.HasPrefix(data, zipMagic) {
			f, err := excelize.OpenReader(bytes.NewReader(data))
			if err != nil {
				return nil, fmt.Errorf("open workbook: %w", err)
			}
			return f, nil
		}
		return convertLegacyWorkbook(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
}

// ReadSheets walks every selected worksheet in workbook order and returns the
// data rows below the mapped header row. Sheet order and row order are
// preserved: the classifier's date inheritance is position sensitive.
func ReadSheets(f *excelize.File, m Mapping) ([]SheetSource, error) {
	var sources []SheetSource
	for _, name := range f.GetSheetList() {
		if !m.ImportsSheet(name) {
			continue
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		sources = append(sources, sheetBelowHeader(name, rows, m.HeaderRow))
	}
	return sources, nil
}

// ReadAllSheets returns every worksheet with all of its rows, header
// included. Used by the preview path, which detects the header row itself.
func ReadAllSheets(f *excelize.File) ([]SheetSource, error) {
	var sources []SheetSource
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		sources = append(sources, SheetSource{Name: name, StartRow: 1, Rows: rows})
	}
	return sources, nil
}

func sheetBelowHeader(name string, rows [][]string, headerRow int) SheetSource {
	if headerRow >= len(rows) {
		return SheetSource{Name: name, StartRow: headerRow + 1}
	}
	return SheetSource{
		Name:     name,
		StartRow: headerRow + 1,
		Rows:     rows[headerRow:],
	}
}
