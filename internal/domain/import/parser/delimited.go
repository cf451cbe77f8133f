package parser

import (
	"path/filepath"
	"strings"
)

// DetectDelimiter picks ';' or ',' as the field delimiter by counting
// occurrences on the first line. Semicolon wins ties: European exports that
// use ',' as the decimal separator routinely contain both characters.
func DetectDelimiter(firstLine string) rune {
	semis := strings.Count(firstLine, ";")
	commas := strings.Count(firstLine, ",")
	if semis >= commas && semis > 0 {
		return ';'
	}
	if commas > 0 {
		return ','
	}
	return ';'
}

// SplitDelimited splits one line into fields. A quote character toggles the
// in-quotes state; the delimiter is literal while inside quotes. Quote
// characters themselves are not kept in the field value.
func SplitDelimited(line string, delim rune) []string {
	var fields []string
	var field strings.Builder
	inQuotes := false

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}
	fields = append(fields, field.String())
	return fields
}

// ReadDelimited parses a delimited text payload into one synthetic sheet so
// it can travel the same row-processing path as a workbook. The sheet is
// named after the uploaded file (extension dropped).
func ReadDelimited(data []byte, fileName string, m Mapping) (SheetSource, error) {
	sheet, err := readDelimitedRows(data, fileName)
	if err != nil {
		return SheetSource{}, err
	}
	return sheetBelowHeader(sheet.Name, sheet.Rows, m.HeaderRow), nil
}

// ReadDelimitedAll parses a delimited payload keeping every line, header
// included, for the preview path.
func ReadDelimitedAll(data []byte, fileName string) (SheetSource, error) {
	return readDelimitedRows(data, fileName)
}

func readDelimitedRows(data []byte, fileName string) (SheetSource, error) {
	text := string(normalizeBytes(data))
	if strings.TrimSpace(text) == "" {
		return SheetSource{}, ErrEmptyFile
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	delim := DetectDelimiter(lines[0])

	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			// Blank lines keep their slot so row numbers stay aligned
			// with the uploaded file.
			rows = append(rows, nil)
			continue
		}
		rows = append(rows, SplitDelimited(line, delim))
	}
	// Drop trailing blank lines left by the final newline.
	for len(rows) > 0 && rows[len(rows)-1] == nil {
		rows = rows[:len(rows)-1]
	}

	return SheetSource{Name: syntheticSheetName(fileName), StartRow: 1, Rows: rows}, nil
}

func syntheticSheetName(fileName string) string {
	base := filepath.Base(strings.TrimSpace(fileName))
	if base == "." || base == "/" || base == "" {
		return "import"
	}
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
