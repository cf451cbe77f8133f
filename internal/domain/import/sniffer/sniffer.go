// Package sniffer provides advisory layout detection for tabular sources:
// header row discovery, date/name/amount column suggestion and mixed-sign
// probing. Its output feeds operator confirmation in the UI and never changes
// classification.
package sniffer

import (
	"strconv"
	"strings"
)

// Column-role keywords, Portuguese and English. Matched case-insensitively as
// substrings of the header text.
var (
	dateKeywords = []string{"data", "date", "dia", "day"}
	nameKeywords = []string{
		"nome", "name", "descrição", "descricao", "description",
		"despesa", "expense", "item", "detalhe", "detail",
	}
	amountKeywords = []string{
		"valor", "montante", "amount", "value",
		"custo", "cost", "preço", "preco", "price",
	}
)

const (
	headerScanRows = 5
	maxSampleRows  = 5
	mixedSignExtra = 50
)

// ColumnSuggestions carries auto-detected column roles. -1 means not found.
type ColumnSuggestions struct {
	DateCol   int
	NameCol   int
	AmountCol int
}

// DetectHeaderRow scans the first rows of a sheet and returns the 1-based
// index of the row with the greatest count of non-empty text cells. Ties keep
// the first row found; an empty sheet yields 1.
func DetectHeaderRow(rows [][]string) int {
	best := 1
	bestCount := 0
	limit := headerScanRows
	if len(rows) < limit {
		limit = len(rows)
	}

	for i := 0; i < limit; i++ {
		count := 0
		for _, cell := range rows[i] {
			if isTextCell(cell) {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			best = i + 1
		}
	}
	return best
}

// SuggestColumns matches header text against the role keyword lists. The
// first column matching a role wins; an assigned role is never overwritten.
func SuggestColumns(headers []string) *ColumnSuggestions {
	s := &ColumnSuggestions{DateCol: -1, NameCol: -1, AmountCol: -1}

	for i, header := range headers {
		h := strings.ToLower(strings.TrimSpace(header))
		if h == "" {
			continue
		}
		if s.DateCol == -1 && containsAny(h, dateKeywords) {
			s.DateCol = i
		}
		if s.NameCol == -1 && containsAny(h, nameKeywords) {
			s.NameCol = i
		}
		if s.AmountCol == -1 && containsAny(h, amountKeywords) {
			s.AmountCol = i
		}
	}
	return s
}

// SampleRows collects up to five rows after the header for UI preview,
// skipping empty rows and rows carrying a "total" cell.
func SampleRows(rows [][]string, headerRow int) [][]string {
	var samples [][]string
	for i := headerRow; i < len(rows) && len(samples) < maxSampleRows; i++ {
		if isSampleRow(rows[i]) {
			samples = append(samples, rows[i])
		}
	}
	return samples
}

// DetectMixedSigns reports whether the amount column carries both positive
// and negative values. It scans the sample window plus up to fifty additional
// rows, stopping early once both signs are seen. Advisory only: amounts are
// always normalized to their absolute value downstream.
func DetectMixedSigns(rows [][]string, headerRow, amountCol int) bool {
	if amountCol < 0 {
		return false
	}

	seenPositive := false
	seenNegative := false
	limit := headerRow + maxSampleRows + mixedSignExtra
	if limit > len(rows) {
		limit = len(rows)
	}

	for i := headerRow; i < limit; i++ {
		row := rows[i]
		if amountCol >= len(row) {
			continue
		}
		switch signOf(row[amountCol]) {
		case 1:
			seenPositive = true
		case -1:
			seenNegative = true
		}
		if seenPositive && seenNegative {
			return true
		}
	}
	return false
}

func isSampleRow(row []string) bool {
	nonEmpty := false
	for _, cell := range row {
		trimmed := strings.TrimSpace(cell)
		if trimmed == "" {
			continue
		}
		nonEmpty = true
		if strings.Contains(strings.ToLower(trimmed), "total") {
			return false
		}
	}
	return nonEmpty
}

// isTextCell reports whether a cell holds non-empty text that is not just a
// number. Header rows are made of labels, data rows of values.
func isTextCell(cell string) bool {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return false
	}
	cleaned := strings.NewReplacer(",", ".", "€", "", "$", "", " ", "").Replace(trimmed)
	if _, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return false
	}
	return true
}

// signOf classifies a raw amount cell as positive, negative or unknown.
func signOf(raw string) int {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, raw)
	if cleaned == "" || cleaned == "-" {
		return 0
	}
	if strings.HasPrefix(cleaned, "-") {
		return -1
	}
	return 1
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
