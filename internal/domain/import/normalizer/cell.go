// Package normalizer handles locale-tolerant parsing of raw cell values.
// It converts spreadsheet and bank statement cells into amounts and dates,
// treating European number and date conventions as the primary dialect.
package normalizer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// serialEpoch is the spreadsheet date serial origin (Lotus/Excel convention).
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var (
	numericRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	dmyRe     = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2}|\d{4})$`)
	yearRe    = regexp.MustCompile(`\b(\d{4})\b`)
)

// fallbackDateLayouts are tried, in order, for strings that do not match the
// primary D/M/Y pattern.
var fallbackDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// ParseAmount parses a raw cell string into a strictly positive amount.
// Currency symbols and whitespace are stripped, '.' is treated as a thousands
// separator and ',' as the decimal separator. The sign is discarded.
// Returns false for unparseable input and for values that parse to zero.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == ',' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, raw)

	if cleaned == "" || cleaned == "-" {
		return decimal.Zero, false
	}

	// European convention: 1.234,56 -> 1234.56
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	if d.IsZero() {
		return decimal.Zero, false
	}
	return d.Abs(), true
}

// ParseDate parses a raw cell string into a calendar date. Absence of a date
// is an expected outcome, so this function never returns an error: empty
// strings, the literal word "total" and anything unparseable yield nil.
//
// Pure-number strings are treated as spreadsheet date serials (days since
// 1899-12-30). Otherwise D/M/Y and D-M-Y with 1-2 digit day/month and a
// 2-or-4-digit year are tried first, then a short list of generic layouts.
func ParseDate(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "total") {
		return nil
	}

	if numericRe.MatchString(s) {
		return parseSerial(s)
	}

	if m := dmyRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		return makeDate(year, month, day)
	}

	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}

	return nil
}

func parseSerial(s string) *time.Time {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return serialToDate(f)
}

func serialToDate(serial float64) *time.Time {
	// Gate to a plausible range: late 1902 .. deep future. Small integers in
	// a date column are layout noise, not serials.
	if serial < 1000 || serial > 200000 {
		return nil
	}
	d := serialEpoch.AddDate(0, 0, int(serial))
	return &d
}

func makeDate(year, month, day int) *time.Time {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject overflow like 31/02 which time.Date silently normalizes.
	if d.Day() != day || d.Month() != time.Month(month) {
		return nil
	}
	return &d
}

// monthTokens maps month-name tokens (Portuguese and English, full names and
// common abbreviations) to month numbers. Longer tokens are matched first so
// "dezembro" wins over "dez" at the same position.
var monthTokens = []struct {
	token string
	month time.Month
}{
	{"janeiro", time.January}, {"fevereiro", time.February}, {"março", time.March},
	{"marco", time.March}, {"abril", time.April}, {"maio", time.May},
	{"junho", time.June}, {"julho", time.July}, {"agosto", time.August},
	{"setembro", time.September}, {"outubro", time.October}, {"novembro", time.November},
	{"dezembro", time.December},
	{"january", time.January}, {"february", time.February}, {"march", time.March},
	{"april", time.April}, {"june", time.June}, {"july", time.July},
	{"august", time.August}, {"september", time.September}, {"october", time.October},
	{"november", time.November}, {"december", time.December},
	{"jan", time.January}, {"fev", time.February}, {"feb", time.February},
	{"mar", time.March}, {"abr", time.April}, {"apr", time.April},
	{"mai", time.May}, {"may", time.May}, {"jun", time.June}, {"jul", time.July},
	{"ago", time.August}, {"aug", time.August}, {"set", time.September},
	{"sep", time.September}, {"out", time.October}, {"oct", time.October},
	{"nov", time.November}, {"dez", time.December}, {"dec", time.December},
}

// ParseSheetDate derives a calendar date from a worksheet name such as
// "Dezembro 2025" or "December 2025": a month-name token followed by a 4-digit
// year anywhere in the name yields the first day of that month. Returns nil
// when the name carries no such label.
func ParseSheetDate(sheetName string) *time.Time {
	lower := strings.ToLower(sheetName)

	bestIdx := -1
	bestLen := 0
	var bestMonth time.Month
	for _, mt := range monthTokens {
		idx := strings.Index(lower, mt.token)
		if idx < 0 {
			continue
		}
		if bestIdx == -1 || idx < bestIdx || (idx == bestIdx && len(mt.token) > bestLen) {
			bestIdx = idx
			bestLen = len(mt.token)
			bestMonth = mt.month
		}
	}
	if bestIdx < 0 {
		return nil
	}

	m := yearRe.FindStringSubmatch(lower[bestIdx+bestLen:])
	if m == nil {
		return nil
	}
	year, _ := strconv.Atoi(m[1])
	d := time.Date(year, bestMonth, 1, 0, 0, 0, 0, time.UTC)
	return &d
}
