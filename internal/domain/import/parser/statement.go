package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"

	"github.com/slendyzo/vibefinance-sub000/internal/domain/import/normalizer"
)

// StatementLine is one accepted transaction line from free-text bank
// statement input. Every emitted line carries its own date, so the free-text
// path has no date-inheritance state.
type StatementLine struct {
	Number      int // 1-based line number within the extracted text
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Raw         string
}

var (
	pdfMagic = []byte("%PDF")

	// Leading date token: D/M/Y or D-M-Y, 2-or-4-digit year.
	statementDateRe = regexp.MustCompile(`^\s*(\d{1,2}[/-]\d{1,2}[/-](?:\d{4}|\d{2}))\b`)

	// European amount at end of line: thousands '.', decimal ',', optional
	// trailing euro sign.
	europeanAmountRe = regexp.MustCompile(`(-?\d{1,3}(?:\.\d{3})*,\d{1,2})\s*€?\s*$`)

	// Generic fallback: any signed number at the end of the line.
	genericAmountRe = regexp.MustCompile(`(-?\d+(?:[.,]\d+)?)\s*€?\s*$`)
)

// nonTransactionLabels mark statement furniture (balances, carry-overs,
// section headers) that must not be imported even when a line parses.
var nonTransactionLabels = []string{
	"saldo", "balance", "total", "subtotal", "extrato", "extracto", "statement",
	"a transportar", "transporte", "carried forward", "brought forward",
	"data valor", "value date", "movimentos", "transactions",
}

// ExtractText turns a statement payload into plain text. PDF payloads go
// through pdf text extraction; payloads that are already valid UTF-8 text
// (the transport may extract upstream) are scanned as-is.
func ExtractText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if bytes.HasPrefix(data, pdfMagic) {
		return extractPDFText(data)
	}
	if utf8.Valid(data) {
		return string(stripUTF8BOM(data)), nil
	}
	return string(normalizeBytes(data)), nil
}

func extractPDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	return buf.String(), nil
}

// ScanStatement walks statement text line by line and emits the transaction
// lines. A line is accepted only when it opens with a date token, ends with a
// parseable amount, and keeps a plausible description in between; everything
// else is statement furniture and is skipped silently.
func ScanStatement(text string) []StatementLine {
	var out []StatementLine

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		parsed, ok := scanStatementLine(line)
		if !ok {
			continue
		}
		parsed.Number = i + 1
		out = append(out, parsed)
	}
	return out
}

func scanStatementLine(line string) (StatementLine, bool) {
	dm := statementDateRe.FindStringSubmatch(line)
	if dm == nil {
		return StatementLine{}, false
	}
	date := normalizer.ParseDate(dm[1])
	if date == nil {
		return StatementLine{}, false
	}

	rest := strings.TrimSpace(line[len(dm[0]):])

	var amountStr string
	var amountStart int
	if am := europeanAmountRe.FindStringSubmatchIndex(rest); am != nil {
		amountStr = rest[am[2]:am[3]]
		amountStart = am[0]
	} else if am := genericAmountRe.FindStringSubmatchIndex(rest); am != nil {
		amountStr = rest[am[2]:am[3]]
		amountStart = am[0]
	} else {
		return StatementLine{}, false
	}

	amount, ok := normalizer.ParseAmount(amountStr)
	if !ok {
		return StatementLine{}, false
	}

	desc := strings.TrimSpace(rest[:amountStart])
	if utf8.RuneCountInString(desc) < 2 {
		return StatementLine{}, false
	}
	if isNonTransactionLabel(desc) {
		return StatementLine{}, false
	}

	return StatementLine{
		Date:        *date,
		Description: desc,
		Amount:      amount,
		Raw:         strings.TrimSpace(line),
	}, true
}

func isNonTransactionLabel(desc string) bool {
	lower := strings.ToLower(desc)
	for _, label := range nonTransactionLabels {
		if strings.Contains(lower, label) {
			return true
		}
	}
	return false
}
