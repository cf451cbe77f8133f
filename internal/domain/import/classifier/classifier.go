// Package classifier assigns record types to parsed rows. It holds the
// per-sheet state machine for date inheritance and recurring-candidate
// detection, plus the keyword engine for undated-row classification.
package classifier

import (
	"strings"
	"time"

	"github.com/cloudflare/ahocorasick"
	"github.com/shopspring/decimal"

	"github.com/slendyzo/vibefinance-sub000/internal/domain/import/normalizer"
	"github.com/slendyzo/vibefinance-sub000/internal/domain/import/parser"
)

// RecordType is the four-way classification of an imported record.
type RecordType string

const (
	TypeSurvivalFixed    RecordType = "survival_fixed"
	TypeSurvivalVariable RecordType = "survival_variable"
	TypeLifestyle        RecordType = "lifestyle"
	TypeProject          RecordType = "project"
)

// ParsedRow is a fully classified, dated, positive-amount record ready for
// persistence. It is never mutated after creation.
type ParsedRow struct {
	Source   string
	Number   int
	Date     time.Time
	Name     string
	RawInput string
	Amount   decimal.Decimal
	Type     RecordType
}

// RecurringCandidate is an undated row proposed as a monthly recurring
// template. Type is always TypeSurvivalFixed or TypeSurvivalVariable.
type RecurringCandidate struct {
	Name   string
	Amount decimal.Decimal
	Type   RecordType
}

// SheetContext carries the per-sheet mutable tracking state. It is
// constructed fresh for every sheet, mutated only while iterating that
// sheet's rows in order, and discarded at the sheet boundary.
type SheetContext struct {
	sheetName     string
	isProject     bool
	sheetDate     *time.Time
	lastValidDate *time.Time
	firstDateSeen bool
	seenRecurring map[string]struct{}
	candidates    []RecurringCandidate
}

// NewSheetContext builds the context for one sheet, deriving the fallback
// sheet date from the sheet name.
func NewSheetContext(sheetName string, isProject bool) *SheetContext {
	return &SheetContext{
		sheetName:     sheetName,
		isProject:     isProject,
		sheetDate:     normalizer.ParseSheetDate(sheetName),
		seenRecurring: make(map[string]struct{}),
	}
}

// Candidates returns the recurring candidates registered on this sheet, in
// encounter order.
func (c *SheetContext) Candidates() []RecurringCandidate {
	return c.candidates
}

// Classifier holds the keyword matchers. Safe for reuse across imports: all
// mutable state lives in the SheetContext.
type Classifier struct {
	variable *ahocorasick.Matcher
	fixed    *ahocorasick.Matcher
	now      func() time.Time
}

// New builds a classifier with the built-in two-language dictionaries.
func New() *Classifier {
	return &Classifier{
		variable: ahocorasick.NewStringMatcher(variableKeywords),
		fixed:    ahocorasick.NewStringMatcher(fixedKeywords),
		now:      time.Now,
	}
}

// WithNow overrides the import-time clock. Test hook.
func (c *Classifier) WithNow(now func() time.Time) *Classifier {
	c.now = now
	return c
}

// Classify assigns a record type from the row name and structural signals.
// Project sheets override everything; a row with date context is a dated
// discretionary transaction; otherwise the keyword dictionaries decide, with
// variable-utility terms taking precedence and fixed-cost as the default for
// unmatched undated rows.
func (c *Classifier) Classify(name string, hasDateContext, isProjectSheet bool) RecordType {
	if isProjectSheet {
		return TypeProject
	}
	if hasDateContext {
		return TypeLifestyle
	}

	lower := []byte(strings.ToLower(strings.TrimSpace(name)))
	if len(c.variable.Match(lower)) > 0 {
		return TypeSurvivalVariable
	}
	if len(c.fixed.Match(lower)) > 0 {
		return TypeSurvivalFixed
	}
	return TypeSurvivalFixed
}

// ProcessRow runs one raw row through the per-sheet state machine. Rows with
// an empty name, a "total" label, or an amount that fails to parse or parses
// to zero are dropped silently: they return (nil, false) and never surface as
// errors.
func (c *Classifier) ProcessRow(sctx *SheetContext, row parser.RawRow) (*ParsedRow, bool) {
	name := strings.TrimSpace(row.Name)
	if name == "" || strings.EqualFold(name, "total") {
		return nil, false
	}

	amount, ok := normalizer.ParseAmount(row.Amount)
	if !ok {
		return nil, false
	}

	originalHadDate := strings.TrimSpace(row.Date) != ""
	parsedDate := normalizer.ParseDate(row.Date)

	// Rows above a sheet's first dated row are the recurring block of a
	// top-down monthly layout: register them before the date state moves.
	if !originalHadDate && !sctx.firstDateSeen && !sctx.isProject {
		if t := c.Classify(name, false, false); t == TypeSurvivalFixed || t == TypeSurvivalVariable {
			key := strings.ToLower(name)
			if _, seen := sctx.seenRecurring[key]; !seen {
				sctx.seenRecurring[key] = struct{}{}
				sctx.candidates = append(sctx.candidates, RecurringCandidate{
					Name:   name,
					Amount: amount,
					Type:   t,
				})
			}
		}
	}

	if parsedDate != nil {
		sctx.lastValidDate = parsedDate
		sctx.firstDateSeen = true
	}

	hasDateContext := originalHadDate || (sctx.lastValidDate != nil && !sctx.isProject)
	recordType := c.Classify(name, hasDateContext, sctx.isProject)

	effective := parsedDate
	if effective == nil {
		effective = sctx.lastValidDate
	}
	if effective == nil {
		effective = sctx.sheetDate
	}
	var date time.Time
	if effective != nil {
		date = *effective
	} else {
		date = c.now().UTC().Truncate(24 * time.Hour)
	}

	return &ParsedRow{
		Source:   row.Source,
		Number:   row.Number,
		Date:     date,
		Name:     name,
		RawInput: row.RawSummary(),
		Amount:   amount,
		Type:     recordType,
	}, true
}

// DedupeCandidates deduplicates recurring candidates across the whole import
// by case-insensitive trimmed name. The first occurrence, in encounter order,
// wins.
func DedupeCandidates(all []RecurringCandidate) []RecurringCandidate {
	seen := make(map[string]struct{}, len(all))
	out := make([]RecurringCandidate, 0, len(all))
	for _, cand := range all {
		key := strings.ToLower(strings.TrimSpace(cand.Name))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cand)
	}
	return out
}
