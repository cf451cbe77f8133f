// Package service provides the import orchestration logic: it runs the
// format adapters and the classifier over an uploaded payload, resolves the
// shared entities, persists the resulting batch and assembles the result
// summary. The error taxonomy (format, mapping, empty result, persistence) is
// returned as data on the result, never as a panic or an escaping error.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/slendyzo/vibefinance-sub000/internal/domain/import/classifier"
	"github.com/slendyzo/vibefinance-sub000/internal/domain/import/parser"
	"github.com/slendyzo/vibefinance-sub000/internal/domain/import/repository"
)

// DefaultCategoryName is resolved or created once per import.
const DefaultCategoryName = "Uncategorized"

// ImportInput describes one uploaded payload.
type ImportInput struct {
	Payload     []byte
	FileKind    string // "xlsx", "xls", "csv" or "pdf"
	WorkspaceID uuid.UUID
	UploaderID  uuid.UUID
	FileName    string
	// Mapping overrides the built-in legacy three-column convention when
	// set. Ignored by the free-text path.
	Mapping *parser.Mapping
}

// ImportStats counts imported rows per record type.
type ImportStats struct {
	SurvivalFixed    int
	SurvivalVariable int
	Lifestyle        int
	Project          int
}

// ImportResult is the outcome of one import call.
type ImportResult struct {
	Success                   bool
	ImportedCount             int
	FailedCount               int
	Errors                    []string
	Stats                     ImportStats
	SourcesProcessed          []string
	RecurringCandidates       []classifier.RecurringCandidate
	RecurringTemplatesCreated int
}

// ImportService orchestrates parsing, classification and persistence.
type ImportService struct {
	repo       repository.ImportRepository
	classifier *classifier.Classifier
	logger     *slog.Logger
}

// NewImportService creates a new import service.
func NewImportService(repo repository.ImportRepository, logger *slog.Logger) *ImportService {
	return &ImportService{
		repo:       repo,
		classifier: classifier.New(),
		logger:     logger,
	}
}

// WithClassifier swaps the classifier. Test hook for a pinned clock.
func (s *ImportService) WithClassifier(c *classifier.Classifier) *ImportService {
	s.classifier = c
	return s
}

// Import runs one payload through the whole pipeline. It never returns a Go
// error: every failure mode is surfaced on the result.
func (s *ImportService) Import(ctx context.Context, input ImportInput) *ImportResult {
	mapping := parser.DefaultMapping()
	if input.Mapping != nil {
		mapping = *input.Mapping
	}
	if err := mapping.Validate(); err != nil {
		return s.fail(outcomeMappingError, fmt.Sprintf("invalid column mapping: %v", err))
	}

	rows, candidates, sources, err := s.parseAll(input, mapping)
	if err != nil {
		return s.fail(outcomeFormatError, fmt.Sprintf("could not read %s file: %v", input.FileKind, err))
	}

	if len(rows) == 0 {
		return s.fail(outcomeEmptyResult,
			"no rows could be imported; check that the date, name and amount columns are mapped to the right positions")
	}

	candidates = classifier.DedupeCandidates(candidates)

	result := &ImportResult{
		SourcesProcessed:    sources,
		RecurringCandidates: candidates,
		Stats:               countStats(rows),
	}

	if err := s.persist(ctx, input, rows, candidates, result); err != nil {
		s.logger.Error("import persistence failed",
			slog.String("file", input.FileName),
			slog.Any("error", err))
		result.Success = false
		result.FailedCount = len(rows) - result.ImportedCount
		result.Errors = append(result.Errors, err.Error())
		importsTotal.WithLabelValues(outcomePersistenceError).Inc()
		return result
	}

	result.Success = true
	importsTotal.WithLabelValues(outcomeSuccess).Inc()
	observeRowStats(result.Stats)

	s.logger.Info("import finished",
		slog.String("file", input.FileName),
		slog.String("kind", input.FileKind),
		slog.Int("rows", result.ImportedCount),
		slog.Int("templates", result.RecurringTemplatesCreated))

	return result
}

// parseAll dispatches to the adapter for the declared file kind and collects
// classified rows, recurring candidates and the processed source names.
// Structured sources go through the per-sheet state machine; the free-text
// path emits dated lifestyle rows directly.
func (s *ImportService) parseAll(input ImportInput, mapping parser.Mapping) ([]*classifier.ParsedRow, []classifier.RecurringCandidate, []string, error) {
	switch input.FileKind {
	case parser.KindXLSX, parser.KindXLS:
		f, err := parser.OpenWorkbook(input.Payload, input.FileKind)
		if err != nil {
			return nil, nil, nil, err
		}
		defer f.Close()
		sheets, err := parser.ReadSheets(f, mapping)
		if err != nil {
			return nil, nil, nil, err
		}
		return s.processSheets(sheets, mapping)

	case parser.KindCSV:
		sheet, err := parser.ReadDelimited(input.Payload, input.FileName, mapping)
		if err != nil {
			return nil, nil, nil, err
		}
		return s.processSheets([]parser.SheetSource{sheet}, mapping)

	case parser.KindPDF:
		text, err := parser.ExtractText(input.Payload)
		if err != nil {
			return nil, nil, nil, err
		}
		rows := s.processStatement(text, input.FileName)
		return rows, nil, []string{input.FileName}, nil

	default:
		return nil, nil, nil, fmt.Errorf("%w: %q", parser.ErrUnsupportedKind, input.FileKind)
	}
}

// processSheets walks sheets in source order and rows in row order. Date
// inheritance and recurring detection are position sensitive, so there is no
// parallelism here.
func (s *ImportService) processSheets(sheets []parser.SheetSource, mapping parser.Mapping) ([]*classifier.ParsedRow, []classifier.RecurringCandidate, []string, error) {
	var rows []*classifier.ParsedRow
	var candidates []classifier.RecurringCandidate
	var sources []string

	for _, sheet := range sheets {
		sources = append(sources, sheet.Name)
		sctx := classifier.NewSheetContext(sheet.Name, mapping.IsProjectSheet(sheet.Name))
		for _, raw := range sheet.RawRows(mapping) {
			row, ok := s.classifier.ProcessRow(sctx, raw)
			if !ok {
				continue
			}
			rows = append(rows, row)
		}
		candidates = append(candidates, sctx.Candidates()...)
	}
	return rows, candidates, sources, nil
}

// processStatement converts accepted statement lines into parsed rows. Every
// line carries its own date, so the free-text path always classifies as
// lifestyle.
func (s *ImportService) processStatement(text, fileName string) []*classifier.ParsedRow {
	lines := parser.ScanStatement(text)
	rows := make([]*classifier.ParsedRow, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, &classifier.ParsedRow{
			Source:   fileName,
			Number:   line.Number,
			Date:     line.Date,
			Name:     line.Description,
			RawInput: line.Raw,
			Amount:   line.Amount,
			Type:     classifier.TypeLifestyle,
		})
	}
	return rows
}

// persist resolves shared entities, writes the batch and its rows, and
// creates recurring templates. Entities created before a later failure are
// not rolled back; there is no cross-entity transaction.
func (s *ImportService) persist(ctx context.Context, input ImportInput, rows []*classifier.ParsedRow, candidates []classifier.RecurringCandidate, result *ImportResult) error {
	category, err := s.resolveDefaultCategory(ctx, input.WorkspaceID)
	if err != nil {
		return err
	}

	projectSheets := []string(nil)
	if input.Mapping != nil {
		projectSheets = input.Mapping.ProjectSheets
	}
	projects, err := s.resolveProjects(ctx, input.WorkspaceID, projectSheets)
	if err != nil {
		return err
	}

	batch := &repository.ImportBatch{
		WorkspaceID: input.WorkspaceID,
		UploaderID:  input.UploaderID,
		FileName:    input.FileName,
		FileKind:    input.FileKind,
		RowsTotal:   len(rows),
	}
	if err := s.repo.CreateImportBatch(ctx, batch); err != nil {
		return err
	}

	records := make([]*repository.ExpenseRecord, 0, len(rows))
	for _, row := range rows {
		rec := &repository.ExpenseRecord{
			WorkspaceID: input.WorkspaceID,
			BatchID:     batch.ID,
			CategoryID:  category.ID,
			Date:        row.Date,
			Name:        row.Name,
			RawInput:    row.RawInput,
			Amount:      row.Amount,
			HomeAmount:  row.Amount,
			Type:        string(row.Type),
			SourceName:  row.Source,
			RowNumber:   row.Number,
		}
		if row.Type == classifier.TypeProject {
			if id, ok := projects[strings.ToLower(strings.TrimSpace(row.Source))]; ok {
				projectID := id
				rec.ProjectID = &projectID
			}
		}
		records = append(records, rec)
	}

	inserted, err := s.repo.BulkInsertExpenses(ctx, records)
	result.ImportedCount = inserted
	if err != nil {
		// Best effort: record the partial outcome on the batch. Entities
		// created so far are not rolled back.
		if uerr := s.repo.UpdateImportBatchCounts(ctx, batch.ID, inserted, len(records)-inserted, []string{err.Error()}); uerr != nil {
			s.logger.Warn("failed to record partial batch outcome", slog.Any("error", uerr))
		}
		return err
	}

	if err := s.repo.UpdateImportBatchCounts(ctx, batch.ID, inserted, 0, nil); err != nil {
		return err
	}

	result.RecurringTemplatesCreated = s.createRecurringTemplates(ctx, input.WorkspaceID, candidates)
	return nil
}

// resolveDefaultCategory finds or creates the workspace's default category.
// Find-then-create keeps the call idempotent for a single import; concurrent
// imports can still race, which the schema's uniqueness constraint absorbs.
func (s *ImportService) resolveDefaultCategory(ctx context.Context, workspaceID uuid.UUID) (*repository.Category, error) {
	existing, err := s.repo.FindCategoryByName(ctx, workspaceID, DefaultCategoryName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	category := &repository.Category{WorkspaceID: workspaceID, Name: DefaultCategoryName}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// resolveProjects finds or creates one project per declared project sheet and
// returns a lowercase-name index. Newly created project names are
// capitalized.
func (s *ImportService) resolveProjects(ctx context.Context, workspaceID uuid.UUID, projectSheets []string) (map[string]uuid.UUID, error) {
	projects := make(map[string]uuid.UUID, len(projectSheets))
	for _, sheetName := range projectSheets {
		name := strings.TrimSpace(sheetName)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, done := projects[key]; done {
			continue
		}

		existing, err := s.repo.FindProjectByName(ctx, workspaceID, name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			projects[key] = existing.ID
			continue
		}

		project := &repository.Project{WorkspaceID: workspaceID, Name: capitalize(name)}
		if err := s.repo.CreateProject(ctx, project); err != nil {
			return nil, err
		}
		projects[key] = project.ID
	}
	return projects, nil
}

// createRecurringTemplates creates a monthly active template per candidate,
// skipping names that already exist in the workspace. Failures here are
// logged and skipped: the imported rows are already persisted and a missing
// template is recoverable from the returned candidate list.
func (s *ImportService) createRecurringTemplates(ctx context.Context, workspaceID uuid.UUID, candidates []classifier.RecurringCandidate) int {
	created := 0
	for _, cand := range candidates {
		existing, err := s.repo.FindRecurringTemplateByName(ctx, workspaceID, cand.Name)
		if err != nil {
			s.logger.Warn("recurring template lookup failed",
				slog.String("name", cand.Name), slog.Any("error", err))
			continue
		}
		if existing != nil {
			continue
		}

		template := &repository.RecurringTemplate{
			WorkspaceID: workspaceID,
			Name:        cand.Name,
			Amount:      cand.Amount,
			Type:        string(cand.Type),
			Cadence:     "monthly",
			Active:      true,
		}
		if err := s.repo.CreateRecurringTemplate(ctx, template); err != nil {
			s.logger.Warn("recurring template creation failed",
				slog.String("name", cand.Name), slog.Any("error", err))
			continue
		}
		created++
	}
	return created
}

func (s *ImportService) fail(outcome, message string) *ImportResult {
	importsTotal.WithLabelValues(outcome).Inc()
	return &ImportResult{
		Success: false,
		Errors:  []string{message},
	}
}

func countStats(rows []*classifier.ParsedRow) ImportStats {
	var stats ImportStats
	for _, row := range rows {
		switch row.Type {
		case classifier.TypeSurvivalFixed:
			stats.SurvivalFixed++
		case classifier.TypeSurvivalVariable:
			stats.SurvivalVariable++
		case classifier.TypeLifestyle:
			stats.Lifestyle++
		case classifier.TypeProject:
			stats.Project++
		}
	}
	return stats
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size <= 1 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
