package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/slendyzo/vibefinance-sub000/internal/domain/import/classifier"
	"github.com/slendyzo/vibefinance-sub000/internal/domain/import/parser"
	"github.com/slendyzo/vibefinance-sub000/internal/domain/import/repository"
	"github.com/slendyzo/vibefinance-sub000/internal/domain/import/service"
)

// fakeRepo is an in-memory ImportRepository for service-level tests.
type fakeRepo struct {
	categories []*repository.Category
	projects   []*repository.Project
	templates  []*repository.RecurringTemplate
	batches    []*repository.ImportBatch
	expenses   []*repository.ExpenseRecord

	batchCounts   map[uuid.UUID]int
	batchFailures map[uuid.UUID]int

	failBulkInsert     bool
	failTemplateCreate bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		batchCounts:   make(map[uuid.UUID]int),
		batchFailures: make(map[uuid.UUID]int),
	}
}

func (f *fakeRepo) FindCategoryByName(_ context.Context, workspaceID uuid.UUID, name string) (*repository.Category, error) {
	for _, c := range f.categories {
		if c.WorkspaceID == workspaceID && strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) CreateCategory(_ context.Context, category *repository.Category) error {
	category.ID = uuid.New()
	f.categories = append(f.categories, category)
	return nil
}

func (f *fakeRepo) FindProjectByName(_ context.Context, workspaceID uuid.UUID, name string) (*repository.Project, error) {
	for _, p := range f.projects {
		if p.WorkspaceID == workspaceID && strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) CreateProject(_ context.Context, project *repository.Project) error {
	project.ID = uuid.New()
	f.projects = append(f.projects, project)
	return nil
}

func (f *fakeRepo) FindRecurringTemplateByName(_ context.Context, workspaceID uuid.UUID, name string) (*repository.RecurringTemplate, error) {
	for _, t := range f.templates {
		if t.WorkspaceID == workspaceID && strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) CreateRecurringTemplate(_ context.Context, template *repository.RecurringTemplate) error {
	if f.failTemplateCreate {
		return errors.New("template insert failed")
	}
	template.ID = uuid.New()
	f.templates = append(f.templates, template)
	return nil
}

func (f *fakeRepo) CreateImportBatch(_ context.Context, batch *repository.ImportBatch) error {
	batch.ID = uuid.New()
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeRepo) UpdateImportBatchCounts(_ context.Context, batchID uuid.UUID, imported, failed int, errs []string) error {
	f.batchCounts[batchID] = imported
	f.batchFailures[batchID] = failed
	return nil
}

func (f *fakeRepo) BulkInsertExpenses(_ context.Context, records []*repository.ExpenseRecord) (int, error) {
	if f.failBulkInsert {
		return 0, errors.New("insert failed")
	}
	f.expenses = append(f.expenses, records...)
	return len(records), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildWorkbook(t *testing.T, sheets map[string][][]string, order []string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			for c, cell := range row {
				ref, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellStr(name, ref, cell))
			}
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestImportMonthlyWorkbook(t *testing.T) {
	repo := newFakeRepo()
	svc := service.NewImportService(repo, testLogger())

	payload := buildWorkbook(t, map[string][][]string{
		"Dezembro 2025": {
			{"Data", "Nome", "Valor"},
			{"", "Renda", "700,00"},
			{"", "Luz", "45,00"},
			{"02/12/2025", "Supermercado", "60,00"},
			{"", "Café", "2,50"},
			{"", "Total", "807,50"},
		},
		"Obras WC": {
			{"Data", "Nome", "Valor"},
			{"", "Tinta", "30,00"},
		},
	}, []string{"Dezembro 2025", "Obras WC"})

	workspaceID := uuid.New()
	mapping := parser.DefaultMapping()
	mapping.ProjectSheets = []string{"Obras WC"}

	result := svc.Import(context.Background(), service.ImportInput{
		Payload:     payload,
		FileKind:    parser.KindXLSX,
		WorkspaceID: workspaceID,
		UploaderID:  workspaceID,
		FileName:    "orcamento.xlsx",
		Mapping:     &mapping,
	})

	require.True(t, result.Success, "errors: %v", result.Errors)
	assert.Equal(t, 5, result.ImportedCount, "total row is dropped")
	assert.Equal(t, 1, result.Stats.SurvivalFixed)
	assert.Equal(t, 1, result.Stats.SurvivalVariable)
	assert.Equal(t, 2, result.Stats.Lifestyle)
	assert.Equal(t, 1, result.Stats.Project)
	assert.Equal(t, []string{"Dezembro 2025", "Obras WC"}, result.SourcesProcessed)

	// Recurring block became templates.
	require.Len(t, result.RecurringCandidates, 2)
	assert.Equal(t, 2, result.RecurringTemplatesCreated)
	require.Len(t, repo.templates, 2)
	assert.Equal(t, "monthly", repo.templates[0].Cadence)
	assert.True(t, repo.templates[0].Active)

	// Shared entities.
	require.Len(t, repo.categories, 1)
	assert.Equal(t, service.DefaultCategoryName, repo.categories[0].Name)
	require.Len(t, repo.projects, 1)
	assert.Equal(t, "Obras WC", repo.projects[0].Name)

	// Project rows carry the project id, others do not.
	var projectRows, plainRows int
	for _, rec := range repo.expenses {
		assert.Equal(t, workspaceID, rec.WorkspaceID)
		if rec.Type == string(classifier.TypeProject) {
			require.NotNil(t, rec.ProjectID)
			assert.Equal(t, repo.projects[0].ID, *rec.ProjectID)
			projectRows++
		} else {
			assert.Nil(t, rec.ProjectID)
			plainRows++
		}
	}
	assert.Equal(t, 1, projectRows)
	assert.Equal(t, 4, plainRows)

	// Batch bookkeeping.
	require.Len(t, repo.batches, 1)
	assert.Equal(t, "orcamento.xlsx", repo.batches[0].FileName)
	assert.Equal(t, 5, repo.batches[0].RowsTotal)
	assert.Equal(t, 5, repo.batchCounts[repo.batches[0].ID])
}

func TestImportSheetSelection(t *testing.T) {
	repo := newFakeRepo()
	svc := service.NewImportService(repo, testLogger())

	payload := buildWorkbook(t, map[string][][]string{
		"Dezembro 2025": {{"Data", "Nome", "Valor"}, {"01/12/2025", "Renda", "700,00"}},
		"Notas":         {{"Data", "Nome", "Valor"}, {"", "Rascunho", "1,00"}},
	}, []string{"Dezembro 2025", "Notas"})

	mapping := parser.DefaultMapping()
	mapping.SheetsToImport = []string{"Dezembro 2025"}

	result := svc.Import(context.Background(), service.ImportInput{
		Payload:     payload,
		FileKind:    parser.KindXLSX,
		WorkspaceID: uuid.New(),
		FileName:    "orcamento.xlsx",
		Mapping:     &mapping,
	})

	require.True(t, result.Success)
	assert.Equal(t, 1, result.ImportedCount)
	assert.Equal(t, []string{"Dezembro 2025"}, result.SourcesProcessed)
}

func TestImportCSV(t *testing.T) {
	repo := newFakeRepo()
	svc := service.NewImportService(repo, testLogger())

	payload := []byte("data;nome;valor\n01/12/2025;Supermercado;60,00\n;Café;2,50\n")

	result := svc.Import(context.Background(), service.ImportInput{
		Payload:     payload,
		FileKind:    parser.KindCSV,
		WorkspaceID: uuid.New(),
		FileName:    "movimentos.csv",
	})

	require.True(t, result.Success, "errors: %v", result.Errors)
	assert.Equal(t, 2, result.ImportedCount)
	assert.Equal(t, 2, result.Stats.Lifestyle)
	assert.Equal(t, []string{"movimentos"}, result.SourcesProcessed)

	require.Len(t, repo.expenses, 2)
	dec1 := time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, dec1, repo.expenses[0].Date)
	assert.Equal(t, dec1, repo.expenses[1].Date, "second row inherits the date")
}

func TestImportStatementText(t *testing.T) {
	repo := newFakeRepo()
	svc := service.NewImportService(repo, testLogger())

	text := "EXTRATO\n01/12/2025 COMPRA CONTINENTE 45,30 €\n02/12/2025 Saldo 1.200,00\n03/12/2025 LEVANTAMENTO ATM -60,00\n"

	result := svc.Import(context.Background(), service.ImportInput{
		Payload:     []byte(text),
		FileKind:    parser.KindPDF,
		WorkspaceID: uuid.New(),
		FileName:    "extrato.pdf",
	})

	require.True(t, result.Success, "errors: %v", result.Errors)
	assert.Equal(t, 2, result.ImportedCount)
	assert.Equal(t, 2, result.Stats.Lifestyle, "statement lines are always lifestyle")
	assert.Empty(t, result.RecurringCandidates)

	require.Len(t, repo.expenses, 2)
	assert.Equal(t, "COMPRA CONTINENTE", repo.expenses[0].Name)
	assert.True(t, decimal.RequireFromString("45.30").Equal(repo.expenses[0].Amount))
	assert.Equal(t, "extrato.pdf", repo.expenses[0].SourceName)
}

func TestImportInvalidMapping(t *testing.T) {
	svc := service.NewImportService(newFakeRepo(), testLogger())

	mapping := parser.Mapping{DateCol: 0, NameCol: 1, AmountCol: 1, HeaderRow: 1}
	result := svc.Import(context.Background(), service.ImportInput{
		Payload:     []byte("x"),
		FileKind:    parser.KindCSV,
		WorkspaceID: uuid.New(),
		FileName:    "x.csv",
		Mapping:     &mapping,
	})

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "column mapping")
}

func TestImportUnreadablePayload(t *testing.T) {
	svc := service.NewImportService(newFakeRepo(), testLogger())

	result := svc.Import(context.Background(), service.ImportInput{
		Payload:     []byte("not a workbook"),
		FileKind:    parser.KindXLSX,
		WorkspaceID: uuid.New(),
		FileName:    "broken.xlsx",
	})

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "could not read")
}

func TestImportEmptyResultGuidance(t *testing.T) {
	repo := newFakeRepo()
	svc := service.NewImportService(repo, testLogger())

	// Parseable file whose rows all drop: guidance failure, nothing persisted.
	payload := []byte("nome;valor\nTotal;745,00\n;10,00\n")

	result := svc.Import(context.Background(), service.ImportInput{
		Payload:     payload,
		FileKind:    parser.KindCSV,
		WorkspaceID: uuid.New(),
		FileName:    "x.csv",
	})

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "columns")
	assert.Empty(t, repo.batches)
	assert.Empty(t, repo.expenses)
}

func TestImportPersistenceFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.failBulkInsert = true
	svc := service.NewImportService(repo, testLogger())

	result := svc.Import(context.Background(), service.ImportInput{
		Payload:     []byte("data;nome;valor\n01/12/2025;Renda;700,00\n"),
		FileKind:    parser.KindCSV,
		WorkspaceID: uuid.New(),
		FileName:    "x.csv",
	})

	assert.False(t, result.Success)
	assert.Equal(t, 0, result.ImportedCount)
	assert.Equal(t, 1, result.FailedCount)
	require.NotEmpty(t, result.Errors)

	require.Len(t, repo.batches, 1)
	assert.Equal(t, 1, repo.batchFailures[repo.batches[0].ID], "partial outcome recorded on the batch")
}

func TestImportTemplateFailureDoesNotFailImport(t *testing.T) {
	repo := newFakeRepo()
	repo.failTemplateCreate = true
	svc := service.NewImportService(repo, testLogger())

	payload := buildWorkbook(t, map[string][][]string{
		"Dezembro 2025": {
			{"Data", "Nome", "Valor"},
			{"", "Renda", "700,00"},
		},
	}, []string{"Dezembro 2025"})

	result := svc.Import(context.Background(), service.ImportInput{
		Payload:     payload,
		FileKind:    parser.KindXLSX,
		WorkspaceID: uuid.New(),
		FileName:    "x.xlsx",
	})

	require.True(t, result.Success)
	assert.Equal(t, 1, result.ImportedCount)
	assert.Equal(t, 0, result.RecurringTemplatesCreated)
	require.Len(t, result.RecurringCandidates, 1, "candidate still reported")
}

func TestImportSkipsExistingTemplates(t *testing.T) {
	repo := newFakeRepo()
	workspaceID := uuid.New()
	repo.templates = append(repo.templates, &repository.RecurringTemplate{
		ID: uuid.New(), WorkspaceID: workspaceID, Name: "Renda",
		Amount: decimal.NewFromInt(700), Type: string(classifier.TypeSurvivalFixed),
		Cadence: "monthly", Active: true,
	})
	svc := service.NewImportService(repo, testLogger())

	payload := buildWorkbook(t, map[string][][]string{
		"Dezembro 2025": {
			{"Data", "Nome", "Valor"},
			{"", "renda", "750,00"},
			{"", "Luz", "45,00"},
		},
	}, []string{"Dezembro 2025"})

	result := svc.Import(context.Background(), service.ImportInput{
		Payload:     payload,
		FileKind:    parser.KindXLSX,
		WorkspaceID: workspaceID,
		FileName:    "x.xlsx",
	})

	require.True(t, result.Success)
	assert.Equal(t, 1, result.RecurringTemplatesCreated, "only the new name")
	assert.Len(t, repo.templates, 2)
}

func TestImportReusesExistingProject(t *testing.T) {
	repo := newFakeRepo()
	workspaceID := uuid.New()
	existing := &repository.Project{ID: uuid.New(), WorkspaceID: workspaceID, Name: "Obras wc"}
	repo.projects = append(repo.projects, existing)
	svc := service.NewImportService(repo, testLogger())

	payload := buildWorkbook(t, map[string][][]string{
		"obras WC": {{"Data", "Nome", "Valor"}, {"", "Tinta", "30,00"}},
	}, []string{"obras WC"})

	mapping := parser.DefaultMapping()
	mapping.ProjectSheets = []string{"obras WC"}

	result := svc.Import(context.Background(), service.ImportInput{
		Payload:     payload,
		FileKind:    parser.KindXLSX,
		WorkspaceID: workspaceID,
		FileName:    "x.xlsx",
		Mapping:     &mapping,
	})

	require.True(t, result.Success)
	assert.Len(t, repo.projects, 1, "matched case-insensitively, not recreated")
	require.Len(t, repo.expenses, 1)
	require.NotNil(t, repo.expenses[0].ProjectID)
	assert.Equal(t, existing.ID, *repo.expenses[0].ProjectID)
}
