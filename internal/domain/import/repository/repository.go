// Package repository provides data access for the entities an import touches:
// categories, projects, recurring templates, import batches and expense rows.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category is a workspace-scoped expense category. Imports only ever resolve
// or create the default "Uncategorized" one.
type Category struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Name        string
	CreatedAt   time.Time
}

// Project is a user-defined project entity resolved from project sheet names.
type Project struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Name        string
	CreatedAt   time.Time
}

// RecurringTemplate is a monthly recurring expense template created from a
// deduplicated recurring candidate.
type RecurringTemplate struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Name        string
	Amount      decimal.Decimal
	Type        string // "survival_fixed" or "survival_variable"
	Cadence     string // always "monthly" for imported templates
	Active      bool
	CreatedAt   time.Time
}

// ImportBatch is the persisted grouping of all records created by one import
// call, used for later bulk review/undo.
type ImportBatch struct {
	ID           uuid.UUID
	WorkspaceID  uuid.UUID
	UploaderID   uuid.UUID
	FileName     string
	FileKind     string
	RowsTotal    int
	RowsImported int
	RowsFailed   int
	Errors       []string
	CreatedAt    time.Time
}

// ExpenseRecord is one imported expense row linked to its batch.
type ExpenseRecord struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	BatchID     uuid.UUID
	CategoryID  uuid.UUID
	ProjectID   *uuid.UUID // set only for project records
	Date        time.Time
	Name        string
	RawInput    string
	Amount      decimal.Decimal
	// HomeAmount carries the amount at face value; currency conversion is
	// out of scope, so it always equals Amount on import.
	HomeAmount decimal.Decimal
	Type       string
	SourceName string
	RowNumber  int
}

// ImportRepository defines the storage operations consumed by the import
// orchestrator. Find operations return (nil, nil) when no row matches; name
// matching is case-insensitive.
type ImportRepository interface {
	FindCategoryByName(ctx context.Context, workspaceID uuid.UUID, name string) (*Category, error)
	CreateCategory(ctx context.Context, category *Category) error

	FindProjectByName(ctx context.Context, workspaceID uuid.UUID, name string) (*Project, error)
	CreateProject(ctx context.Context, project *Project) error

	FindRecurringTemplateByName(ctx context.Context, workspaceID uuid.UUID, name string) (*RecurringTemplate, error)
	CreateRecurringTemplate(ctx context.Context, template *RecurringTemplate) error

	CreateImportBatch(ctx context.Context, batch *ImportBatch) error
	UpdateImportBatchCounts(ctx context.Context, id uuid.UUID, rowsImported, rowsFailed int, errs []string) error

	// BulkInsertExpenses inserts all records linked to their batch and
	// returns the number of rows actually written.
	BulkInsertExpenses(ctx context.Context, records []*ExpenseRecord) (int, error)
}
