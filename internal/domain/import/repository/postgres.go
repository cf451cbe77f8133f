package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// parseNumeric reads a postgres numeric scanned as text.
func parseNumeric(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// Querier is the subset of pgxpool.Pool the repository needs. pgxmock's pool
// interface satisfies it, which keeps the repository testable without a
// database.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresImportRepository implements ImportRepository on PostgreSQL.
type PostgresImportRepository struct {
	db Querier
}

// NewPostgresImportRepository creates a new PostgreSQL import repository.
func NewPostgresImportRepository(db Querier) *PostgresImportRepository {
	return &PostgresImportRepository{db: db}
}

// FindCategoryByName looks a category up by case-insensitive name.
func (r *PostgresImportRepository) FindCategoryByName(ctx context.Context, workspaceID uuid.UUID, name string) (*Category, error) {
	query := `
		SELECT id, workspace_id, name, created_at
		FROM categories
		WHERE workspace_id = $1 AND lower(name) = lower($2)`

	cat := &Category{}
	err := r.db.QueryRow(ctx, query, workspaceID, name).Scan(
		&cat.ID, &cat.WorkspaceID, &cat.Name, &cat.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return cat, nil
}

// CreateCategory inserts a new category.
func (r *PostgresImportRepository) CreateCategory(ctx context.Context, category *Category) error {
	query := `
		INSERT INTO categories (id, workspace_id, name)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, query, category.ID, category.WorkspaceID, category.Name).
		Scan(&category.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// FindProjectByName looks a project up by case-insensitive name.
func (r *PostgresImportRepository) FindProjectByName(ctx context.Context, workspaceID uuid.UUID, name string) (*Project, error) {
	query := `
		SELECT id, workspace_id, name, created_at
		FROM projects
		WHERE workspace_id = $1 AND lower(name) = lower($2)`

	proj := &Project{}
	err := r.db.QueryRow(ctx, query, workspaceID, name).Scan(
		&proj.ID, &proj.WorkspaceID, &proj.Name, &proj.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return proj, nil
}

// CreateProject inserts a new project.
func (r *PostgresImportRepository) CreateProject(ctx context.Context, project *Project) error {
	query := `
		INSERT INTO projects (id, workspace_id, name)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, query, project.ID, project.WorkspaceID, project.Name).
		Scan(&project.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// FindRecurringTemplateByName looks a recurring template up by
// case-insensitive name.
func (r *PostgresImportRepository) FindRecurringTemplateByName(ctx context.Context, workspaceID uuid.UUID, name string) (*RecurringTemplate, error) {
	query := `
		SELECT id, workspace_id, name, amount, type, cadence, active, created_at
		FROM recurring_templates
		WHERE workspace_id = $1 AND lower(name) = lower($2)`

	tpl := &RecurringTemplate{}
	var amount string
	err := r.db.QueryRow(ctx, query, workspaceID, name).Scan(
		&tpl.ID, &tpl.WorkspaceID, &tpl.Name, &amount,
		&tpl.Type, &tpl.Cadence, &tpl.Active, &tpl.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recurring template: %w", err)
	}
	if tpl.Amount, err = parseNumeric(amount); err != nil {
		return nil, fmt.Errorf("failed to read recurring template amount: %w", err)
	}
	return tpl, nil
}

// CreateRecurringTemplate inserts a new recurring template.
func (r *PostgresImportRepository) CreateRecurringTemplate(ctx context.Context, template *RecurringTemplate) error {
	query := `
		INSERT INTO recurring_templates (id, workspace_id, name, amount, type, cadence, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	if template.ID == uuid.Nil {
		template.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, query,
		template.ID,
		template.WorkspaceID,
		template.Name,
		template.Amount.String(),
		template.Type,
		template.Cadence,
		template.Active,
	).Scan(&template.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create recurring template: %w", err)
	}
	return nil
}

// CreateImportBatch inserts the batch record before its expense rows so every
// row can link back to it.
func (r *PostgresImportRepository) CreateImportBatch(ctx context.Context, batch *ImportBatch) error {
	query := `
		INSERT INTO import_batches (id, workspace_id, uploader_id, file_name, file_kind, rows_total, rows_imported, rows_failed, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	errs := batch.Errors
	if errs == nil {
		errs = []string{}
	}
	err := r.db.QueryRow(ctx, query,
		batch.ID,
		batch.WorkspaceID,
		batch.UploaderID,
		batch.FileName,
		batch.FileKind,
		batch.RowsTotal,
		batch.RowsImported,
		batch.RowsFailed,
		errs,
	).Scan(&batch.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create import batch: %w", err)
	}
	return nil
}

// UpdateImportBatchCounts records the final row outcome for a batch.
func (r *PostgresImportRepository) UpdateImportBatchCounts(ctx context.Context, id uuid.UUID, rowsImported, rowsFailed int, errs []string) error {
	query := `UPDATE import_batches SET rows_imported = $2, rows_failed = $3, errors = $4 WHERE id = $1`

	if errs == nil {
		errs = []string{}
	}
	tag, err := r.db.Exec(ctx, query, id, rowsImported, rowsFailed, errs)
	if err != nil {
		return fmt.Errorf("failed to update import batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("import batch %s not found", id)
	}
	return nil
}

// BulkInsertExpenses writes all records in one pgx batch round trip and
// returns the inserted count.
func (r *PostgresImportRepository) BulkInsertExpenses(ctx context.Context, records []*ExpenseRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO expenses (id, workspace_id, batch_id, category_id, project_id, date, name, raw_input, amount, home_amount, type, source_name, row_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	batch := &pgx.Batch{}
	for _, rec := range records {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		batch.Queue(query,
			rec.ID,
			rec.WorkspaceID,
			rec.BatchID,
			rec.CategoryID,
			rec.ProjectID,
			rec.Date,
			rec.Name,
			rec.RawInput,
			rec.Amount.String(),
			rec.HomeAmount.String(),
			rec.Type,
			rec.SourceName,
			rec.RowNumber,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range records {
		if _, err := results.Exec(); err != nil {
			return inserted, fmt.Errorf("failed to insert expense rows: %w", err)
		}
		inserted++
	}
	return inserted, nil
}
