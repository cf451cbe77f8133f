// Command importer runs one workbook, CSV file or bank statement through the
// import pipeline and prints the outcome.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slendyzo/vibefinance-sub000/internal/domain/import/parser"
	importrepo "github.com/slendyzo/vibefinance-sub000/internal/domain/import/repository"
	importservice "github.com/slendyzo/vibefinance-sub000/internal/domain/import/service"
	"github.com/slendyzo/vibefinance-sub000/pkg/config"
	"github.com/slendyzo/vibefinance-sub000/pkg/db"
)

func main() {
	var (
		filePath      = flag.String("file", "", "path of the file to import")
		kind          = flag.String("kind", "", "file kind: xlsx, xls, csv or pdf (inferred from the extension when empty)")
		workspace     = flag.String("workspace", "", "workspace id (uuid)")
		uploader      = flag.String("uploader", "", "uploader id (uuid, defaults to the workspace id)")
		sheets        = flag.String("sheets", "", "comma-separated sheet names to import (all when empty)")
		projectSheets = flag.String("project-sheets", "", "comma-separated sheet names holding project expenses")
		dateCol       = flag.Int("date-col", 0, "zero-based date column (-1 for none)")
		nameCol       = flag.Int("name-col", 1, "zero-based name column")
		amountCol     = flag.Int("amount-col", 2, "zero-based amount column")
		headerRow     = flag.Int("header-row", 1, "one-based header row")
		preview       = flag.Bool("preview", false, "inspect the file and print detected layout without importing")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(logger, runOptions{
		filePath:      *filePath,
		kind:          *kind,
		workspace:     *workspace,
		uploader:      *uploader,
		sheets:        *sheets,
		projectSheets: *projectSheets,
		dateCol:       *dateCol,
		nameCol:       *nameCol,
		amountCol:     *amountCol,
		headerRow:     *headerRow,
		preview:       *preview,
	}); err != nil {
		logger.Error("import failed", slog.Any("error", err))
		os.Exit(1)
	}
}

type runOptions struct {
	filePath      string
	kind          string
	workspace     string
	uploader      string
	sheets        string
	projectSheets string
	dateCol       int
	nameCol       int
	amountCol     int
	headerRow     int
	preview       bool
}

func run(logger *slog.Logger, opts runOptions) error {
	if opts.filePath == "" {
		return fmt.Errorf("-file is required")
	}

	payload, err := os.ReadFile(opts.filePath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	fileKind := opts.kind
	if fileKind == "" {
		fileKind = inferKind(opts.filePath)
	}
	fileName := filepath.Base(opts.filePath)

	mapping := parser.Mapping{
		DateCol:        opts.dateCol,
		NameCol:        opts.nameCol,
		AmountCol:      opts.amountCol,
		HeaderRow:      opts.headerRow,
		SheetsToImport: splitList(opts.sheets),
		ProjectSheets:  splitList(opts.projectSheets),
	}

	if opts.preview {
		return runPreview(logger, payload, fileKind, fileName)
	}

	workspaceID, err := uuid.Parse(opts.workspace)
	if err != nil {
		return fmt.Errorf("invalid -workspace id: %w", err)
	}
	uploaderID := workspaceID
	if opts.uploader != "" {
		if uploaderID, err = uuid.Parse(opts.uploader); err != nil {
			return fmt.Errorf("invalid -uploader id: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	database, err := db.New(db.Config{
		DSN:             cfg.Database.DSN(),
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := database.RunMigrations(); err != nil {
		return err
	}

	svc := importservice.NewImportService(
		importrepo.NewPostgresImportRepository(database.Pool), logger)

	result := svc.Import(context.Background(), importservice.ImportInput{
		Payload:     payload,
		FileKind:    fileKind,
		WorkspaceID: workspaceID,
		UploaderID:  uploaderID,
		FileName:    fileName,
		Mapping:     &mapping,
	})

	printResult(result)
	if !result.Success {
		return fmt.Errorf("import did not complete")
	}
	return nil
}

func runPreview(logger *slog.Logger, payload []byte, fileKind, fileName string) error {
	svc := importservice.NewImportService(nil, logger)
	res, err := svc.Preview(payload, fileKind, fileName)
	if err != nil {
		return err
	}

	m := res.SuggestedMapping
	fmt.Printf("suggested mapping: date=%d name=%d amount=%d header-row=%d\n",
		m.DateCol, m.NameCol, m.AmountCol, m.HeaderRow)
	for _, sheet := range res.Sheets {
		fmt.Printf("sheet %q: %d rows, header at row %d, mixed signs: %v\n",
			sheet.Name, sheet.TotalRows, sheet.HeaderRow, sheet.HasMixedValues)
		for _, row := range sheet.SampleRows {
			fmt.Printf("  %s\n", strings.Join(row, " | "))
		}
	}
	return nil
}

func printResult(result *importservice.ImportResult) {
	fmt.Printf("imported %d rows (fixed=%d variable=%d lifestyle=%d project=%d) from %s\n",
		result.ImportedCount,
		result.Stats.SurvivalFixed,
		result.Stats.SurvivalVariable,
		result.Stats.Lifestyle,
		result.Stats.Project,
		strings.Join(result.SourcesProcessed, ", "))
	if result.RecurringTemplatesCreated > 0 {
		fmt.Printf("created %d recurring templates\n", result.RecurringTemplatesCreated)
	}
	for _, msg := range result.Errors {
		fmt.Printf("error: %s\n", msg)
	}
}

func inferKind(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return parser.KindXLSX
	case ".xls":
		return parser.KindXLS
	case ".csv", ".txt":
		return parser.KindCSV
	case ".pdf":
		return parser.KindPDF
	default:
		return parser.KindXLSX
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
