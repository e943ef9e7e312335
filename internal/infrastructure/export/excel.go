package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ForsunJay/TGTEST/internal/application/port"
	"github.com/ForsunJay/TGTEST/internal/domain/entity"
)

// reportHeaders is the column layout of the exported sheet
var reportHeaders = []string{
	"ID", "Creator", "Project", "Amount", "Currency",
	"Source", "Status", "Period Start", "Period End", "Note", "Created",
}

// ExcelExporter writes request listings to .xlsx files
type ExcelExporter struct {
	outputDir string
	logger    *zap.Logger
	now       func() time.Time
}

// NewExcelExporter creates an Excel exporter
func NewExcelExporter(outputDir string, logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{
		outputDir: outputDir,
		logger:    logger,
		now:       time.Now,
	}
}

// Export writes the requests to a timestamped workbook and returns its
// path
func (e *ExcelExporter) Export(ctx context.Context, requests []*entity.Request) (string, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	const sheet = "Requests"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return "", fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("failed to remove default sheet: %w", err)
	}

	for col, header := range reportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	row := 2
	writeRow := func(values []interface{}) error {
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("failed to build cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write cell: %w", err)
			}
		}
		row++
		return nil
	}

	for _, request := range requests {
		values := []interface{}{
			request.ID,
			request.UserID,
			request.Project,
			request.Amount.String(),
			request.Currency,
			request.Source,
			string(request.Status),
			formatDate(request.PeriodStart),
			formatDate(request.PeriodEnd),
			request.Note,
			request.CreatedAt.Format("2006-01-02 15:04"),
		}
		if err := writeRow(values); err != nil {
			return "", err
		}
	}

	// One totals row per currency; amounts across currencies never sum
	for _, total := range totalsByCurrency(requests) {
		values := []interface{}{
			"", "", "Total", total.amount.String(), total.currency,
		}
		if err := writeRow(values); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(e.outputDir, fmt.Sprintf("requests_%s.xlsx", e.now().Format("20060102_150405")))
	if err := f.SaveAs(path); err != nil {
		e.logger.Error("Failed to save export", zap.String("path", path), zap.Error(err))
		return "", fmt.Errorf("failed to save export: %w", err)
	}

	e.logger.Info("Export written",
		zap.String("path", path),
		zap.Int("rows", len(requests)))

	return path, nil
}

type currencyTotal struct {
	currency string
	amount   decimal.Decimal
}

// totalsByCurrency sums request amounts grouped by currency, sorted for a
// stable sheet layout
func totalsByCurrency(requests []*entity.Request) []currencyTotal {
	if len(requests) == 0 {
		return nil
	}

	sums := make(map[string]decimal.Decimal)
	for _, request := range requests {
		sums[request.Currency] = sums[request.Currency].Add(request.Amount)
	}

	currencies := make([]string, 0, len(sums))
	for currency := range sums {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)

	totals := make([]currencyTotal, 0, len(currencies))
	for _, currency := range currencies {
		totals = append(totals, currencyTotal{currency: currency, amount: sums[currency]})
	}
	return totals
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

var _ port.Exporter = (*ExcelExporter)(nil)
