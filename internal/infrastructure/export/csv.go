package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ForsunJay/TGTEST/internal/application/port"
	"github.com/ForsunJay/TGTEST/internal/domain/entity"
)

// CSVExporter writes request listings to .csv files with the same column
// layout as the Excel exporter
type CSVExporter struct {
	outputDir string
	logger    *zap.Logger
	now       func() time.Time
}

// NewCSVExporter creates a CSV exporter
func NewCSVExporter(outputDir string, logger *zap.Logger) *CSVExporter {
	return &CSVExporter{
		outputDir: outputDir,
		logger:    logger,
		now:       time.Now,
	}
}

// Export writes the requests to a timestamped CSV file and returns its
// path
func (e *CSVExporter) Export(ctx context.Context, requests []*entity.Request) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(e.outputDir, fmt.Sprintf("requests_%s.csv", e.now().Format("20060102_150405")))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(reportHeaders); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}

	for _, request := range requests {
		record := []string{
			strconv.FormatInt(request.ID, 10),
			strconv.FormatInt(request.UserID, 10),
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
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to write record: %w", err)
		}
	}

	for _, total := range totalsByCurrency(requests) {
		record := []string{"", "", "Total", total.amount.String(), total.currency, "", "", "", "", "", ""}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to write totals: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush export: %w", err)
	}

	e.logger.Info("Export written",
		zap.String("path", path),
		zap.Int("rows", len(requests)))

	return path, nil
}

var _ port.Exporter = (*CSVExporter)(nil)
