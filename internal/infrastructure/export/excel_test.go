package export

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ForsunJay/TGTEST/internal/domain/entity"
	"github.com/ForsunJay/TGTEST/internal/domain/lifecycle"
)

func TestExcelExporter(t *testing.T) {
	exporter := NewExcelExporter(t.TempDir(), zap.NewNop())

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	requests := []*entity.Request{
		{
			ID:          1,
			UserID:      42,
			Project:     "mf_rf",
			Amount:      decimal.RequireFromString("150.50"),
			Currency:    "USD",
			Source:      "cash",
			Status:      lifecycle.StatusPending,
			Note:        "Advertising",
			PeriodStart: &start,
			CreatedAt:   start,
		},
		{
			ID:        2,
			UserID:    7,
			Project:   "mf_kz",
			Amount:    decimal.NewFromInt(99),
			Currency:  "KZT",
			Source:    "crypto",
			Status:    lifecycle.StatusPaid,
			CreatedAt: start,
		},
	}

	path, err := exporter.Export(context.Background(), requests)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Requests")
	require.NoError(t, err)
	require.Len(t, rows, 5, "header, two data rows, one total per currency")

	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "150.50", rows[1][3])
	assert.Equal(t, "pending", rows[1][6])
	assert.Equal(t, "paid", rows[2][6])

	// Totals are per currency, sorted
	assert.Equal(t, "Total", rows[3][2])
	assert.Equal(t, "99", rows[3][3])
	assert.Equal(t, "KZT", rows[3][4])
	assert.Equal(t, "150.50", rows[4][3])
	assert.Equal(t, "USD", rows[4][4])
}

func TestExcelExporterEmpty(t *testing.T) {
	exporter := NewExcelExporter(t.TempDir(), zap.NewNop())

	path, err := exporter.Export(context.Background(), nil)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Requests")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")
}
