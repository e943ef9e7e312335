package export

import (
	"context"
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ForsunJay/TGTEST/internal/domain/entity"
	"github.com/ForsunJay/TGTEST/internal/domain/lifecycle"
)

func TestCSVExporter(t *testing.T) {
	exporter := NewCSVExporter(t.TempDir(), zap.NewNop())

	created := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)
	requests := []*entity.Request{
		{
			ID:        1,
			UserID:    42,
			Project:   "mf_rf",
			Amount:    decimal.RequireFromString("150.50"),
			Currency:  "USD",
			Source:    "cash",
			Status:    lifecycle.StatusPending,
			CreatedAt: created,
		},
	}

	path, err := exporter.Export(context.Background(), requests)
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header, one data row, one totals row")

	assert.Equal(t, reportHeaders, records[0])
	assert.Equal(t, "150.50", records[1][3])
	assert.Equal(t, "Total", records[2][2])
	assert.Equal(t, "USD", records[2][4])
}
