package data_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"skucluster/pkg/core"
	"skucluster/pkg/data"
	"skucluster/pkg/logging"
)

func observed() (context.Context, *observer.ObservedLogs) {
	obs, logs := observer.New(zapcore.DebugLevel)
	return logging.WithLogger(context.Background(), zap.New(obs).Sugar()), logs
}

// writeWorkbook stores rows on Sheet1 starting at A1.
func writeWorkbook(t *testing.T, path string, rows [][]interface{}, style func(*excelize.File)) {
	t.Helper()
	f := excelize.NewFile()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	if style != nil {
		style(f)
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skus.csv")
	body := "ID, Unitprice ,Pal height\n1,2.5,1.2\n2,,n/a\n3,0,1.4\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	ctx, logs := observed()
	ds, err := data.Load(ctx, path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Unitprice", "Pal height"}, ds.Names)
	require.Equal(t, 3, ds.Len())
	assert.Equal(t, []float64{1, 2.5, 1.2}, ds.Rows[0])
	assert.True(t, math.IsNaN(ds.Rows[1][1]), "blank cell")
	assert.True(t, math.IsNaN(ds.Rows[1][2]), "non-numeric cell")
	assert.Equal(t, 0.0, ds.Rows[2][1], "zeros are kept as read")

	warned := logs.FilterMessage("non-numeric cells read as missing").All()
	require.Len(t, warned, 1)
	fields := warned[0].ContextMap()
	assert.EqualValues(t, 1, fields["cells"])
	assert.EqualValues(t, 1, fields["Pal height"])
	assert.NotContains(t, fields, "Unitprice", "blank cells are not rejections")
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skus.xlsx")
	writeWorkbook(t, path, [][]interface{}{
		{"ID", "Unitprice", "Units per pal"},
		{1, 2.5, 80},
		{2, "", 60},
		{3, 4},
	}, nil)

	ctx, logs := observed()
	ds, err := data.Load(ctx, path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Unitprice", "Units per pal"}, ds.Names)
	require.Equal(t, 3, ds.Len())
	assert.Equal(t, []float64{1, 2.5, 80}, ds.Rows[0])
	assert.True(t, math.IsNaN(ds.Rows[1][1]))
	assert.True(t, math.IsNaN(ds.Rows[2][2]), "short row padded")
	assert.Zero(t, logs.FilterMessage("non-numeric cells read as missing").Len())

	_, err = data.LoadXLSX(ctx, path, "Missing")
	assert.Error(t, err)
}

func TestLoadXLSXReadsFormattedNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "styled.xlsx")
	writeWorkbook(t, path, [][]interface{}{
		{"Unitprice", "Pal grossweight"},
		{1234.5, 1234.5},
		{0.5, 15000},
	}, func(f *excelize.File) {
		thousands, err := f.NewStyle(&excelize.Style{NumFmt: 3}) // #,##0
		require.NoError(t, err)
		require.NoError(t, f.SetCellStyle("Sheet1", "B2", "B3", thousands))
		percent, err := f.NewStyle(&excelize.Style{NumFmt: 9}) // 0%
		require.NoError(t, err)
		require.NoError(t, f.SetCellStyle("Sheet1", "A3", "A3", percent))
	})

	ctx, logs := observed()
	ds, err := data.LoadXLSX(ctx, path, data.DefaultSheet)
	require.NoError(t, err)
	assert.Equal(t, []float64{1234.5, 15000}, ds.Col(1))
	assert.Equal(t, []float64{1234.5, 0.5}, ds.Col(0))
	assert.Zero(t, logs.FilterMessage("non-numeric cells read as missing").Len())
}

func TestLoadXLSXCountsTextCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "text.xlsx")
	writeWorkbook(t, path, [][]interface{}{
		{"Unitprice", "Pal height"},
		{"n/a", 1.2},
		{"tbd", "-"},
		{3, 1.1},
	}, nil)

	ctx, logs := observed()
	ds, err := data.LoadXLSX(ctx, path, "")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(ds.Rows[0][0]))
	assert.Equal(t, 3.0, ds.Rows[2][0])

	warned := logs.FilterMessage("non-numeric cells read as missing").All()
	require.Len(t, warned, 1)
	fields := warned[0].ContextMap()
	assert.EqualValues(t, 3, fields["cells"])
	assert.EqualValues(t, 2, fields["Unitprice"])
	assert.EqualValues(t, 1, fields["Pal height"])
}

func TestLoadEmptySheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	_, err := data.LoadXLSX(context.Background(), path, data.DefaultSheet)
	assert.True(t, errors.Is(err, core.ErrDataShape))
}

func TestLoadUnsupported(t *testing.T) {
	_, err := data.Load(context.Background(), "skus.json", "")
	assert.True(t, errors.Is(err, core.ErrConfiguration))

	_, err = data.Load(context.Background(), filepath.Join(t.TempDir(), "absent.csv"), "")
	assert.Error(t, err)
}
