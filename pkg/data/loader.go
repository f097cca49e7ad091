// Package data reads tabular SKU exports into a core.Dataset.
package data

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"

	"skucluster/pkg/core"
	"skucluster/pkg/logging"
)

// DefaultSheet is read from workbooks when no sheet is named.
const DefaultSheet = "Sheet1"

// Load reads path as CSV or XLSX depending on its extension. sheet only
// applies to workbooks.
func Load(ctx context.Context, path, sheet string) (*core.Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(ctx, path)
	case ".xlsx", ".xlsm":
		return LoadXLSX(ctx, path, sheet)
	default:
		return nil, fmt.Errorf("%w: unsupported input %q (want .csv or .xlsx)", core.ErrConfiguration, path)
	}
}

// LoadCSV reads a CSV file with a header row. Every column is read as
// numbers; blank cells become missing. Non-numeric cells also become missing
// and are counted per column in a warning.
func LoadCSV(ctx context.Context, path string) (*core.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("data: open %s: %w", path, err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, dataframe.HasHeader(true), dataframe.DetectTypes(false))
	if df.Err != nil {
		return nil, fmt.Errorf("data: parse %s: %w", path, df.Err)
	}
	names := trimNames(df.Names())
	nrows, ncols := df.Dims()
	rows := make([][]float64, nrows)
	for i := range rows {
		rows[i] = make([]float64, ncols)
	}
	p := newCellParser(names)
	for j, name := range df.Names() {
		for i, s := range df.Col(name).Records() {
			rows[i][j] = p.parse(j, s)
		}
	}
	p.report(ctx, path)
	return core.NewDataset(names, rows)
}

// LoadXLSX reads one sheet of a workbook; the first row holds the column
// names. Cells are read as stored, not as displayed, so number formats such
// as "#,##0" do not affect parsing. Short rows are padded with missing cells.
func LoadXLSX(ctx context.Context, path, sheet string) (*core.Dataset, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("data: open %s: %w", path, err)
	}
	defer f.Close()

	records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("data: read sheet %q of %s: %w", sheet, path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: sheet %q of %s is empty", core.ErrDataShape, sheet, path)
	}
	names := trimNames(records[0])
	rows := make([][]float64, 0, len(records)-1)
	p := newCellParser(names)
	for _, rec := range records[1:] {
		row := make([]float64, len(names))
		for j := range row {
			if j < len(rec) {
				row[j] = p.parse(j, rec[j])
			} else {
				row[j] = core.Missing()
			}
		}
		rows = append(rows, row)
	}
	p.report(ctx, path)
	return core.NewDataset(names, rows)
}

// cellParser turns cell text into numbers and counts, per column, the
// non-empty cells that are not numbers.
type cellParser struct {
	names    []string
	rejected []int
}

func newCellParser(names []string) *cellParser {
	return &cellParser{names: names, rejected: make([]int, len(names))}
}

func (p *cellParser) parse(j int, s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Missing()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		p.rejected[j]++
		return core.Missing()
	}
	return v
}

// total returns the number of rejected cells over all columns.
func (p *cellParser) total() int {
	n := 0
	for _, c := range p.rejected {
		n += c
	}
	return n
}

func (p *cellParser) report(ctx context.Context, path string) {
	if p.total() == 0 {
		return
	}
	fields := []interface{}{"path", path, "cells", p.total()}
	for j, c := range p.rejected {
		if c > 0 {
			fields = append(fields, p.names[j], c)
		}
	}
	logging.FromContext(ctx).Warnw("non-numeric cells read as missing", fields...)
}

func trimNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.TrimSpace(n)
	}
	return out
}
