package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gordd/domain/core"
	"gordd/domain/dataset"
)

// Read loads a previously exported dataset, validating the canonical header
// and the structural dataset invariants.
func (s *Store) Read(path string) (*dataset.Dataset, error) {
	var rows [][]string
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return nil, core.NewParameterError("path", fmt.Sprintf("unsupported extension %q, want .csv or .xlsx", ext))
	}
	if err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return csv.NewReader(f).ReadAll()
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	return f.GetRows(sheetName)
}

func decodeRows(rows [][]string) (*dataset.Dataset, error) {
	if len(rows) < 2 {
		return nil, core.NewParameterError("file", "needs a header row and at least one data row")
	}
	want := dataset.Headers()
	header := rows[0]
	if len(header) != len(want) {
		return nil, core.NewParameterError("header", fmt.Sprintf("has %d columns, want %d", len(header), len(want)))
	}
	for i, h := range header {
		if strings.TrimSpace(h) != want[i] {
			return nil, core.NewParameterError("header", fmt.Sprintf("column %d is %q, want %q", i+1, h, want[i]))
		}
	}

	ds := dataset.New(len(rows) - 1)
	for r, row := range rows[1:] {
		if len(row) != len(want) {
			return nil, core.NewParameterError("file", fmt.Sprintf("row %d has %d cells, want %d", r+2, len(row), len(want)))
		}
		id, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil {
			return nil, cellError(dataset.ColSessionID, r, row[0])
		}
		ds.SessionID[r] = id
		ds.CustomerAge[r] = strings.TrimSpace(row[1])
		ds.ProductCategory[r] = strings.TrimSpace(row[4])

		numeric := []struct {
			name string
			cell string
			dst  []float64
		}{
			{dataset.ColTenureDays, row[2], ds.TenureDays},
			{dataset.ColPreviousPurchases, row[3], ds.PreviousPurchases},
			{dataset.ColItemsInCart, row[5], ds.ItemsInCart},
			{dataset.ColCartValue, row[6], ds.CartValue},
			{dataset.ColTreatment, row[7], ds.Treatment},
			{dataset.ColCompleted, row[8], ds.Completed},
			{dataset.ColY0, row[9], ds.Y0},
			{dataset.ColY1, row[10], ds.Y1},
		}
		for _, col := range numeric {
			v, err := strconv.ParseFloat(strings.TrimSpace(col.cell), 64)
			if err != nil {
				return nil, cellError(col.name, r, col.cell)
			}
			col.dst[r] = v
		}
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

func cellError(column string, row int, cell string) error {
	return core.NewParameterError(column, fmt.Sprintf("row %d: %q is not numeric", row+2, cell))
}
