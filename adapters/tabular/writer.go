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
	"gordd/ports"
)

const sheetName = "Sheet1"

// Store reads and writes datasets as flat tabular files, dispatching on the
// path extension: .csv or .xlsx. Both formats carry the identical canonical
// schema, so generated and loaded data are interchangeable.
type Store struct{}

var _ ports.DatasetWriter = (*Store)(nil)
var _ ports.DatasetReader = (*Store)(nil)

func NewStore() *Store {
	return &Store{}
}

// Write exports the dataset with the canonical header row.
func (s *Store) Write(path string, ds *dataset.Dataset) error {
	if ds == nil || ds.Len() == 0 {
		return core.NewParameterError("dataset", "has no rows")
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return writeCSV(path, ds)
	case ".xlsx":
		return writeXLSX(path, ds)
	default:
		return core.NewParameterError("path", fmt.Sprintf("unsupported extension %q, want .csv or .xlsx", ext))
	}
}

func writeCSV(path string, ds *dataset.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(dataset.Headers()); err != nil {
		return err
	}
	for i := 0; i < ds.Len(); i++ {
		if err := w.Write(encodeRow(ds, i)); err != nil {
			return err
		}
	}
	return w.Error()
}

func writeXLSX(path string, ds *dataset.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	for c, h := range dataset.Headers() {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}
	for i := 0; i < ds.Len(); i++ {
		for c, v := range encodeRow(ds, i) {
			cell, err := excelize.CoordinatesToCellName(c+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}

// encodeRow prints one session in canonical column order. Cart values keep
// their two decimals, counters print as plain integers, indicators as 0/1.
func encodeRow(ds *dataset.Dataset, i int) []string {
	return []string{
		strconv.FormatInt(ds.SessionID[i], 10),
		ds.CustomerAge[i],
		strconv.FormatFloat(ds.TenureDays[i], 'f', -1, 64),
		strconv.FormatFloat(ds.PreviousPurchases[i], 'f', -1, 64),
		ds.ProductCategory[i],
		strconv.FormatFloat(ds.ItemsInCart[i], 'f', -1, 64),
		strconv.FormatFloat(ds.CartValue[i], 'f', 2, 64),
		strconv.FormatFloat(ds.Treatment[i], 'f', -1, 64),
		strconv.FormatFloat(ds.Completed[i], 'f', -1, 64),
		strconv.FormatFloat(ds.Y0[i], 'f', -1, 64),
		strconv.FormatFloat(ds.Y1[i], 'f', -1, 64),
	}
}
