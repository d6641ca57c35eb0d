package parser

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/appenmapper/appenmapper/internal/model"
)

// XLSXLoader reads the first worksheet of an Excel workbook.
type XLSXLoader struct {
	cfg Config
}

// NewXLSXLoader creates a new XLSX loader.
func NewXLSXLoader(cfg Config) *XLSXLoader {
	return &XLSXLoader{cfg: cfg}
}

// Load reads the first sheet. The first row is the header. Cells are read
// raw, so numbers keep their stored value rather than the display format.
// Note: XLSX parsing requires random access, so streams are buffered in memory.
func (l *XLSXLoader) Load(ctx context.Context, r io.Reader) (*model.Dataset, error) {
	var xlFile *excelize.File
	var err error

	if f, ok := r.(*os.File); ok {
		xlFile, err = excelize.OpenFile(f.Name())
	} else {
		xlFile, err = excelize.OpenReader(r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer xlFile.Close()

	sheetName := xlFile.GetSheetName(0)
	if sheetName == "" {
		sheetList := xlFile.GetSheetList()
		if len(sheetList) == 0 {
			return nil, ErrNoSheet
		}
		sheetName = sheetList[0]
	}

	rows, err := xlFile.Rows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	defer rows.Close()

	raw := excelize.Options{RawCellValue: true}

	if !rows.Next() {
		if err := rows.Error(); err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		return nil, ErrEmptyFile
	}
	header, err := rows.Columns(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Data may extend past the header; those cells get "Unnamed" columns,
	// so rows are collected before the dataset is built.
	var records []model.Record
	width := len(header)
	rowNum := 1
	for rows.Next() {
		rowNum++
		if err := checkCanceled(ctx); err != nil {
			return nil, err
		}

		cols, err := rows.Columns(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", rowNum, err)
		}
		if l.cfg.SkipBlankRows && blank(cols) {
			continue
		}
		if len(cols) > width {
			width = len(cols)
		}

		rec := make(model.Record, len(cols))
		for i, s := range cols {
			typ, err := cellType(xlFile, sheetName, i+1, rowNum, s)
			if err != nil {
				return nil, fmt.Errorf("failed to read row %d: %w", rowNum, err)
			}
			rec[i] = cellValue(s, typ)
		}
		records = append(records, rec)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	for len(header) < width {
		header = append(header, "")
	}

	ds := model.NewDataset(columnNames(header)...)
	for _, rec := range records {
		ds.Append(rec...)
	}

	return ds, nil
}

// cellType returns the stored type of a cell. Only cells whose raw text
// parses as a number are looked up; for anything else the type cannot
// change the resulting Value.
func cellType(f *excelize.File, sheet string, col, row int, s string) (excelize.CellType, error) {
	if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
		return excelize.CellTypeSharedString, nil
	}
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return excelize.CellTypeUnset, err
	}
	return f.GetCellType(sheet, ref)
}

// cellValue converts a raw cell by its stored type. Numeric cells (no type
// attribute or "n") become a Number when the raw text is a finite float,
// whatever its digit count. Text cells stay text even when they look
// numeric, so a text "00123" or "100" keeps its form.
func cellValue(s string, typ excelize.CellType) model.Value {
	if strings.TrimSpace(s) == "" {
		return model.Empty
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return model.String(s)
		}
		return model.Number(f)
	case excelize.CellTypeBool:
		switch s {
		case "1":
			return model.String("TRUE")
		case "0":
			return model.String("FALSE")
		}
		return model.String(s)
	default:
		return model.String(s)
	}
}
