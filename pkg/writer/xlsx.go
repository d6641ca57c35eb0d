package writer

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/appenmapper/appenmapper/internal/model"
	amerrors "github.com/appenmapper/appenmapper/pkg/errors"
)

// XLSXWriter writes a dataset to a single-sheet workbook through excelize's
// stream writer.
type XLSXWriter struct {
	cfg Config
}

// NewXLSXWriter creates a new XLSX writer.
func NewXLSXWriter(cfg Config) *XLSXWriter {
	if cfg.SheetName == "" {
		cfg.SheetName = DefaultSheetName
	}
	return &XLSXWriter{cfg: cfg}
}

// ContentType implements Writer.
func (w *XLSXWriter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Ext implements Writer.
func (w *XLSXWriter) Ext() string { return ".xlsx" }

// Write implements Writer. Numbers become numeric cells, strings text cells
// and missing values blank cells.
func (w *XLSXWriter) Write(ctx context.Context, ds *model.Dataset, out io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), w.cfg.SheetName); err != nil {
		return amerrors.WriteFailed(w.cfg.SheetName, err)
	}

	sw, err := f.NewStreamWriter(w.cfg.SheetName)
	if err != nil {
		return amerrors.WriteFailed(w.cfg.SheetName, err)
	}

	header := make([]any, len(ds.Columns))
	for i, c := range ds.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return amerrors.WriteFailed(w.cfg.SheetName, err)
	}

	for i, row := range ds.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return amerrors.Wrap(err, amerrors.CodeCanceled, "export canceled")
			}
		}

		cells := make([]any, len(ds.Columns))
		for j := range cells {
			if j < len(row) {
				cells[j] = cellOf(row[j])
			}
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return amerrors.WriteFailed(w.cfg.SheetName, err)
		}
		if err := sw.SetRow(axis, cells); err != nil {
			return amerrors.WriteFailed(w.cfg.SheetName, fmt.Errorf("row %d: %w", i+2, err))
		}
	}

	if err := sw.Flush(); err != nil {
		return amerrors.WriteFailed(w.cfg.SheetName, err)
	}
	if _, err := f.WriteTo(out); err != nil {
		return amerrors.WriteFailed(w.cfg.SheetName, err)
	}
	return nil
}

func cellOf(v model.Value) any {
	switch v.Kind() {
	case model.KindNumber:
		f, _ := v.Float()
		return f
	case model.KindString:
		return v.String()
	default:
		return nil
	}
}
