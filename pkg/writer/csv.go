package writer

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/appenmapper/appenmapper/internal/model"
	amerrors "github.com/appenmapper/appenmapper/pkg/errors"
)

// CSVWriter writes a header row followed by every record.
type CSVWriter struct {
	cfg Config
}

// NewCSVWriter creates a new CSV writer.
func NewCSVWriter(cfg Config) *CSVWriter {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	return &CSVWriter{cfg: cfg}
}

// ContentType implements Writer.
func (w *CSVWriter) ContentType() string { return "text/csv; charset=utf-8" }

// Ext implements Writer.
func (w *CSVWriter) Ext() string { return ".csv" }

// Write implements Writer. Missing values are written as empty fields.
func (w *CSVWriter) Write(ctx context.Context, ds *model.Dataset, out io.Writer) error {
	cw := csv.NewWriter(out)
	cw.Comma = w.cfg.Delimiter

	if err := cw.Write(ds.Columns); err != nil {
		return amerrors.WriteFailed("csv", err)
	}
	for i, rec := range ds.Strings() {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return amerrors.Wrap(err, amerrors.CodeCanceled, "export canceled")
			}
		}
		if err := cw.Write(rec); err != nil {
			return amerrors.WriteFailed("csv", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return amerrors.WriteFailed("csv", err)
	}
	return nil
}
