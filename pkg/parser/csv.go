package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/appenmapper/appenmapper/internal/model"
)

// CSVLoader reads comma-separated tables. The first record is the header;
// every cell is kept as text.
type CSVLoader struct {
	cfg Config

	// Encoding is set after Load to the detected input encoding.
	Encoding Encoding
}

// NewCSVLoader creates a new CSV loader.
func NewCSVLoader(cfg Config) *CSVLoader {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	return &CSVLoader{cfg: cfg}
}

// Load implements the Loader interface.
func (l *CSVLoader) Load(ctx context.Context, r io.Reader) (*model.Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text, enc, err := decodeText(data)
	if err != nil {
		return nil, err
	}
	l.Encoding = enc

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = l.cfg.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	ds := model.NewDataset(columnNames(header)...)
	for {
		if err := checkCanceled(ctx); err != nil {
			return nil, err
		}

		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}

		if len(rec) > len(ds.Columns) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d has %d fields, header has %d",
				ErrRaggedRow, line, len(rec), len(ds.Columns))
		}
		if l.cfg.SkipBlankRows && blank(rec) {
			continue
		}

		values := make([]model.Value, len(rec))
		for i, s := range rec {
			values[i] = model.Text(s)
		}
		ds.Append(values...)
	}

	return ds, nil
}
