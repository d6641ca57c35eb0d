// Package writer exports datasets as XLSX workbooks or CSV files.
package writer

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/appenmapper/appenmapper/internal/model"
)

// DefaultFileName is the download name of the updated target.
const DefaultFileName = "appen_mapper_updated_file2.xlsx"

// DefaultSheetName is the worksheet the updated target is written to.
const DefaultSheetName = "UpdatedData"

// Writer defines the interface for serializing a dataset.
type Writer interface {
	// Write serializes ds to w. It should respect context cancellation.
	Write(ctx context.Context, ds *model.Dataset, w io.Writer) error

	// ContentType is the MIME type of the output.
	ContentType() string

	// Ext is the file extension of the output, with the leading dot.
	Ext() string
}

// Config holds writer configuration.
type Config struct {
	// SheetName is the worksheet name for XLSX output.
	SheetName string

	// Delimiter is the CSV field delimiter (default: comma).
	Delimiter rune
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SheetName: DefaultSheetName,
		Delimiter: ',',
	}
}

// Format represents an output format.
type Format uint8

const (
	FormatXLSX Format = iota
	FormatCSV
)

// String returns the format name.
func (f Format) String() string {
	if f == FormatCSV {
		return "csv"
	}
	return "xlsx"
}

// ParseFormat parses a format string. Unknown names select XLSX.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "csv":
		return FormatCSV
	default:
		return FormatXLSX
	}
}

// New creates a writer for the given format.
func New(format Format, cfg Config) Writer {
	if format == FormatCSV {
		return NewCSVWriter(cfg)
	}
	return NewXLSXWriter(cfg)
}

// ForPath picks a writer from the output path's extension, ignoring a
// trailing .gz.
func ForPath(path string, cfg Config) Writer {
	p := strings.TrimSuffix(strings.ToLower(path), ".gz")
	return New(ParseFormat(filepath.Ext(p)), cfg)
}
