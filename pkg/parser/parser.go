// Package parser loads uploaded tables (CSV or XLSX) into datasets.
package parser

import (
	"bufio"
	"compress/gzip"
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/appenmapper/appenmapper/internal/model"
	amerrors "github.com/appenmapper/appenmapper/pkg/errors"
)

// Loader reads one table from r.
// Implementations must respect context cancellation between rows.
type Loader interface {
	Load(ctx context.Context, r io.Reader) (*model.Dataset, error)
}

// Format represents a supported input format.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatCSV
	FormatXLSX
	FormatXLS
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatXLSX:
		return "xlsx"
	case FormatXLS:
		return "xls"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format string.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "csv":
		return FormatCSV
	case "xlsx", "xlsm", "excel":
		return FormatXLSX
	case "xls":
		return FormatXLS
	default:
		return FormatUnknown
	}
}

// DetectFormat picks a format from a file name. Anything that is not a CSV
// is read as a spreadsheet.
func DetectFormat(name string) Format {
	f := ParseFormat(BaseExt(name))
	if f == FormatUnknown {
		return FormatXLSX
	}
	return f
}

// BaseExt returns the lower-case extension after stripping a .gz suffix.
// e.g., "file.csv.gz" -> ".csv"
func BaseExt(name string) string {
	lower := strings.ToLower(name)
	lower = strings.TrimSuffix(lower, ".gz")
	return filepath.Ext(lower)
}

// Config holds loader options.
type Config struct {
	// Delimiter is the CSV field delimiter (default: comma).
	Delimiter rune

	// SkipBlankRows drops rows whose every cell is blank.
	SkipBlankRows bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Delimiter:     ',',
		SkipBlankRows: true,
	}
}

// NewLoader creates a loader for the given format.
func NewLoader(format Format, cfg Config) (Loader, error) {
	switch format {
	case FormatCSV:
		return NewCSVLoader(cfg), nil
	case FormatXLSX:
		return NewXLSXLoader(cfg), nil
	case FormatXLS:
		return nil, ErrLegacyExcel
	default:
		return nil, ErrUnsupportedFormat
	}
}

// Load detects the format from name and reads r with the default config.
// Every failure is reported as a LoadFailure carrying the file name.
func Load(ctx context.Context, name string, r io.Reader) (*model.Dataset, error) {
	return LoadWith(ctx, name, r, DefaultConfig())
}

// LoadWith is Load with an explicit config.
func LoadWith(ctx context.Context, name string, r io.Reader, cfg Config) (*model.Dataset, error) {
	loader, err := NewLoader(DetectFormat(name), cfg)
	if err != nil {
		return nil, amerrors.LoadFailure(name, err)
	}

	r, closeFn, err := maybeGunzip(name, r)
	if err != nil {
		return nil, amerrors.LoadFailure(name, err)
	}
	defer closeFn()

	ds, err := loader.Load(ctx, r)
	if err != nil {
		return nil, amerrors.LoadFailure(name, err)
	}
	return ds, nil
}

// maybeGunzip decompresses r when name ends in .gz and the stream starts
// with the gzip magic. Streams that were already decompressed pass through.
func maybeGunzip(name string, r io.Reader) (io.Reader, func() error, error) {
	noop := func() error { return nil }
	if !strings.HasSuffix(strings.ToLower(name), ".gz") {
		return r, noop, nil
	}

	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil || magic[0] != 0x1f || magic[1] != 0x8b {
		return br, noop, nil
	}

	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, nil, err
	}
	return gz, gz.Close, nil
}

// columnNames disambiguates a header row the way spreadsheet tools do:
// blank names become "Unnamed: i" and repeats get ".1", ".2" suffixes.
func columnNames(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	taken := make(map[string]bool, len(header))
	for _, h := range header {
		taken[h] = true
	}

	for i, h := range header {
		name := h
		if strings.TrimSpace(name) == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			candidate := name + "." + strconv.Itoa(n)
			for taken[candidate] {
				n++
				candidate = name + "." + strconv.Itoa(n)
			}
			seen[name] = n + 1
			taken[candidate] = true
			out[i] = candidate
			continue
		}
		seen[name] = 1
		taken[name] = true
		out[i] = name
	}
	return out
}

// blank reports whether every cell in rec is blank.
func blank(rec []string) bool {
	for _, s := range rec {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}

// checkCanceled returns a Canceled error once ctx is done.
func checkCanceled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return amerrors.Wrap(ctx.Err(), amerrors.CodeCanceled, "load canceled")
	default:
		return nil
	}
}
