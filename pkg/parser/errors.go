package parser

import "errors"

var (
	// ErrUnsupportedFormat is returned when the input format is not supported.
	ErrUnsupportedFormat = errors.New("parser: unsupported format")

	// ErrLegacyExcel is returned for .xls workbooks.
	ErrLegacyExcel = errors.New("parser: legacy .xls workbooks are not readable, save the file as .xlsx")

	// ErrEmptyFile is returned when the input has no header row.
	ErrEmptyFile = errors.New("parser: file has no header row")

	// ErrInvalidCSV is returned when CSV parsing fails.
	ErrInvalidCSV = errors.New("parser: invalid CSV format")

	// ErrRaggedRow is returned when a CSV row has more fields than the header.
	ErrRaggedRow = errors.New("parser: row has more fields than the header")

	// ErrNoSheet is returned when a workbook has no worksheets.
	ErrNoSheet = errors.New("parser: no sheets found in workbook")
)
