package parser

import (
	"bytes"
	"compress/gzip"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/appenmapper/appenmapper/internal/model"
	amerrors "github.com/appenmapper/appenmapper/pkg/errors"
)

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"file1.csv":     FormatCSV,
		"FILE1.CSV":     FormatCSV,
		"file1.csv.gz":  FormatCSV,
		"master.xlsx":   FormatXLSX,
		"master.xlsm":   FormatXLSX,
		"old.xls":       FormatXLS,
		"no-extension":  FormatXLSX,
		"report.ods":    FormatXLSX,
		"archive.gz":    FormatXLSX,
		"dir.v2/file.x": FormatXLSX,
	}
	for name, want := range tests {
		assert.Equal(t, want, DetectFormat(name), name)
	}
}

func TestLoadCSV(t *testing.T) {
	input := "Customer Number/ID,Company,City\n100,Acme,\n200,\"Big, Inc\",Paris\n"

	ds, err := Load(context.Background(), "file2.csv", strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"Customer Number/ID", "Company", "City"}, ds.Columns)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, model.String("100"), ds.Cell(0, "Customer Number/ID"))
	assert.True(t, ds.Cell(0, "City").IsEmpty())
	assert.Equal(t, "Big, Inc", ds.Cell(1, "Company").String())
}

func TestLoadCSV_KeepsText(t *testing.T) {
	ds, err := Load(context.Background(), "f.csv", strings.NewReader("id,zip\n00123,02134\n"))
	require.NoError(t, err)
	assert.Equal(t, model.KindString, ds.Cell(0, "id").Kind())
	assert.Equal(t, "02134", ds.Cell(0, "zip").String())
}

func TestLoadCSV_ShortAndBlankRows(t *testing.T) {
	input := "a,b,c\n1,2\n\n,,\n4,5,6\n"

	ds, err := Load(context.Background(), "f.csv", strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.True(t, ds.Cell(0, "c").IsEmpty())
	assert.Equal(t, "6", ds.Cell(1, "c").String())
}

func TestLoadCSV_LongRow(t *testing.T) {
	_, err := Load(context.Background(), "f.csv", strings.NewReader("a,b\n1,2,3\n"))
	require.Error(t, err)
	assert.True(t, amerrors.Is(err, amerrors.ErrLoadFailure))
	assert.ErrorIs(t, err, ErrRaggedRow)
}

func TestLoadCSV_Empty(t *testing.T) {
	_, err := Load(context.Background(), "f.csv", strings.NewReader(""))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyFile)

	var e *amerrors.Error
	require.True(t, amerrors.As(err, &e))
	assert.Equal(t, amerrors.CodeLoadFailure, e.Code)
	file, _ := e.Get("file")
	assert.Equal(t, "f.csv", file)
}

func TestLoadCSV_DuplicateHeaders(t *testing.T) {
	ds, err := Load(context.Background(), "f.csv", strings.NewReader("Name,Name,,Name.1,Name\n1,2,3,4,5\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Name.2", "Unnamed: 2", "Name.1", "Name.3"}, ds.Columns)
}

func TestColumnNames(t *testing.T) {
	assert.Equal(t, []string{"A", "A.1", "A.2", "B"}, columnNames([]string{"A", "A", "A", "B"}))
	assert.Equal(t, []string{"Unnamed: 0", "x"}, columnNames([]string{" ", "x"}))
}

func TestLoadCSV_Latin1Fallback(t *testing.T) {
	latin, err := charmap.ISO8859_1.NewEncoder().String("Customer Number/ID,Company\n1,Société Générale\n")
	require.NoError(t, err)

	l := NewCSVLoader(DefaultConfig())
	ds, err := l.Load(context.Background(), strings.NewReader(latin))
	require.NoError(t, err)
	assert.Equal(t, EncodingLatin1, l.Encoding)
	assert.Equal(t, "Société Générale", ds.Cell(0, "Company").String())
}

func TestLoadCSV_UTF8BOM(t *testing.T) {
	input := "\xEF\xBB\xBFCustomer Number/ID,Company\n1,Acme\n"

	l := NewCSVLoader(DefaultConfig())
	ds, err := l.Load(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, EncodingUTF8BOM, l.Encoding)
	assert.Equal(t, "Customer Number/ID", ds.Columns[0])
}

func TestLoadCSV_UTF16(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.String("id,name\n7,Zoë\n")
	require.NoError(t, err)

	l := NewCSVLoader(DefaultConfig())
	ds, err := l.Load(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, EncodingUTF16LE, l.Encoding)
	assert.Equal(t, []string{"id", "name"}, ds.Columns)
	assert.Equal(t, "Zoë", ds.Cell(0, "name").String())
}

func TestLoadCSV_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("id,name\n1,a\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	ds, err := Load(context.Background(), "f.csv.gz", &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())

	// Already decompressed streams pass through.
	ds, err = Load(context.Background(), "f.csv.gz", strings.NewReader("id,name\n1,a\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
}

func TestLoad_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, "f.csv", strings.NewReader("a\n1\n"))
	require.Error(t, err)
	assert.True(t, amerrors.Is(err, amerrors.ErrCanceled))
}

func TestLoad_LegacyExcel(t *testing.T) {
	_, err := Load(context.Background(), "old.xls", strings.NewReader("whatever"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLegacyExcel)
	assert.True(t, amerrors.IsCode(err, amerrors.CodeLoadFailure))
}

func TestLoad_GarbageSpreadsheet(t *testing.T) {
	_, err := Load(context.Background(), "upload.bin", strings.NewReader("not a workbook"))
	require.Error(t, err)
	assert.True(t, amerrors.IsCode(err, amerrors.CodeLoadFailure))
}

func buildWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestLoadXLSX(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"Customer Number/ID", "Company", "SIC", "Zip"},
		{100, "Acme", 7372.5, "02134"},
		{nil, nil, nil, nil},
		{"A-7", nil, 12, nil},
	})

	ds, err := Load(context.Background(), "master.xlsx", buf)
	require.NoError(t, err)

	assert.Equal(t, []string{"Customer Number/ID", "Company", "SIC", "Zip"}, ds.Columns)
	require.Equal(t, 2, ds.Len())

	id := ds.Cell(0, "Customer Number/ID")
	assert.Equal(t, model.KindNumber, id.Kind())
	assert.Equal(t, "100", id.String())

	sic, ok := ds.Cell(0, "SIC").Float()
	assert.True(t, ok)
	assert.Equal(t, 7372.5, sic)
	assert.Equal(t, model.String("02134"), ds.Cell(0, "Zip"))

	assert.Equal(t, "A-7", ds.Cell(1, "Customer Number/ID").String())
	assert.True(t, ds.Cell(1, "Company").IsEmpty())
}

func TestLoadXLSX_WideRows(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"id", "name"},
		{1, "a", "extra"},
	})

	ds, err := Load(context.Background(), "wide.xlsx", buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "Unnamed: 2"}, ds.Columns)
	assert.Equal(t, "extra", ds.Cell(0, "Unnamed: 2").String())
}

func TestLoadXLSX_StoredCellTypes(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Customer Number/ID", "SIC", "Amount"}))
	// Text-formatted id and full-precision numbers as Excel stores them.
	require.NoError(t, f.SetCellStr(sheet, "A2", "100"))
	require.NoError(t, f.SetCellDefault(sheet, "B2", "12.300000000000001"))
	require.NoError(t, f.SetCellDefault(sheet, "C2", "0.10000000000000001"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	ds, err := Load(context.Background(), "typed.xlsx", buf)
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())

	assert.Equal(t, model.String("100"), ds.Cell(0, "Customer Number/ID"))

	sic, ok := ds.Cell(0, "SIC").Float()
	assert.True(t, ok)
	assert.Equal(t, 12.300000000000001, sic)

	amount, ok := ds.Cell(0, "Amount").Float()
	assert.True(t, ok)
	assert.Equal(t, 0.1, amount)
}

func TestCellValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		typ  excelize.CellType
		want model.Value
	}{
		{"empty", "", excelize.CellTypeUnset, model.Empty},
		{"blank text", "  ", excelize.CellTypeSharedString, model.Empty},
		{"integer", "42", excelize.CellTypeUnset, model.Number(42)},
		{"negative", "-3.25", excelize.CellTypeNumber, model.Number(-3.25)},
		{"exponent", "1E+20", excelize.CellTypeUnset, model.Number(1e20)},
		{"seventeen digits", "12.300000000000001", excelize.CellTypeUnset, model.Number(12.300000000000001)},
		{"long decimal", "0.10000000000000001", excelize.CellTypeNumber, model.Number(0.1)},
		{"text number", "100", excelize.CellTypeSharedString, model.String("100")},
		{"inline text number", "00123", excelize.CellTypeInlineString, model.String("00123")},
		{"formula text", "1.50", excelize.CellTypeFormula, model.String("1.50")},
		{"numeric NaN", "NaN", excelize.CellTypeUnset, model.String("NaN")},
		{"text", "ABC", excelize.CellTypeSharedString, model.String("ABC")},
		{"bool true", "1", excelize.CellTypeBool, model.String("TRUE")},
		{"date", "2024-01-02", excelize.CellTypeDate, model.String("2024-01-02")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cellValue(tt.raw, tt.typ))
		})
	}
}
