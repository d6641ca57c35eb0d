package writer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/appenmapper/appenmapper/internal/model"
	"github.com/appenmapper/appenmapper/pkg/parser"
)

func sample() *model.Dataset {
	ds := model.NewDataset("Customer Number/ID", "Company", "SIC")
	ds.Append(model.Number(100), model.String("Acme"), model.Number(7372))
	ds.Append(model.String("A-7"), model.Empty, model.String("n/a"))
	return ds
}

func TestForPath(t *testing.T) {
	assert.IsType(t, &XLSXWriter{}, ForPath("out.xlsx", DefaultConfig()))
	assert.IsType(t, &CSVWriter{}, ForPath("out.CSV", DefaultConfig()))
	assert.IsType(t, &CSVWriter{}, ForPath("out.csv.gz", DefaultConfig()))
	assert.IsType(t, &XLSXWriter{}, ForPath("out", DefaultConfig()))
}

func TestXLSXWriter_Sheet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewXLSXWriter(DefaultConfig()).Write(context.Background(), sample(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{DefaultSheetName}, f.GetSheetList())

	typ, err := f.GetCellType(DefaultSheetName, "A2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ)

	v, err := f.GetCellValue(DefaultSheetName, "B3")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestXLSXWriter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := New(FormatXLSX, DefaultConfig())
	require.NoError(t, w.Write(context.Background(), sample(), &buf))

	got, err := parser.Load(context.Background(), DefaultFileName, &buf)
	require.NoError(t, err)

	assert.Equal(t, sample(), got)
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(DefaultConfig())
	require.NoError(t, w.Write(context.Background(), sample(), &buf))

	want := "Customer Number/ID,Company,SIC\n100,Acme,7372\nA-7,,n/a\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, ".csv", w.Ext())

	got, err := parser.Load(context.Background(), "out.csv", strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Cell(0, "Company").String())
	assert.True(t, got.Cell(1, "Company").IsEmpty())
}

func TestWrite_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	assert.Error(t, NewXLSXWriter(DefaultConfig()).Write(ctx, sample(), &buf))
	assert.Error(t, NewCSVWriter(DefaultConfig()).Write(ctx, sample(), &buf))
}
