package tui

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appenmapper/appenmapper/internal/model"
	amerrors "github.com/appenmapper/appenmapper/pkg/errors"
	"github.com/appenmapper/appenmapper/pkg/mapping"
)

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, mapping.Stats{TotalRows: 7, UniqueIDs: 3, MatchedRows: 4}, 1500*time.Millisecond)

	out := buf.String()
	for _, c := range (mapping.Stats{}).Counters() {
		assert.Contains(t, out, c.Label)
	}
	assert.Contains(t, out, "7")
	assert.Contains(t, out, "1.5s")
}

func TestPrintPreview(t *testing.T) {
	ds := model.NewDataset("Customer Number/ID", "Company")
	for i := 0; i < 30; i++ {
		ds.Append(model.Number(float64(i)), model.String("Acme"))
	}
	ds.Append(model.String("last"), model.String("Unseen"))

	var buf bytes.Buffer
	require.NoError(t, PrintPreview(&buf, ds, 20))

	out := buf.String()
	assert.Contains(t, out, "(20 of 31 rows)")
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "19")
	assert.NotContains(t, out, "Unseen")
}

func TestPrintSkipped(t *testing.T) {
	var buf bytes.Buffer
	PrintSkipped(&buf, nil)
	assert.Empty(t, buf.String())

	PrintSkipped(&buf, []mapping.Pair{{Source: "DUNSNumber", Target: "Duns"}})
	assert.Contains(t, buf.String(), "DUNSNumber→Duns")
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, amerrors.MissingUploads("File 2"))
	assert.Contains(t, buf.String(), "Please upload both File 1 and File 2")
	assert.NotContains(t, buf.String(), "E107")

	buf.Reset()
	PrintError(&buf, io.ErrUnexpectedEOF)
	assert.Contains(t, buf.String(), "unexpected EOF")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{2500 * time.Millisecond, "2.5s"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2*1024*1024))
}

func TestProgressReader(t *testing.T) {
	data := strings.Repeat("x", 4096)
	r := ProgressReader(strings.NewReader(data), int64(len(data)), "test")
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, string(got))
}
