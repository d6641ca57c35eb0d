// Package tui renders mapping results in the terminal.
// Simple, streaming output: styled counters, a preview table and progress bars.
package tui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"

	"github.com/appenmapper/appenmapper/internal/model"
	amerrors "github.com/appenmapper/appenmapper/pkg/errors"
	"github.com/appenmapper/appenmapper/pkg/mapping"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	codeStyle    = lipgloss.NewStyle().Background(lipgloss.Color("#1a1a1a")).Foreground(white).Padding(0, 1)
)

// PrintHeader prints the tool banner.
func PrintHeader(w io.Writer, version string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("  APPEN-MAPPER")+mutedStyle.Render(" "+version))
	fmt.Fprintln(w, mutedStyle.Render("  Fill File 2 from the File 1 customer master"))
	fmt.Fprintln(w)
}

// PrintSummary prints the six counters in three groups: totals, mapped,
// unmapped.
func PrintSummary(w io.Writer, stats mapping.Stats, elapsed time.Duration) {
	counters := stats.Counters()

	fmt.Fprintln(w)
	fmt.Fprintln(w, successStyle.Render("  ✓ MAPPING SUMMARY"))
	fmt.Fprintln(w)
	for i, c := range counters {
		fmt.Fprintf(w, "  %-28s %s\n", mutedStyle.Render(c.Label+":"), titleStyle.Render(fmt.Sprint(c.Value)))
		if i%2 == 1 && i < len(counters)-1 {
			fmt.Fprintln(w, mutedStyle.Render("  ─────────────────────────────────────"))
		}
	}
	if elapsed > 0 {
		fmt.Fprintf(w, "\n  %s %s\n", mutedStyle.Render("Time:"), titleStyle.Render(formatDuration(elapsed)))
	}
	fmt.Fprintln(w)
}

// PrintSkipped lists mapping pairs that had no source or target column.
func PrintSkipped(w io.Writer, skipped []mapping.Pair) {
	if len(skipped) == 0 {
		return
	}
	fmt.Fprintln(w, mutedStyle.Render("  Skipped columns (absent from one of the files):"))
	for _, p := range skipped {
		fmt.Fprintf(w, "    %s\n", mutedStyle.Render(p.String()))
	}
	fmt.Fprintln(w)
}

// PrintPreview renders the first n rows of ds as a table.
func PrintPreview(w io.Writer, ds *model.Dataset, n int) error {
	head := ds.Head(n)

	fmt.Fprintln(w, accentStyle.Render("▸ PREVIEW OF UPDATED DATA")+
		mutedStyle.Render(fmt.Sprintf(" (%d of %d rows)", head.Len(), ds.Len())))

	table := tablewriter.NewTable(w)

	headers := make([]any, len(head.Columns))
	for i, h := range head.Columns {
		headers[i] = h
	}
	table.Header(headers...)

	for _, row := range head.Strings() {
		rowData := make([]any, len(row))
		for i, cell := range row {
			rowData[i] = cell
		}
		if err := table.Append(rowData...); err != nil {
			return err
		}
	}

	return table.Render()
}

// PrintSaved reports where the export was written.
func PrintSaved(w io.Writer, path string, size int64) {
	if size > 0 {
		fmt.Fprintf(w, "  %s %s %s\n", mutedStyle.Render("Saved:"), codeStyle.Render(path), mutedStyle.Render(formatBytes(size)))
		return
	}
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Saved:"), codeStyle.Render(path))
}

// PrintError prints the user-facing message for err.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, accentStyle.Render("  ✗ "+amerrors.UserMessage(err)))
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// ShowProgress creates a progress bar for reading total bytes.
func ShowProgress(total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// ProgressReader wraps r so reads advance a byte progress bar.
// A non-positive size shows a spinner instead.
func ProgressReader(r io.Reader, size int64, description string) io.Reader {
	if size <= 0 {
		size = -1
	}
	bar := ShowProgress(size, description)
	pr := progressbar.NewReader(r, bar)
	return &pr
}
