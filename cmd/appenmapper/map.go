package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/appenmapper/appenmapper/pkg/config"
	amerrors "github.com/appenmapper/appenmapper/pkg/errors"
	"github.com/appenmapper/appenmapper/pkg/job"
	"github.com/appenmapper/appenmapper/pkg/logging"
	"github.com/appenmapper/appenmapper/pkg/mapping"
	"github.com/appenmapper/appenmapper/pkg/storage"
	"github.com/appenmapper/appenmapper/pkg/tui"
	"github.com/appenmapper/appenmapper/pkg/watch"
	"github.com/appenmapper/appenmapper/pkg/writer"
)

// Map command flags
var (
	masterPath  string
	targetPath  string
	outputPath  string
	previewRows int
	jsonOutput  bool
	watchInputs bool
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Fill File 2 from the File 1 master and export the result",
	Long: `Load the master (File 1) and the file to update (File 2), fill empty
File 2 cells from matching master rows, print the match counters and a
preview, and write the updated File 2.

Examples:
  appenmapper map --master customers.xlsx --target leads.xlsx
  appenmapper map --master s3://crm/master.csv --target leads.csv -o s3://crm/out.xlsx
  appenmapper map --master f1.xlsx --target f2.csv --json
  appenmapper map --master f1.xlsx --target f2.xlsx --watch`,
	RunE: runMap,
}

func init() {
	mapCmd.Flags().StringVar(&masterPath, "master", "", "File 1: customer master (path or s3:// URI)")
	mapCmd.Flags().StringVar(&targetPath, "target", "", "File 2: file to update (path or s3:// URI)")
	mapCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path, .xlsx or .csv (default: export.file_name)")
	mapCmd.Flags().IntVar(&previewRows, "preview", -1, "Preview rows to print (default: server.preview_rows)")
	mapCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	mapCmd.Flags().BoolVarP(&watchInputs, "watch", "w", false, "Re-run whenever either input changes")

	rootCmd.AddCommand(mapCmd)
}

// mapReport is the --json output.
type mapReport struct {
	RunID    string            `json:"run_id"`
	Master   string            `json:"master"`
	Target   string            `json:"target"`
	Output   string            `json:"output"`
	Stats    mapping.Stats     `json:"stats"`
	Counters []mapping.Counter `json:"counters"`
	Filled   map[string]int    `json:"filled"`
	Skipped  []string          `json:"skipped,omitempty"`
	Elapsed  string            `json:"elapsed"`
}

func runMap(cmd *cobra.Command, args []string) error {
	cfg := manager.Get()
	if err := cfg.Validate(); err != nil {
		return err
	}
	engine, err := mapping.New(cfg.MappingEngineConfig())
	if err != nil {
		return err
	}

	m := &mapper{
		cfg:     cfg,
		runner:  job.NewRunner(engine),
		store:   storage.New(cfg.Storage.S3),
		out:     cmd.OutOrStdout(),
		output:  outputPath,
		preview: previewRows,
	}
	if m.output == "" {
		m.output = cfg.Export.FileName
	}
	if m.preview < 0 {
		m.preview = cfg.Server.PreviewRows
	}

	if !jsonOutput {
		tui.PrintHeader(m.out, version)
	}

	ctx := cmd.Context()
	if !watchInputs {
		return m.run(ctx)
	}
	return m.watch(ctx)
}

type mapper struct {
	cfg     *config.Config
	runner  *job.Runner
	store   *storage.Store
	out     io.Writer
	output  string
	preview int
}

func (m *mapper) run(ctx context.Context) error {
	start := time.Now()

	master, closeMaster, err := m.open(ctx, masterPath, "File 1")
	if err != nil {
		return err
	}
	defer closeMaster()
	target, closeTarget, err := m.open(ctx, targetPath, "File 2")
	if err != nil {
		return err
	}
	defer closeTarget()

	outcome, err := m.runner.Run(ctx, master, target)
	if err != nil {
		return err
	}

	w := writer.ForPath(m.output, m.cfg.WriterConfig())
	dst, err := m.store.Create(ctx, m.output, w.ContentType())
	if err != nil {
		return err
	}
	if err := m.runner.Export(ctx, outcome, w, dst); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return amerrors.WriteFailed(m.output, err)
	}

	res := outcome.Result
	if jsonOutput {
		report := mapReport{
			RunID:    outcome.ID,
			Master:   masterPath,
			Target:   targetPath,
			Output:   m.output,
			Stats:    res.Stats,
			Counters: res.Stats.Counters(),
			Filled:   res.Filled,
			Elapsed:  time.Since(start).String(),
		}
		for _, p := range res.Skipped {
			report.Skipped = append(report.Skipped, p.String())
		}
		enc := json.NewEncoder(m.out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	tui.PrintSummary(m.out, res.Stats, time.Since(start))
	tui.PrintSkipped(m.out, res.Skipped)
	if m.preview > 0 {
		if err := tui.PrintPreview(m.out, res.Dataset, m.preview); err != nil {
			return err
		}
		fmt.Fprintln(m.out)
	}
	tui.PrintSaved(m.out, m.output, localSize(m.output))
	return nil
}

// open resolves one input. An empty path yields an empty Input so the
// runner reports the missing upload by its label.
func (m *mapper) open(ctx context.Context, uri, label string) (job.Input, func(), error) {
	if uri == "" {
		return job.Input{}, func() {}, nil
	}

	rc, err := m.store.Open(ctx, uri)
	if err != nil {
		return job.Input{}, nil, err
	}

	var r io.Reader = rc
	if size := localSize(uri); size > 0 && !jsonOutput && !storage.IsGzipFile(uri) {
		r = tui.ProgressReader(rc, size, "Loading "+label)
	}
	return job.Input{Name: filepath.Base(uri), Reader: r}, func() { rc.Close() }, nil
}

func (m *mapper) watch(ctx context.Context) error {
	for _, p := range []string{masterPath, targetPath} {
		if loc, err := storage.Parse(p); err != nil || loc.Remote() {
			return amerrors.New(amerrors.CodeInvalidConfig, "--watch needs two local files").
				WithContext("path", p)
		}
	}

	log := logging.FromContext(ctx)
	if err := m.run(ctx); err != nil {
		tui.PrintError(os.Stderr, err)
	}

	w, err := watch.NewWatcher(watch.DefaultDebounce)
	if err != nil {
		return err
	}
	if err := w.Watch(masterPath, targetPath); err != nil {
		w.Close()
		return err
	}

	w.OnChange = func(ctx context.Context, paths []string) error {
		log.Info().Strs("changed", paths).Msg("inputs changed, re-running")
		return m.run(ctx)
	}
	w.OnError = func(path string, err error) {
		tui.PrintError(os.Stderr, err)
	}

	if !jsonOutput {
		fmt.Fprintf(os.Stderr, "Watching %s and %s (Ctrl+C to stop)\n", masterPath, targetPath)
	}
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func localSize(uri string) int64 {
	loc, err := storage.Parse(uri)
	if err != nil || loc.Remote() {
		return 0
	}
	st, err := os.Stat(loc.Path)
	if err != nil {
		return 0
	}
	return st.Size()
}
