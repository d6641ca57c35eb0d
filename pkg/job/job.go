// Package job runs one mapping: load the master and target tables, apply
// the engine and serialize the updated target.
package job

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/appenmapper/appenmapper/internal/model"
	amerrors "github.com/appenmapper/appenmapper/pkg/errors"
	"github.com/appenmapper/appenmapper/pkg/logging"
	"github.com/appenmapper/appenmapper/pkg/mapping"
	"github.com/appenmapper/appenmapper/pkg/parser"
	"github.com/appenmapper/appenmapper/pkg/telemetry"
	"github.com/appenmapper/appenmapper/pkg/writer"
)

// Input is one uploaded or opened table. Name drives format detection.
type Input struct {
	Name   string
	Reader io.Reader
}

func (in Input) missing() bool {
	return in.Reader == nil || strings.TrimSpace(in.Name) == ""
}

// Outcome is a finished run.
type Outcome struct {
	ID     string
	Result *mapping.Result

	MasterRows   int
	LoadMaster   time.Duration
	LoadTarget   time.Duration
	ApplyElapsed time.Duration
}

// Dataset returns the updated target.
func (o *Outcome) Dataset() *model.Dataset { return o.Result.Dataset }

// Stats returns the match statistics.
func (o *Outcome) Stats() mapping.Stats { return o.Result.Stats }

// Runner executes mapping runs with one engine. It is safe for concurrent use.
type Runner struct {
	engine    *mapping.Engine
	loaderCfg parser.Config
}

// NewRunner creates a runner for engine.
func NewRunner(engine *mapping.Engine) *Runner {
	return &Runner{engine: engine, loaderCfg: parser.DefaultConfig()}
}

// Engine returns the mapping engine.
func (r *Runner) Engine() *mapping.Engine { return r.engine }

// Run loads both inputs concurrently and applies the engine.
func (r *Runner) Run(ctx context.Context, master, target Input) (out *Outcome, err error) {
	var missing []string
	if master.missing() {
		missing = append(missing, "File 1")
	}
	if target.missing() {
		missing = append(missing, "File 2")
	}
	if len(missing) > 0 {
		return nil, amerrors.MissingUploads(missing...)
	}

	out = &Outcome{ID: uuid.NewString()}
	ctx = logging.WithRunID(ctx, out.ID)
	log := logging.FromContext(ctx)

	ctx, span := telemetry.StartSpan(ctx, "mapping.run",
		attribute.String("run_id", out.ID),
		attribute.String("master", master.Name),
		attribute.String("target", target.Name),
	)
	defer func() { telemetry.End(span, err) }()

	var masterDS, targetDS *model.Dataset
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		masterDS, out.LoadMaster, err = r.load(gctx, master)
		return err
	})
	g.Go(func() error {
		var err error
		targetDS, out.LoadTarget, err = r.load(gctx, target)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("load failed")
		return nil, err
	}
	out.MasterRows = masterDS.Len()

	start := time.Now()
	res, err := r.engine.Apply(masterDS, targetDS)
	out.ApplyElapsed = time.Since(start)
	if err != nil {
		log.Error().Err(err).Msg("mapping failed")
		return nil, err
	}
	out.Result = res

	s := res.Stats
	span.SetAttributes(
		attribute.Int("rows", s.TotalRows),
		attribute.Int("matched_rows", s.MatchedRows),
	)
	log.Info().
		Int("master_rows", out.MasterRows).
		Int("rows", s.TotalRows).
		Int("matched_rows", s.MatchedRows).
		Int("unmatched_rows", s.UnmatchedRows).
		Int("unique_ids", s.UniqueIDs).
		Int("skipped_pairs", len(res.Skipped)).
		Dur("duration", out.LoadMaster+out.LoadTarget+out.ApplyElapsed).
		Msg("mapping complete")

	return out, nil
}

func (r *Runner) load(ctx context.Context, in Input) (*model.Dataset, time.Duration, error) {
	ctx, span := telemetry.StartSpan(ctx, "mapping.load", attribute.String("file", in.Name))

	start := time.Now()
	ds, err := parser.LoadWith(ctx, in.Name, in.Reader, r.loaderCfg)
	elapsed := time.Since(start)
	if err == nil {
		span.SetAttributes(attribute.Int("rows", ds.Len()), attribute.Int("columns", len(ds.Columns)))
	}
	telemetry.End(span, err)

	logging.FromContext(ctx).Debug().
		Str("file", in.Name).
		Int("rows", ds.Len()).
		Dur("duration", elapsed).
		Msg("table loaded")
	return ds, elapsed, err
}

// Export serializes the updated target with w.
func (r *Runner) Export(ctx context.Context, out *Outcome, w writer.Writer, dst io.Writer) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "mapping.export", attribute.String("run_id", out.ID))
	defer func() { telemetry.End(span, err) }()

	return w.Write(ctx, out.Dataset(), dst)
}
