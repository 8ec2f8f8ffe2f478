package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nishad/srafetch/internal/config"
	"github.com/nishad/srafetch/internal/database"
	"github.com/nishad/srafetch/internal/errors"
	"github.com/nishad/srafetch/internal/export"
	"github.com/nishad/srafetch/internal/pipeline"
	"github.com/nishad/srafetch/internal/service"
	"github.com/nishad/srafetch/internal/sink"
	"github.com/nishad/srafetch/internal/ui"
	"github.com/spf13/cobra"
)

var (
	resolveInterval    int
	resolveInput       string
	resolveJSON        bool
	resolveFormat      string
	resolveOutput      string
	resolveRecord      bool
	resolveFailOnError bool
	resolveTimeout     int
	resolveMaxInFlight int
	resolveProgress    bool
)

const opResolve errors.Op = "srafetch"

var errBatchFailed = errors.E(opResolve, errors.KindValidation, "one or more lines or accessions failed")

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyResolveFlags(cmd, cfg); err != nil {
		return err
	}
	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	// flags are valid from here on; runtime failures should not print usage
	cmd.SilenceUsage = true

	lines, err := readAccessions(args, resolveInput, cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	printDebug("Read %d input lines, interval %v, timeout %v", len(lines), cfg.Interval(), cfg.Timeout())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open the destination before touching the network so a bad path fails fast
	out, err := sink.Open(ctx, cfg.Output.Path, sink.Options{
		Stdout:      cmd.OutOrStdout(),
		ContentType: format.ContentType(),
		S3: sink.S3Options{
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
		},
	})
	if err != nil {
		return err
	}
	// error paths below leave the sink open; Close is idempotent
	defer func() { errors.IgnoreError(out.Close(), "closing output") }()

	var history *database.DB
	if cfg.History.Enabled {
		history, err = database.Initialize(cfg.History.Path)
		if err != nil {
			printWarning("History disabled: %v", err)
			history = nil
		} else {
			defer history.Close()
			printDebug("Recording batch in %s", history.Path())
		}
	}

	diag := newDiagnostics(os.Stderr, resolveProgress && !verbose)
	var progress *ui.BatchProgress
	if resolveProgress && !quiet {
		progress = ui.NewBatchProgress(os.Stderr, pipeline.CountInputs(lines))
		progress.Start()
	}

	svc := service.NewResolveService(service.Options{
		Config:  cfg,
		History: history,
		OnEvent: func(ev pipeline.Event) {
			if progress != nil {
				progress.OnEvent(ev)
			}
			diag.OnEvent(ev)
		},
	})

	resp, err := svc.Resolve(ctx, &service.ResolveRequest{Lines: lines})
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		return err
	}

	if err := export.Write(out, format, resp.Descriptors); err != nil {
		return errors.WrapMsg(opResolve, "failed to write output", err)
	}
	if err := out.Close(); err != nil {
		return errors.WrapMsg(opResolve, "failed to write output", err)
	}

	reportBatch(resp)

	if resolveFailOnError && resp.Failed() {
		return errBatchFailed
	}
	return nil
}

// applyResolveFlags copies explicitly set flags over the loaded config.
func applyResolveFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("interval") {
		cfg.Request.IntervalMS = resolveInterval
	}
	if flags.Changed("timeout") {
		cfg.Request.TimeoutSeconds = resolveTimeout
	}
	if flags.Changed("max-in-flight") {
		cfg.Request.MaxInFlight = resolveMaxInFlight
	}
	if flags.Changed("output") {
		cfg.Output.Path = resolveOutput
	}
	if flags.Changed("record") {
		cfg.History.Enabled = resolveRecord
	}

	switch {
	case resolveJSON && flags.Changed("format") && resolveFormat != string(export.FormatJSON):
		return fmt.Errorf("--json conflicts with --format %s", resolveFormat)
	case resolveJSON:
		cfg.Output.Format = string(export.FormatJSON)
	case flags.Changed("format"):
		cfg.Output.Format = resolveFormat
	}

	return cfg.Validate()
}

// reportBatch prints the end-of-batch summary to stderr.
func reportBatch(resp *service.ResolveResponse) {
	b := resp.Batch

	skipped := errors.NewSkipCounter("input")
	for _, f := range b.Failures {
		skipped.Skip(fmt.Errorf("%s", f.Error), fmt.Sprintf("line %d", f.Line))
	}
	if skipped.Count > 0 {
		printWarning("Skipped %d unparsable lines (last: %s, %v)", skipped.Count, skipped.LastDetail, skipped.LastErr)
	}

	if b.Err != nil {
		printWarning("Interrupted: %d of %d lines launched", len(b.Results)+len(b.Failures), b.Lines)
	}
	if resp.HistoryError != "" {
		printWarning("Batch not saved to history: %s", resp.HistoryError)
	}
	if resp.BatchID != "" {
		printInfo("Saved batch %s", resp.BatchID)
	}

	if verbose {
		counts := resp.Counts
		printInfo("%d descriptors from %d pipelines (ok %d, no cross-reference %d, resolution failed %d, fetch failed %d) in %dms",
			len(resp.Descriptors), len(b.Results),
			counts[pipeline.OutcomeOK], counts[pipeline.OutcomeNoCrossReference],
			counts[pipeline.OutcomeResolutionFailed], counts[pipeline.OutcomeFetchFailed],
			resp.TimeTaken)
	}
}

// diagnostics prints one stderr line per finished pipeline. Events arrive
// from several goroutines.
type diagnostics struct {
	mu sync.Mutex
	w  io.Writer
	// terse drops success lines while a progress spinner owns the terminal
	terse bool
}

func newDiagnostics(w io.Writer, terse bool) *diagnostics {
	return &diagnostics{w: w, terse: terse}
}

func (d *diagnostics) OnEvent(ev pipeline.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch ev.Type {
	case pipeline.EventLineSkipped:
		printWarning("Line %d: skipping %q: %s", ev.Line, ev.Failure.Input, ev.Failure.Error)
	case pipeline.EventLaunched:
		printDebug("Line %d: launched %s", ev.Line, ev.Accession.Code)
	case pipeline.EventCompleted:
		res := ev.Result
		for _, w := range res.Warnings {
			printWarning("%s: %s", res.Accession.Code, w)
		}
		switch {
		case res.Outcome == pipeline.OutcomeOK:
			if !quiet && !d.terse {
				fmt.Fprintf(d.w, "Generated download info for %s, name %s\n", res.Accession.Code, res.Accession.DisplayName())
			}
			printDebug("%s: %d records, %d descriptors in %v", res.Accession.Code, res.Records, len(res.Descriptors), res.Duration)
		case res.Outcome == pipeline.OutcomeNoCrossReference:
			printWarning("%s: no SRA cross-reference found, nothing to download", res.Accession.Code)
		default:
			printWarning("%s (line %d): %s", res.Accession.Code, res.Line, res.Error)
		}
	}
}
