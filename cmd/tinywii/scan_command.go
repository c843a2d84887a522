package main

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"tinywii/internal/jobs"
	"tinywii/internal/library"
	"tinywii/internal/pipeline"
)

// scanResult is everything a scan batch produced.
type scanResult struct {
	started  jobs.ScanStarted
	loaded   map[string]jobs.GameLoaded
	verified map[string]jobs.Verified
	report   jobs.Report
}

func (r *scanResult) add(c pipeline.Completion) {
	r.report.Add(c)
	switch v := c.Value.(type) {
	case jobs.ScanStarted:
		r.started = v
	case jobs.GameLoaded:
		r.loaded[v.Game.Dir] = v
	case jobs.Verified:
		r.verified[v.Game.Dir] = v
	}
}

// games returns the discovered games, which the scan already sorted.
func (r *scanResult) games() []library.Game {
	return r.started.Games
}

// scanLibrary runs one scan batch, counting finished jobs on a progress bar
// when showProgress is set.
func scanLibrary(ctx context.Context, cmd *cobra.Command, rt *runtime, opts jobs.ScanOptions, showProgress bool) (*scanResult, error) {
	result := &scanResult{
		loaded:   map[string]jobs.GameLoaded{},
		verified: map[string]jobs.Verified{},
	}
	var bar *progressbar.ProgressBar
	if showProgress {
		bar = newJobBar(cmd, "scanning")
		defer bar.Finish()
	}
	err := rt.run(ctx, rt.jobs.Scan(opts), func(c pipeline.Completion) {
		result.add(c)
		if bar == nil {
			return
		}
		if v, ok := c.Value.(jobs.ScanStarted); ok {
			per := 1
			if opts.Checksum {
				per = 2
			}
			bar.ChangeMax(len(v.Games) * per)
			return
		}
		_ = bar.Add(1)
	})
	return result, err
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var checksum bool
	var prune bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the drive and refresh the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireMount()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), cfg, logger, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := scanLibrary(cmd.Context(), cmd, rt, jobs.ScanOptions{Checksum: checksum, Prune: prune}, true)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d games, %d apps on %s\n", len(result.games()), len(result.started.Apps), result.started.Mount)
			if prune {
				fmt.Fprintf(out, "Pruned %d stale catalog records\n", result.started.Pruned)
			}
			fmt.Fprintln(out, result.report.String())
			for _, e := range result.report.Errors() {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %v\n", e)
			}
			return result.report.Err()
		},
	}

	cmd.Flags().BoolVar(&checksum, "checksum", false, "Hash every disc after loading it")
	cmd.Flags().BoolVar(&prune, "prune", true, "Drop catalog records for games no longer on the drive")
	return cmd
}
