package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tinywii/internal/jobs"
	"tinywii/internal/logging"
	"tinywii/internal/ui"
	"tinywii/internal/updater"
	"tinywii/internal/watch"
)

const recentLogLimit = 50

func newTUICommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive library view",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireMount()
			if err != nil {
				return err
			}
			// The file logger keeps stderr clear of the full screen view.
			base, err := logging.NewFromConfig(cfg, false)
			if err != nil {
				return err
			}
			recent := logging.NewRecent(recentLogLimit, slog.LevelWarn)
			logger := logging.TeeLogger(base, recent.Handler())

			rt, err := openRuntime(cmd.Context(), cfg, logger, runtimeOptions{lockDrive: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			g, gctx := errgroup.WithContext(runCtx)

			changes := make(chan struct{}, 1)
			if cfg.Watch.Enabled {
				debounce := time.Duration(cfg.Watch.DebounceMillis) * time.Millisecond
				w, err := watch.New(cfg.Paths.MountPoint, debounce, func() {
					select {
					case changes <- struct{}{}:
					default:
					}
				}, logger)
				if err != nil {
					logger.Warn("drive watcher unavailable", logging.Args(logging.ErrorAttrs(err)...)...)
				} else {
					defer w.Close()
					g.Go(func() error { return w.Run(gctx) })
				}
			}

			if cfg.Update.Enabled {
				rt.sched.SubmitJob(jobs.CheckUpdate(updater.NewChecker(cfg.Update, version, logger)))
			}

			g.Go(func() error {
				defer cancel()
				return ui.Run(gctx, ui.Options{
					Mount:           cfg.Paths.MountPoint,
					Version:         version,
					Scheduler:       rt.sched,
					Jobs:            rt.jobs,
					Transfers:       rt.transfers,
					Recent:          recent,
					PollInterval:    time.Duration(cfg.Pipeline.FallbackPollMillis) * time.Millisecond,
					RedrawPerSecond: float64(cfg.Pipeline.RedrawPerSecond),
				}, rt.signal, changes)
			})
			return g.Wait()
		},
	}
}
