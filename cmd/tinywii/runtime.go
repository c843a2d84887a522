package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/multierr"

	"tinywii/internal/budget"
	"tinywii/internal/catalog"
	"tinywii/internal/config"
	"tinywii/internal/jobs"
	"tinywii/internal/library"
	"tinywii/internal/logging"
	"tinywii/internal/pipeline"
	"tinywii/internal/transfer"
)

const (
	shutdownTimeout     = 10 * time.Second
	defaultPollInterval = 100 * time.Millisecond
)

type runtimeOptions struct {
	// lockDrive takes the drive lock so two writers never share a mount.
	lockDrive bool
	// noCatalog skips opening the catalog even when it is enabled.
	noCatalog bool
}

// runtime is the scheduler and its collaborators for one command.
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	signal    *pipeline.Signal
	sched     *pipeline.Scheduler
	store     *catalog.Store
	jobs      *jobs.Jobs
	transfers *transfer.Queue
	lock      *flock.Flock
	cancel    context.CancelFunc
}

func openRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts runtimeOptions) (rt *runtime, err error) {
	b, err := budget.FromConfig(cfg.Pipeline, budget.Detect(ctx))
	if err != nil {
		return nil, err
	}

	rt = &runtime{cfg: cfg, logger: logger, signal: pipeline.NewSignal()}
	defer func() {
		if err != nil {
			rt.release()
		}
	}()

	if opts.lockDrive {
		if rt.lock, err = library.LockDrive(cfg.Paths.MountPoint); err != nil {
			return nil, err
		}
	}
	if cfg.Catalog.Enabled && !opts.noCatalog {
		if rt.store, err = openCatalog(cfg.Catalog.Path, logger); err != nil {
			return nil, err
		}
	}

	rt.sched, err = pipeline.New(b, pipeline.WithWaker(rt.signal), pipeline.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	// Workers outlive the command context so a cancelled batch can finish
	// the transfer in progress during Close.
	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rt.cancel = cancel
	if err = rt.sched.Start(workCtx); err != nil {
		return nil, err
	}

	rt.jobs = jobs.New(cfg, rt.store, logger)
	rt.transfers = transfer.NewQueue(rt.sched, rt.jobs, logger)
	logger.Debug("runtime started", logging.String("budget", b.String()))
	return rt, nil
}

// openCatalog opens the scan cache, recreating it when its schema is from a
// different release.
func openCatalog(path string, logger *slog.Logger) (*catalog.Store, error) {
	store, err := catalog.Open(path)
	if errors.Is(err, catalog.ErrSchemaMismatch) {
		logger.Warn("catalog schema changed; rebuilding", logging.String("path", path))
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale catalog: %w", rmErr)
		}
		store, err = catalog.Open(path)
	}
	return store, err
}

// wait drains completions into fn until the scheduler is idle and no
// transfers remain. Cancelling ctx drops transfers that have not started.
func (rt *runtime) wait(ctx context.Context, fn func(pipeline.Completion)) error {
	interval := time.Duration(rt.cfg.Pipeline.FallbackPollMillis) * time.Millisecond
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for _, c := range rt.sched.Poll() {
			rt.transfers.Resolve(c)
			if fn != nil {
				fn(c)
			}
		}
		if rt.sched.Idle() && !rt.transfers.HasPending() {
			return nil
		}
		select {
		case <-ctx.Done():
			if n := rt.transfers.CancelAll(); n > 0 {
				rt.logger.Info("pending transfers cancelled", logging.Int("count", n))
			}
			return ctx.Err()
		case <-rt.signal.C():
		case <-ticker.C:
		}
	}
}

// run submits job and waits for it and everything it chains.
func (rt *runtime) run(ctx context.Context, job pipeline.Job, fn func(pipeline.Completion)) error {
	rt.sched.SubmitJob(job)
	return rt.wait(ctx, fn)
}

func (rt *runtime) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := rt.sched.Shutdown(ctx)
	return multierr.Append(err, rt.release())
}

func (rt *runtime) release() error {
	var err error
	if rt.cancel != nil {
		rt.cancel()
	}
	if rt.store != nil {
		err = multierr.Append(err, rt.store.Close())
	}
	if rt.lock != nil {
		err = multierr.Append(err, rt.lock.Unlock())
	}
	return err
}
