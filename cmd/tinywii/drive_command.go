package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tinywii/internal/library"
	"tinywii/internal/ops"
	"tinywii/internal/preflight"
)

func newDriveCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Check the drive layout, filesystem and free space",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireMount()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			results := preflight.RunAll(cmd.Context(), cfg)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, passLabel(r.Passed), r.Detail})
			}
			fmt.Fprint(out, renderTable([]string{"Check", "Result", "Detail"}, rows, nil))
			fmt.Fprintln(out)

			if usage, err := library.DriveUsage(cmd.Context(), cfg.Paths.MountPoint); err == nil {
				fmt.Fprintf(out, "Filesystem: %s\n", usage.Filesystem)
				fmt.Fprintf(out, "Capacity:   %s (%s free, %.1f%% used)\n",
					humanize.IBytes(usage.Total), humanize.IBytes(usage.Free), usage.UsedPercent)
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d drive checks failed", len(failed))
			}
			return nil
		},
	}
	cmd.AddCommand(newDriveCleanCommand(ctx))
	return cmd
}

func newDriveCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove leftovers of interrupted app copies and downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireMount()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			lock, err := library.LockDrive(cfg.Paths.MountPoint)
			if err != nil {
				return err
			}
			defer lock.Unlock()

			res := ops.CleanPartials(cmd.Context(), cfg.Paths.MountPoint, maxAge, logger)
			out := cmd.OutOrStdout()
			for _, path := range res.Removed {
				fmt.Fprintf(out, "Removed %s\n", path)
			}
			fmt.Fprintf(out, "%s removed\n", pluralizeCount(len(res.Removed), "leftover", "leftovers"))
			if len(res.Errors) > 0 {
				for _, e := range res.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", e.Path, e.Err)
				}
				return fmt.Errorf("%d leftovers could not be removed", len(res.Errors))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", time.Hour, "Only remove leftovers older than this")
	return cmd
}

func pluralizeCount(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}

func passLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAIL"
}
