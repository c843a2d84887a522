package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tinywii/internal/jobs"
	"tinywii/internal/pipeline"
	"tinywii/internal/updater"
)

func newUpdateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for a newer release",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Update.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "Update checks are disabled (update.enabled = false)")
				return nil
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), cfg, logger, runtimeOptions{noCatalog: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			checker := updater.NewChecker(cfg.Update, version, logger)
			var (
				info   *updater.Info
				runErr error
			)
			err = rt.run(cmd.Context(), jobs.CheckUpdate(checker), func(c pipeline.Completion) {
				if c.Err != nil {
					runErr = c.Err
					return
				}
				if v, ok := c.Value.(jobs.UpdateChecked); ok {
					info = v.Info
				}
			})
			if err = errors.Join(err, runErr); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return nil
		},
	}

	cmd.AddCommand(newUpdateTitlesCommand(ctx))
	cmd.AddCommand(newUpdateRedumpCommand(ctx))
	return cmd
}

func newUpdateTitlesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "titles",
		Short: "Download the GameTDB titles database onto the drive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireMount()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), cfg, logger, runtimeOptions{lockDrive: true, noCatalog: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			checker := updater.NewChecker(cfg.Update, version, logger)
			var (
				done   jobs.TitlesDownloaded
				runErr error
			)
			err = rt.run(cmd.Context(), jobs.DownloadTitles(checker, cfg.Paths.MountPoint), func(c pipeline.Completion) {
				if c.Err != nil {
					runErr = c.Err
					return
				}
				if v, ok := c.Value.(jobs.TitlesDownloaded); ok {
					done = v
				}
			})
			if err = errors.Join(err, runErr); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", done.Path, humanize.IBytes(uint64(done.Bytes)))
			return nil
		},
	}
}

func newUpdateRedumpCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "redump",
		Short: "Download the redump Wii and GameCube DATs used to verify checksums",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), cfg, logger, runtimeOptions{noCatalog: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			checker := updater.NewChecker(cfg.Update, version, logger)
			var (
				done   jobs.RedumpDownloaded
				runErr error
			)
			err = rt.run(cmd.Context(), jobs.DownloadRedump(checker, cfg.Paths.DataDir), func(c pipeline.Completion) {
				if c.Err != nil {
					runErr = c.Err
					return
				}
				if v, ok := c.Value.(jobs.RedumpDownloaded); ok {
					done = v
				}
			})
			if err = errors.Join(err, runErr); err != nil {
				return err
			}
			for _, path := range done.Paths {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s redump entries indexed\n", humanize.Comma(int64(done.Entries)))
			return nil
		},
	}
}
