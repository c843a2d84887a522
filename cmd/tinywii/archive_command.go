package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tinywii/internal/config"
	"tinywii/internal/library"
	"tinywii/internal/ops"
	"tinywii/internal/transfer"
)

func newArchiveCommand(ctx *commandContext) *cobra.Command {
	var dest string
	var all bool
	var noVerify bool

	cmd := &cobra.Command{
		Use:   "archive [game...]",
		Short: "Copy games off the drive as single image files",
		Long: "Join a game's split parts into one image named \"Title [ID].ext\" in the " +
			"archive directory (or --dest). The copy is verified against the source unless " +
			"--no-verify is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("name at least one game or pass --all")
			}
			cfg, err := ctx.requireMount()
			if err != nil {
				return err
			}
			if noVerify {
				cfg.Transfer.VerifyArchive = false
			}
			target := cfg.Paths.ArchiveDir
			if dest != "" {
				if target, err = config.ExpandPath(dest); err != nil {
					return err
				}
			}
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create archive directory: %w", err)
			}

			var games []library.Game
			if all {
				games, err = library.Discover(cfg.Paths.MountPoint)
			} else {
				games, err = resolveGames(cfg.Paths.MountPoint, args)
			}
			if err != nil {
				return err
			}

			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), cfg, logger, runtimeOptions{lockDrive: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			entries := make([]transfer.Entry, 0, len(games))
			for _, g := range games {
				entries = append(entries, transfer.Entry{Kind: transfer.KindArchive, Title: g.Display(), Source: g.Dir, Dest: target})
			}
			outcomes, err := runTransfers(cmd.Context(), cmd, rt, entries)
			out := cmd.OutOrStdout()
			for _, o := range outcomes {
				if v, ok := o.Value.(ops.ArchiveResult); ok {
					fmt.Fprintf(out, "Archived %s -> %s (%s)\n", o.Entry.Title, v.Path, humanize.IBytes(uint64(v.Bytes)))
					continue
				}
				if o.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", o.Label, o.Err)
				}
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&dest, "dest", "d", "", "Destination directory (default paths.archive_dir)")
	cmd.Flags().BoolVar(&all, "all", false, "Archive every game on the drive")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip the XXH64 comparison after copying")
	return cmd
}
