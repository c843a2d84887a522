package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tinywii/internal/jobs"
	"tinywii/internal/transfer"
)

func newChecksumCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "checksum [game...]",
		Short: "Hash games on the drive (CRC32 and XXH64)",
		Long: "Hash one or more games, named by directory, game ID or title. " +
			"With --all every game is scanned and hashed in parallel.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("name at least one game or pass --all")
			}
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

			var rows [][]string
			var runErr error
			if all {
				result, err := scanLibrary(cmd.Context(), cmd, rt, jobs.ScanOptions{Checksum: true}, true)
				if err != nil {
					return err
				}
				for _, g := range result.games() {
					if v, ok := result.verified[g.Dir]; ok {
						rows = append(rows, verifiedRow(g.Display(), v))
					}
				}
				runErr = result.report.Err()
			} else {
				games, err := resolveGames(cfg.Paths.MountPoint, args)
				if err != nil {
					return err
				}
				entries := make([]transfer.Entry, 0, len(games))
				for _, g := range games {
					entries = append(entries, transfer.Entry{Kind: transfer.KindChecksum, Title: g.Display(), Source: g.Dir})
				}
				outcomes, err := runTransfers(cmd.Context(), cmd, rt, entries)
				for _, o := range outcomes {
					if v, ok := o.Value.(jobs.Verified); ok {
						rows = append(rows, verifiedRow(o.Entry.Title, v))
					}
				}
				runErr = err
			}

			if len(rows) > 0 {
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Game", "CRC32", "XXH64", "Redump"}, rows, nil))
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Hash every game on the drive")
	return cmd
}

func verifiedRow(name string, v jobs.Verified) []string {
	return []string{name, v.Digest.CRC32Hex(), v.Digest.XXH64Hex(), v.Redump.Label()}
}
