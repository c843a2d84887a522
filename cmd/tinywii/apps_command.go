package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tinywii/internal/library"
	"tinywii/internal/services"
	"tinywii/internal/transfer"
)

func newAppsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "apps",
		Short: "List homebrew apps on the drive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireMount()
			if err != nil {
				return err
			}
			apps, err := library.DiscoverApps(cfg.Paths.MountPoint)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, apps)
			}
			if len(apps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No apps found")
				return nil
			}
			rows := make([][]string, 0, len(apps))
			for _, a := range apps {
				rows = append(rows, []string{a.Name, a.Version, a.Coder, a.ReleaseDate, humanize.IBytes(uint64(a.Size))})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"Name", "Version", "Coder", "Released", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")

	cmd.AddCommand(newAppsInstallCommand(ctx))
	return cmd
}

func newAppsInstallCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "install <app-dir>...",
		Short: "Copy homebrew app directories into apps/",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireMount()
			if err != nil {
				return err
			}
			entries := make([]transfer.Entry, 0, len(args))
			for _, src := range args {
				entry, err := installEntry(src)
				if err != nil {
					return err
				}
				if entry.Kind != transfer.KindCopyApp {
					return services.Wrap(services.ErrFormat, "cli", "apps install", src+" has no boot.dol or boot.elf", nil)
				}
				entries = append(entries, entry)
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

			outcomes, err := runTransfers(cmd.Context(), cmd, rt, entries)
			for _, o := range outcomes {
				if dir, ok := o.Value.(string); ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Installed app %s -> %s\n", o.Entry.Title, dir)
				}
			}
			return err
		},
	}
}
