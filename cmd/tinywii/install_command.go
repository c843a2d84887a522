package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tinywii/internal/ops"
	"tinywii/internal/preflight"
	"tinywii/internal/services"
	"tinywii/internal/transfer"
)

func newInstallCommand(ctx *commandContext) *cobra.Command {
	var removeSource bool
	var force bool

	cmd := &cobra.Command{
		Use:   "install <image-or-dir>...",
		Short: "Copy disc images or homebrew apps onto the drive",
		Long: "Install disc images (ISO, GCM, WBFS, CISO) into the wbfs/ or games/ layout, " +
			"splitting large images for FAT32. Directories holding boot.dol or boot.elf are " +
			"copied to apps/. Transfers run one at a time in argument order.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireMount()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("remove-source") {
				cfg.Transfer.RemoveSources = removeSource
			}

			entries := make([]transfer.Entry, 0, len(args))
			for _, src := range args {
				entry, err := installEntry(src)
				if err != nil {
					return err
				}
				entries = append(entries, entry)
			}

			if !force {
				need, err := sourceBytes(entries)
				if err != nil {
					return err
				}
				if res := preflight.CheckFreeSpace(cmd.Context(), cfg.Paths.MountPoint, need); !res.Passed {
					return services.Wrap(services.ErrIO, "cli", "install", res.Detail+" (use --force to try anyway)", nil)
				}
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

			outcomes, err := runTransfers(cmd.Context(), cmd, rt, entries)
			out := cmd.OutOrStdout()
			for _, o := range outcomes {
				switch v := o.Value.(type) {
				case ops.InstallResult:
					fmt.Fprintf(out, "Installed %s -> %s (%s, %d files)\n", o.Entry.Title, v.Dir, humanize.IBytes(uint64(v.Bytes)), len(v.Files))
				case string:
					fmt.Fprintf(out, "Installed app %s -> %s\n", o.Entry.Title, v)
				default:
					if o.Err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", o.Label, o.Err)
					}
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&removeSource, "remove-source", false, "Delete each source after a successful install")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the free space check")
	return cmd
}
