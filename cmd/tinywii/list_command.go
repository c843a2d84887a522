package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tinywii/internal/catalog"
	"tinywii/internal/jobs"
	"tinywii/internal/library"
)

type gameListing struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Console string `json:"console"`
	Region  string `json:"region"`
	Format  string `json:"format,omitempty"`
	Parts   int    `json:"parts,omitempty"`
	Size    int64  `json:"size_bytes"`
	Dir     string `json:"dir"`
	CRC32   string `json:"crc32,omitempty"`
	XXH64   string `json:"xxh64,omitempty"`
	Error   string `json:"error,omitempty"`
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var query string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the games on the drive",
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

			result, err := scanLibrary(cmd.Context(), cmd, rt, jobs.ScanOptions{}, !asJSON)
			if err != nil {
				return err
			}

			games := library.Filter(result.games(), query)
			listings := make([]gameListing, 0, len(games))
			for _, g := range games {
				listings = append(listings, buildListing(cmd, rt.store, g, result))
			}

			if asJSON {
				return writeJSON(cmd, listings)
			}
			if len(listings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No games found")
				return nil
			}
			rows := make([][]string, 0, len(listings))
			for _, l := range listings {
				format := l.Format
				if l.Error != "" {
					format = "unreadable"
				} else if l.Parts > 1 {
					format = fmt.Sprintf("%s x%d", l.Format, l.Parts)
				}
				rows = append(rows, []string{l.ID, l.Title, l.Console, l.Region, format, humanize.IBytes(uint64(l.Size)), l.CRC32})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Console", "Region", "Format", "Size", "CRC32"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	cmd.Flags().StringVarP(&query, "filter", "f", "", "Fuzzy filter on title or game ID")
	return cmd
}

func buildListing(cmd *cobra.Command, store *catalog.Store, g library.Game, result *scanResult) gameListing {
	l := gameListing{
		ID:      string(g.ID),
		Title:   g.Title,
		Console: g.Console.String(),
		Region:  g.ID.Region(),
		Size:    g.Size,
		Dir:     g.Dir,
	}
	loaded, ok := result.loaded[g.Dir]
	if !ok {
		l.Error = "disc header unreadable"
		return l
	}
	l.Format = string(loaded.Meta.Format)
	l.Parts = len(loaded.Meta.Parts)
	l.Size = loaded.Meta.Size
	if store != nil {
		if rec, err := store.Get(cmd.Context(), g.Dir); err == nil && rec.Verified() {
			l.CRC32 = rec.CRC32
			l.XXH64 = rec.XXH64
		}
	}
	return l
}
