package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tinywii/internal/disc"
)

type discInfo struct {
	Path       string   `json:"path"`
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Console    string   `json:"console"`
	Region     string   `json:"region"`
	DiscNumber int      `json:"disc_number"`
	Version    int      `json:"version"`
	Format     string   `json:"format"`
	Size       int64    `json:"size_bytes"`
	Parts      []string `json:"parts"`
}

func newInfoCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "info <image-or-game-dir>",
		Short:       "Show the header of a disc image",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if st, err := os.Stat(path); err == nil && st.IsDir() {
				found, err := disc.FindDiscFile(path)
				if err != nil {
					return err
				}
				path = found
			}
			header, meta, err := disc.Read(path)
			if err != nil {
				return err
			}
			info := discInfo{
				Path:       path,
				ID:         string(header.ID),
				Title:      header.Title,
				Console:    header.Console.String(),
				Region:     header.ID.Region(),
				DiscNumber: int(header.DiscNumber) + 1,
				Version:    int(header.Version),
				Format:     string(meta.Format),
				Size:       meta.Size,
				Parts:      meta.Parts,
			}
			if asJSON {
				return writeJSON(cmd, info)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Title:    %s\n", info.Title)
			fmt.Fprintf(out, "Game ID:  %s\n", info.ID)
			fmt.Fprintf(out, "Console:  %s\n", info.Console)
			fmt.Fprintf(out, "Region:   %s\n", info.Region)
			fmt.Fprintf(out, "Disc:     %d (version %d)\n", info.DiscNumber, info.Version)
			fmt.Fprintf(out, "Format:   %s\n", info.Format)
			fmt.Fprintf(out, "Size:     %s\n", humanize.IBytes(uint64(info.Size)))
			if len(info.Parts) > 1 {
				fmt.Fprintf(out, "Parts:    %d\n", len(info.Parts))
				for _, p := range info.Parts {
					fmt.Fprintf(out, "  %s\n", p)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}
