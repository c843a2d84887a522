package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"tinywii/internal/disc"
	"tinywii/internal/fileutil"
	"tinywii/internal/library"
	"tinywii/internal/pipeline"
	"tinywii/internal/services"
	"tinywii/internal/transfer"
)

// transferOutcome pairs a finished entry with its value or error. Failed
// outcomes carry only the job label.
type transferOutcome struct {
	Label string
	Entry transfer.Entry
	Value any
	Err   error
}

// runTransfers queues entries in order and waits for all of them. The
// returned error combines every failure.
func runTransfers(ctx context.Context, cmd *cobra.Command, rt *runtime, entries []transfer.Entry) ([]transferOutcome, error) {
	for _, e := range entries {
		e.Created = time.Now()
		rt.transfers.Push(e)
	}

	bar := newJobBar(cmd, "transferring")
	bar.ChangeMax(len(entries))
	defer bar.Finish()

	outcomes := make([]transferOutcome, 0, len(entries))
	var errs error
	waitErr := rt.wait(ctx, func(c pipeline.Completion) {
		res, ok := c.Value.(transfer.Result)
		if c.Err == nil && !ok {
			return
		}
		_ = bar.Add(1)
		if c.Err != nil {
			outcomes = append(outcomes, transferOutcome{Label: c.Label, Err: c.Err})
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", c.Label, c.Err))
			return
		}
		outcomes = append(outcomes, transferOutcome{Label: c.Label, Entry: res.Entry, Value: res.Value})
	})
	if waitErr != nil {
		return outcomes, multierr.Append(errs, waitErr)
	}
	return outcomes, errs
}

// resolveGames maps each argument to a game on the drive. An argument is a
// game directory path, an exact game ID or a fuzzy title query that must
// match exactly one game.
func resolveGames(mount string, args []string) ([]library.Game, error) {
	games, err := library.Discover(mount)
	if err != nil {
		return nil, err
	}
	out := make([]library.Game, 0, len(args))
	for _, arg := range args {
		g, err := resolveGame(games, arg)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func resolveGame(games []library.Game, arg string) (library.Game, error) {
	if abs, err := filepath.Abs(arg); err == nil {
		for _, g := range games {
			if g.Dir == abs {
				return g, nil
			}
		}
	}
	for _, g := range games {
		if string(g.ID) == arg {
			return g, nil
		}
	}
	matches := library.Filter(games, arg)
	switch len(matches) {
	case 0:
		return library.Game{}, services.Wrap(services.ErrConfiguration, "cli", "resolve game", fmt.Sprintf("no game matches %q", arg), nil)
	case 1:
		return matches[0], nil
	default:
		return library.Game{}, services.Wrap(services.ErrConfiguration, "cli", "resolve game",
			fmt.Sprintf("%q matches %d games; use the game ID", arg, len(matches)), nil)
	}
}

// installEntry classifies src as a homebrew app or a disc image.
func installEntry(src string) (transfer.Entry, error) {
	abs, err := filepath.Abs(src)
	if err != nil {
		return transfer.Entry{}, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return transfer.Entry{}, services.Wrap(services.ErrIO, "cli", "install", abs, err)
	}
	if st.IsDir() {
		if library.IsApp(abs) {
			return transfer.Entry{Kind: transfer.KindCopyApp, Title: filepath.Base(abs), Source: abs}, nil
		}
		if abs, err = disc.FindDiscFile(abs); err != nil {
			return transfer.Entry{}, err
		}
	}
	header, _, err := disc.Read(abs)
	if err != nil {
		return transfer.Entry{}, err
	}
	title := header.Title
	if title == "" {
		title = string(header.ID)
	}
	return transfer.Entry{Kind: transfer.KindInstall, Title: title + " [" + string(header.ID) + "]", Source: abs}, nil
}

// sourceBytes totals what entries will write to the drive.
func sourceBytes(entries []transfer.Entry) (int64, error) {
	var total int64
	for _, e := range entries {
		switch e.Kind {
		case transfer.KindCopyApp:
			n, err := fileutil.DirSize(e.Source)
			if err != nil {
				return 0, err
			}
			total += n
		default:
			_, meta, err := disc.Read(e.Source)
			if err != nil {
				return 0, err
			}
			total += meta.Size
		}
	}
	return total, nil
}
