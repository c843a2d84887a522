package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"tinywii/internal/disc"
	"tinywii/internal/library"
	"tinywii/internal/logging"
	"tinywii/internal/ops"
	"tinywii/internal/services"
	"tinywii/internal/transfer"
)

// Run performs one transfer entry. Jobs satisfies transfer.Runner.
func (j *Jobs) Run(ctx context.Context, entry transfer.Entry) (any, error) {
	logger := logging.WithContext(ctx, j.logger).With(
		logging.String("transfer_id", entry.ID.String()),
		logging.String("kind", string(entry.Kind)),
	)
	progress := progressLogger(logger, string(entry.Kind), entry.Display())
	mount := j.cfg.Paths.MountPoint

	logger.Info("transfer started", logging.String("source", entry.Source))
	var (
		value any
		err   error
	)
	switch entry.Kind {
	case transfer.KindInstall:
		value, err = ops.Install(ctx, entry.Source, mount, ops.InstallOptions{
			SplitSize:    j.cfg.Transfer.SplitSizeBytes,
			RemoveSource: j.cfg.Transfer.RemoveSources,
			Progress:     progress,
		})
	case transfer.KindArchive:
		dest := entry.Dest
		if dest == "" {
			dest = j.cfg.Paths.ArchiveDir
			if mkErr := os.MkdirAll(dest, 0o755); mkErr != nil {
				return nil, services.Wrap(services.ErrIO, "jobs", "archive", dest, mkErr)
			}
		}
		value, err = ops.Archive(ctx, entry.Source, dest, ops.ArchiveOptions{
			Verify:   j.cfg.Transfer.VerifyArchive,
			Progress: progress,
		})
	case transfer.KindChecksum:
		path, findErr := disc.FindDiscFile(entry.Source)
		if findErr != nil {
			return nil, findErr
		}
		value, err = j.verify(ctx, gameFromDir(entry.Source), path, progress)
	case transfer.KindCopyApp:
		value, err = ops.CopyApp(ctx, entry.Source, mount)
	default:
		err = services.Wrap(services.ErrConfiguration, "jobs", "transfer", fmt.Sprintf("unknown kind %q", entry.Kind), nil)
	}
	if err != nil {
		logger.Warn("transfer failed", logging.Args(logging.ErrorAttrs(err)...)...)
		return nil, err
	}
	logger.Info("transfer finished")
	return value, nil
}

// gameFromDir names a game by its directory alone.
func gameFromDir(dir string) library.Game {
	game := library.Game{Dir: dir, Title: filepath.Base(dir)}
	if title, id, ok := library.ParseDirName(filepath.Base(dir)); ok {
		game.Title, game.ID = title, id
	}
	return game
}
