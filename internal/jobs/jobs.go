package jobs

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"tinywii/internal/catalog"
	"tinywii/internal/config"
	"tinywii/internal/disc"
	"tinywii/internal/library"
	"tinywii/internal/logging"
	"tinywii/internal/ops"
	"tinywii/internal/pipeline"
	"tinywii/internal/redump"
	"tinywii/internal/updater"
)

// Jobs builds the units of work the CLI and TUI submit.
type Jobs struct {
	cfg     *config.Config
	catalog *catalog.Store
	logger  *slog.Logger
	redump  func() (*redump.DB, error)
}

// New returns a job builder. store may be nil when the catalog is disabled.
// Redump DATs are read from the data directory and the drive root on the
// first checksum.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger) *Jobs {
	return &Jobs{
		cfg:     cfg,
		catalog: store,
		logger:  logging.NewComponentLogger(logger, "jobs"),
		redump: sync.OnceValues(func() (*redump.DB, error) {
			return redump.Load(redump.Paths(cfg.Paths.DataDir, cfg.Paths.MountPoint)...)
		}),
	}
}

// ScanOptions controls what a scan chains after discovery.
type ScanOptions struct {
	// Checksum chains a checksum job after each game loads.
	Checksum bool
	// Prune removes catalog records for directories that no longer exist.
	Prune bool
}

// ScanStarted is the value of a finished discovery job.
type ScanStarted struct {
	RequestID string
	Mount     string
	Games     []library.Game
	Apps      []library.App
	Pruned    int
}

// GameLoaded is the value of a finished metadata job.
type GameLoaded struct {
	Game     library.Game
	DiscPath string
	Header   disc.Header
	Meta     disc.Meta
}

// Verified is the value of a finished checksum job. Redump is StatusUnknown
// when no DAT is installed or the image is not a plain ISO.
type Verified struct {
	Game   library.Game
	Digest ops.Digest
	Redump redump.Result
}

// UpdateChecked is the value of a finished release check.
type UpdateChecked struct {
	Info *updater.Info
}

// TitlesDownloaded is the value of a finished titles download.
type TitlesDownloaded struct {
	Path  string
	Bytes int64
}

// RedumpDownloaded is the value of a finished redump DAT download.
type RedumpDownloaded struct {
	Paths   []string
	Entries int
}

// Scan discovers games and apps on the preload stage and chains one LoadGame
// job per game on the process stage.
func (j *Jobs) Scan(opts ScanOptions) pipeline.Job {
	requestID := uuid.NewString()
	mount := j.cfg.Paths.MountPoint
	return pipeline.Job{
		Stage:     pipeline.StagePreload,
		Label:     "scan " + mount,
		RequestID: requestID,
		Work: func(ctx context.Context) (pipeline.Outcome, error) {
			logger := logging.WithContext(ctx, j.logger)

			games, err := library.Discover(mount)
			if err != nil {
				return pipeline.Outcome{}, err
			}
			titles, err := library.LoadTitles(mount)
			if err != nil {
				logger.Warn("titles database unreadable", logging.Args(logging.ErrorAttrs(err)...)...)
			}
			titles.Apply(games)
			library.SortByTitle(games)

			apps, err := library.DiscoverApps(mount)
			if err != nil {
				return pipeline.Outcome{}, err
			}

			result := ScanStarted{RequestID: requestID, Mount: mount, Games: games, Apps: apps}
			if opts.Prune && j.catalog != nil {
				dirs := make([]string, 0, len(games))
				for _, g := range games {
					dirs = append(dirs, g.Dir)
				}
				roots := []string{
					filepath.Join(mount, library.WBFSDir),
					filepath.Join(mount, library.GamesDir),
				}
				pruned, err := j.catalog.Prune(ctx, roots, dirs)
				if err != nil {
					logger.Warn("catalog prune failed", logging.Args(logging.ErrorAttrs(err)...)...)
				}
				result.Pruned = pruned
			}

			logger.Info("scan discovered library",
				logging.String("mount", mount),
				logging.Int("games", len(games)),
				logging.Int("apps", len(apps)),
			)

			next := make([]pipeline.Job, 0, len(games))
			for _, g := range games {
				next = append(next, j.LoadGame(g, opts.Checksum))
			}
			return pipeline.Then(result, next...), nil
		},
	}
}

// LoadGame reads the disc header for game on the process stage and records
// it in the catalog. With checksum set it chains a Checksum job.
func (j *Jobs) LoadGame(game library.Game, checksum bool) pipeline.Job {
	return pipeline.Job{
		Stage: pipeline.StageProcess,
		Label: "load " + game.Display(),
		Work: func(ctx context.Context) (pipeline.Outcome, error) {
			path, err := disc.FindDiscFile(game.Dir)
			if err != nil {
				return pipeline.Outcome{}, err
			}
			header, meta, err := disc.Read(path)
			if err != nil {
				return pipeline.Outcome{}, err
			}
			if header.ID != game.ID {
				logging.WithContext(ctx, j.logger).Warn("disc id differs from directory name",
					logging.String("dir", filepath.Base(game.Dir)),
					logging.String("disc_id", string(header.ID)),
				)
			}
			j.record(ctx, game, path, header, meta)

			loaded := GameLoaded{Game: game, DiscPath: path, Header: header, Meta: meta}
			if checksum {
				return pipeline.Then(loaded, j.Checksum(game, path)), nil
			}
			return pipeline.Done(loaded), nil
		},
	}
}

// Checksum hashes the disc at path on the process stage.
func (j *Jobs) Checksum(game library.Game, path string) pipeline.Job {
	return pipeline.Job{
		Stage: pipeline.StageProcess,
		Label: "checksum " + game.Display(),
		Work: func(ctx context.Context) (pipeline.Outcome, error) {
			logger := logging.WithContext(ctx, j.logger)
			v, err := j.verify(ctx, game, path, progressLogger(logger, "checksum", game.Display()))
			if err != nil {
				return pipeline.Outcome{}, err
			}
			return pipeline.Done(v), nil
		},
	}
}

// verify hashes path, compares it with redump and records the checksum.
func (j *Jobs) verify(ctx context.Context, game library.Game, path string, progress func(done, total int64)) (Verified, error) {
	logger := logging.WithContext(ctx, j.logger)
	digest, err := ops.Checksum(ctx, path, progress)
	if err != nil {
		return Verified{}, err
	}
	if j.catalog != nil {
		err := j.catalog.RecordChecksum(ctx, game.Dir, digest.CRC32Hex(), digest.XXH64Hex())
		if err != nil && !errors.Is(err, catalog.ErrNotFound) {
			logger.Warn("catalog checksum update failed", logging.Args(logging.ErrorAttrs(err)...)...)
		}
	}
	v := Verified{Game: game, Digest: digest, Redump: j.matchRedump(ctx, path, digest)}
	logger.Info("checksum complete",
		logging.String("game", game.Display()),
		logging.String("crc32", digest.CRC32Hex()),
		logging.String("xxh64", digest.XXH64Hex()),
		logging.String("redump", v.Redump.Label()),
	)
	return v, nil
}

// matchRedump compares a plain ISO digest with the installed DATs. Other
// containers hash their own layout rather than the disc, so they stay
// unknown.
func (j *Jobs) matchRedump(ctx context.Context, path string, digest ops.Digest) redump.Result {
	db, err := j.redump()
	if err != nil {
		logging.WithContext(ctx, j.logger).Warn("redump database unreadable", logging.Args(logging.ErrorAttrs(err)...)...)
		return redump.Result{}
	}
	if db.Len() == 0 {
		return redump.Result{}
	}
	if _, meta, err := disc.Read(path); err != nil || meta.Format != disc.FormatISO {
		return redump.Result{}
	}
	return db.Check(digest.CRC32, digest.Size)
}

// CheckUpdate runs a release check on the process stage.
func CheckUpdate(checker *updater.Checker) pipeline.Job {
	return pipeline.Job{
		Stage: pipeline.StageProcess,
		Label: "check update",
		Work: func(ctx context.Context) (pipeline.Outcome, error) {
			info, err := checker.Check(ctx)
			if err != nil {
				return pipeline.Outcome{}, err
			}
			return pipeline.Done(UpdateChecked{Info: info}), nil
		},
	}
}

// DownloadTitles refreshes mount/titles.txt on the process stage.
func DownloadTitles(checker *updater.Checker, mount string) pipeline.Job {
	dest := filepath.Join(mount, library.TitlesFileName)
	return pipeline.Job{
		Stage: pipeline.StageProcess,
		Label: "download titles",
		Work: func(ctx context.Context) (pipeline.Outcome, error) {
			n, err := checker.DownloadTitles(ctx, dest)
			if err != nil {
				return pipeline.Outcome{}, err
			}
			return pipeline.Done(TitlesDownloaded{Path: dest, Bytes: n}), nil
		},
	}
}

// DownloadRedump fetches the redump DATs into dir on the process stage.
// Checksums pick them up in the next process that builds a Jobs.
func DownloadRedump(checker *updater.Checker, dir string) pipeline.Job {
	return pipeline.Job{
		Stage: pipeline.StageProcess,
		Label: "download redump",
		Work: func(ctx context.Context) (pipeline.Outcome, error) {
			paths, err := checker.DownloadRedump(ctx, dir)
			if err != nil {
				return pipeline.Outcome{}, err
			}
			db, err := redump.Load(paths...)
			if err != nil {
				return pipeline.Outcome{}, err
			}
			return pipeline.Done(RedumpDownloaded{Paths: paths, Entries: db.Len()}), nil
		},
	}
}

func (j *Jobs) record(ctx context.Context, game library.Game, path string, header disc.Header, meta disc.Meta) {
	if j.catalog == nil {
		return
	}
	err := j.catalog.Upsert(ctx, catalog.Record{
		Dir:         game.Dir,
		GameID:      string(header.ID),
		Title:       game.Title,
		Console:     header.Console.String(),
		DiscPath:    path,
		Format:      string(meta.Format),
		DiscNumber:  int(header.DiscNumber),
		DiscVersion: int(header.Version),
		SizeBytes:   meta.Size,
		Parts:       len(meta.Parts),
	})
	if err != nil {
		logging.WithContext(ctx, j.logger).Warn("catalog update failed",
			append([]any{logging.String("dir", game.Dir)}, logging.Args(logging.ErrorAttrs(err)...)...)...)
	}
}

// progressLogger logs byte progress in 10% buckets at debug level.
func progressLogger(logger *slog.Logger, op, subject string) func(done, total int64) {
	sampler := logging.NewProgressSampler(10)
	return func(done, total int64) {
		if !sampler.ShouldLog(done, total) {
			return
		}
		logger.Debug(op+" progress",
			logging.String("subject", subject),
			logging.Int64("done", done),
			logging.Int64("total", total),
		)
	}
}
