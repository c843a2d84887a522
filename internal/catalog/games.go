package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Record is one cached game directory.
type Record struct {
	Dir         string
	GameID      string
	Title       string
	Console     string
	DiscPath    string
	Format      string
	DiscNumber  int
	DiscVersion int
	SizeBytes   int64
	Parts       int
	CRC32       string
	XXH64       string
	VerifiedAt  time.Time
	ScannedAt   time.Time
}

// Verified reports whether a checksum has been stored for the record.
func (r Record) Verified() bool {
	return r.XXH64 != ""
}

// ErrNotFound is returned by Get when no record exists for a directory.
var ErrNotFound = errors.New("catalog record not found")

const recordColumns = `dir, game_id, title, console, disc_path, format, disc_number,
    disc_version, size_bytes, parts, crc32, xxh64, verified_at, scanned_at`

// Upsert stores the scan result for rec.Dir. Checksums recorded earlier are
// kept unless the image size changed.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if strings.TrimSpace(rec.Dir) == "" {
		return errors.New("upsert: empty directory")
	}
	scanned := rec.ScannedAt
	if scanned.IsZero() {
		scanned = time.Now()
	}
	_, err := s.exec(ctx,
		`INSERT INTO games (`+recordColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', NULL, ?)
        ON CONFLICT(dir) DO UPDATE SET
            game_id = excluded.game_id,
            title = excluded.title,
            console = excluded.console,
            disc_path = excluded.disc_path,
            format = excluded.format,
            disc_number = excluded.disc_number,
            disc_version = excluded.disc_version,
            crc32 = CASE WHEN games.size_bytes = excluded.size_bytes THEN games.crc32 ELSE '' END,
            xxh64 = CASE WHEN games.size_bytes = excluded.size_bytes THEN games.xxh64 ELSE '' END,
            verified_at = CASE WHEN games.size_bytes = excluded.size_bytes THEN games.verified_at ELSE NULL END,
            size_bytes = excluded.size_bytes,
            parts = excluded.parts,
            scanned_at = excluded.scanned_at`,
		rec.Dir,
		rec.GameID,
		rec.Title,
		rec.Console,
		rec.DiscPath,
		rec.Format,
		rec.DiscNumber,
		rec.DiscVersion,
		rec.SizeBytes,
		rec.Parts,
		scanned.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert game: %w", err)
	}
	return nil
}

// RecordChecksum stores the digests for an already scanned directory.
func (s *Store) RecordChecksum(ctx context.Context, dir, crc32, xxh64 string) error {
	res, err := s.exec(ctx,
		`UPDATE games SET crc32 = ?, xxh64 = ?, verified_at = ? WHERE dir = ?`,
		crc32, xxh64, time.Now().UTC().Format(time.RFC3339Nano), dir,
	)
	if err != nil {
		return fmt.Errorf("record checksum: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("record checksum for %s: %w", dir, ErrNotFound)
	}
	return nil
}

// Get returns the record for dir.
func (s *Store) Get(ctx context.Context, dir string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM games WHERE dir = ?`, dir)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%s: %w", dir, ErrNotFound)
	}
	return rec, err
}

// List returns every record ordered by title.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM games ORDER BY title COLLATE NOCASE, game_id`)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return records, nil
}

// Prune deletes records under any of roots whose directory is not in keep
// and returns how many were removed. Records outside roots, such as games on
// another drive, are left alone.
func (s *Store) Prune(ctx context.Context, roots, keep []string) (int, error) {
	existing, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	wanted := make(map[string]struct{}, len(keep))
	for _, dir := range keep {
		wanted[filepath.Clean(dir)] = struct{}{}
	}
	removed := 0
	for _, rec := range existing {
		dir := filepath.Clean(rec.Dir)
		if _, ok := wanted[dir]; ok || !underAny(dir, roots) {
			continue
		}
		if _, err := s.exec(ctx, `DELETE FROM games WHERE dir = ?`, rec.Dir); err != nil {
			return removed, fmt.Errorf("prune %s: %w", rec.Dir, err)
		}
		removed++
	}
	return removed, nil
}

func underAny(dir string, roots []string) bool {
	for _, root := range roots {
		root = filepath.Clean(root)
		if strings.HasPrefix(dir, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec        Record
		verifiedAt sql.NullString
		scannedAt  string
	)
	if err := row.Scan(
		&rec.Dir,
		&rec.GameID,
		&rec.Title,
		&rec.Console,
		&rec.DiscPath,
		&rec.Format,
		&rec.DiscNumber,
		&rec.DiscVersion,
		&rec.SizeBytes,
		&rec.Parts,
		&rec.CRC32,
		&rec.XXH64,
		&verifiedAt,
		&scannedAt,
	); err != nil {
		return Record{}, err
	}
	if verifiedAt.Valid {
		rec.VerifiedAt, _ = time.Parse(time.RFC3339Nano, verifiedAt.String)
	}
	rec.ScannedAt, _ = time.Parse(time.RFC3339Nano, scannedAt)
	return rec, nil
}
