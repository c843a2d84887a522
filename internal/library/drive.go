package library

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/shirou/gopsutil/v4/disk"

	"tinywii/internal/services"
)

// LockFileName is created on the drive while a mutating command runs.
const LockFileName = ".tinywii.lock"

// ErrDriveBusy reports that another process holds the drive lock.
var ErrDriveBusy = errors.New("drive is in use by another tinywii process")

// LockDrive takes the exclusive drive lock without blocking. The caller must
// Unlock the returned lock.
func LockDrive(mount string) (*flock.Flock, error) {
	lock := flock.New(filepath.Join(mount, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "library", "lock drive", mount, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrIO, "library", "lock drive", mount, ErrDriveBusy)
	}
	return lock, nil
}

// Usage reports capacity of the filesystem holding the drive.
type Usage struct {
	Path        string
	Filesystem  string
	Total       uint64
	Free        uint64
	Used        uint64
	UsedPercent float64
}

// DriveUsage queries the filesystem backing mount.
func DriveUsage(ctx context.Context, mount string) (Usage, error) {
	stat, err := disk.UsageWithContext(ctx, mount)
	if err != nil {
		return Usage{}, services.Wrap(services.ErrIO, "library", "drive usage", mount, err)
	}
	return Usage{
		Path:        stat.Path,
		Filesystem:  stat.Fstype,
		Total:       stat.Total,
		Free:        stat.Free,
		Used:        stat.Used,
		UsedPercent: stat.UsedPercent,
	}, nil
}
