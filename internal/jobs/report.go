package jobs

import (
	"fmt"

	"go.uber.org/multierr"

	"tinywii/internal/pipeline"
	"tinywii/internal/redump"
	"tinywii/internal/services"
	"tinywii/internal/transfer"
)

// Report folds completions from a batch into counts and one combined error.
type Report struct {
	Scans     int
	Loaded    int
	Verified  int
	// Passed and Mismatched count checksums compared with a redump DAT.
	Passed     int
	Mismatched int
	Transfers int
	Other     int
	Failed    int
	Cancelled int

	err error
}

// Add records one completion. Cancelled work is counted but not treated as
// a failure.
func (r *Report) Add(c pipeline.Completion) {
	if c.Err != nil {
		if services.IsCancelled(c.Err) {
			r.Cancelled++
			return
		}
		r.Failed++
		r.err = multierr.Append(r.err, fmt.Errorf("%s: %w", c.Label, c.Err))
		return
	}
	switch v := c.Value.(type) {
	case ScanStarted:
		r.Scans++
	case GameLoaded:
		r.Loaded++
	case Verified:
		r.Verified++
		r.addRedump(v.Redump)
	case transfer.Result:
		r.Transfers++
		if checked, ok := v.Value.(Verified); ok {
			r.addRedump(checked.Redump)
		}
	default:
		r.Other++
	}
}

// Err returns every failure combined, or nil.
func (r *Report) Err() error {
	return r.err
}

// Errors lists the individual failures.
func (r *Report) Errors() []error {
	return multierr.Errors(r.err)
}

func (r *Report) addRedump(res redump.Result) {
	switch res.Status {
	case redump.StatusMatch:
		r.Passed++
	case redump.StatusMismatch:
		r.Mismatched++
	}
}

func (r *Report) String() string {
	s := fmt.Sprintf("%d loaded, %d verified, %d transfers, %d failed, %d cancelled",
		r.Loaded, r.Verified, r.Transfers, r.Failed, r.Cancelled)
	if r.Passed+r.Mismatched > 0 {
		s += fmt.Sprintf(" (redump: %d passed, %d mismatched)", r.Passed, r.Mismatched)
	}
	return s
}
