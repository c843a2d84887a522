// Package budget derives how many workers the preloader and processor stages
// may run from the logical CPU count.
package budget

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"

	"tinywii/internal/config"
	"tinywii/internal/services"
)

// Budget is the fixed worker allotment for the two pipeline stages. It is
// computed once at startup and never changes for the life of a scheduler.
type Budget struct {
	Preloader int
	Processor int
}

// ForCPUs applies the sizing rule to a logical CPU count. The preloader gets
// one worker up to 4 CPUs, two up to 8, and four beyond that; the processor
// gets the remainder. A single CPU yields one worker per stage, and a
// non-positive count is treated as one CPU.
func ForCPUs(cpus int) Budget {
	if cpus < 1 {
		cpus = 1
	}
	var preloader int
	switch {
	case cpus <= 4:
		preloader = 1
	case cpus <= 8:
		preloader = 2
	default:
		preloader = 4
	}
	return Budget{Preloader: preloader, Processor: max(1, cpus-preloader)}
}

// Detect returns the logical CPU count, falling back to the Go runtime when
// the host query fails.
func Detect(ctx context.Context) int {
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// FromConfig resolves the budget for cpus, honouring explicit pool sizes.
// Zero fields keep the derived value for that stage.
func FromConfig(cfg config.Pipeline, cpus int) (Budget, error) {
	b := ForCPUs(cpus)
	if cfg.PreloaderThreads > 0 {
		b.Preloader = cfg.PreloaderThreads
	}
	if cfg.ProcessorThreads > 0 {
		b.Processor = cfg.ProcessorThreads
	} else if cfg.PreloaderThreads > 0 && b.Processor < b.Preloader {
		b.Processor = b.Preloader
	}
	if err := b.Validate(); err != nil {
		return Budget{}, err
	}
	return b, nil
}

// Validate checks that both stages have workers and that the processor pool
// is at least as large as the preloader pool.
func (b Budget) Validate() error {
	if b.Preloader < 1 {
		return services.Wrap(services.ErrConfiguration, "budget", "validate",
			fmt.Sprintf("preloader threads must be at least 1, got %d", b.Preloader), nil)
	}
	if b.Processor < b.Preloader {
		return services.Wrap(services.ErrConfiguration, "budget", "validate",
			fmt.Sprintf("processor threads (%d) must be at least preloader threads (%d)", b.Processor, b.Preloader), nil)
	}
	return nil
}

// Total is the number of workers across both stages.
func (b Budget) Total() int {
	return b.Preloader + b.Processor
}

func (b Budget) String() string {
	return fmt.Sprintf("preloader=%d processor=%d", b.Preloader, b.Processor)
}
