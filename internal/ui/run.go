package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"tinywii/internal/pipeline"
	"tinywii/internal/services"
)

// Run starts the program and blocks until the user quits or ctx ends. Wakes
// on sig repaint the view; each value on changes triggers a rescan.
func Run(ctx context.Context, opts Options, sig *pipeline.Signal, changes <-chan struct{}) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	relayCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var limiter *rate.Limiter
	if opts.RedrawPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RedrawPerSecond), 1)
	}
	if sig != nil {
		go pipeline.Relay(relayCtx, sig, limiter, func() { p.Send(wakeMsg{}) })
	}
	if changes != nil {
		go func() {
			for {
				select {
				case <-relayCtx.Done():
					return
				case _, ok := <-changes:
					if !ok {
						return
					}
					p.Send(RescanMsg{})
				}
			}
		}()
	}

	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return services.Wrap(services.ErrInternal, "ui", "run", "", err)
	}
	return nil
}
