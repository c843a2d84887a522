package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	up        key.Binding
	down      key.Binding
	filter    key.Binding
	clear     key.Binding
	rescan    key.Binding
	checksum  key.Binding
	verifyAll key.Binding
	archive   key.Binding
	cancel    key.Binding
	cancelAll key.Binding
	help      key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		filter:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		clear:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear filter")),
		rescan:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
		checksum:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "checksum")),
		verifyAll: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "verify all")),
		archive:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "archive")),
		cancel:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "cancel last transfer")),
		cancelAll: key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "cancel pending")),
		help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.filter, k.rescan, k.checksum, k.archive, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.filter, k.clear},
		{k.rescan, k.checksum, k.verifyAll, k.archive},
		{k.cancel, k.cancelAll, k.help, k.quit},
	}
}
