package ui

import "github.com/charmbracelet/lipgloss"

var styles = newPalette("#7D56F4", "#04B575", "#FF5F5F", "#FFA500", "#626262")

type palette struct {
	title    lipgloss.Style
	selected lipgloss.Style
	ok       lipgloss.Style
	err      lipgloss.Style
	warn     lipgloss.Style
	dim      lipgloss.Style
	pane     lipgloss.Style
}

func newPalette(accent, ok, bad, warn, dim string) palette {
	return palette{
		title:    newBold(accent).MarginBottom(1),
		selected: newBold(accent).Reverse(true),
		ok:       newStyle(ok),
		err:      newBold(bad),
		warn:     newStyle(warn),
		dim:      newStyle(dim).Italic(true),
		pane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(dim)).
			Padding(0, 1),
	}
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}
