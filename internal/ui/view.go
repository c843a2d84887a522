package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"tinywii/internal/redump"
)

const (
	defaultListRows = 15
	logRows         = 4
	titleWidth      = 44
)

// View renders the library, the transfer queue and the log pane.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderGames())
	b.WriteString("\n")
	if pane := m.renderTransfers(); pane != "" {
		b.WriteString(pane)
		b.WriteString("\n")
	}
	if pane := m.renderLog(); pane != "" {
		b.WriteString(pane)
		b.WriteString("\n")
	}
	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderHeader() string {
	title := "tinywii"
	if m.opts.Version != "" {
		title += " " + m.opts.Version
	}
	line := styles.title.Render(title) + "  " + styles.dim.Render(m.opts.Mount)
	if m.opts.Scheduler == nil {
		return line
	}
	st := m.opts.Scheduler.Stats()
	busy := ""
	if st.InFlight > 0 {
		busy = m.spinner.View() + " "
	}
	counts := fmt.Sprintf("%spreload %d/%d  process %d/%d  queued %d  games %d  apps %d",
		busy,
		st.PreloadRunning, st.Budget.Preloader,
		st.ProcessRunning, st.Budget.Processor,
		st.PreloadQueued+st.ProcessQueued,
		len(m.games), m.apps,
	)
	if r := m.report; r.Passed+r.Mismatched > 0 {
		counts += fmt.Sprintf("  redump %d passed %d mismatched", r.Passed, r.Mismatched)
	}
	return lipgloss.JoinVertical(lipgloss.Left, line, counts)
}

func (m *Model) renderGames() string {
	games := m.visible()
	if len(games) == 0 {
		if m.scanning {
			return styles.dim.Render(m.spinner.View() + " scanning...")
		}
		return styles.dim.Render("no games found")
	}

	limit := defaultListRows
	if m.height > 0 {
		limit = max(m.height-14, 3)
	}
	start := 0
	if m.cursor >= limit {
		start = m.cursor - limit + 1
	}
	end := min(start+limit, len(games))

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		row := m.rows[games[i].Dir]
		if row == nil {
			continue
		}
		line := fmt.Sprintf("%-6s  %-*s  %9s  ",
			row.game.ID, titleWidth, truncate(row.game.Title, titleWidth), humanize.IBytes(uint64(row.game.Size)))
		if i == m.cursor {
			line = styles.selected.Render(line)
		}
		lines = append(lines, line+m.renderState(row))
	}
	if end < len(games) {
		lines = append(lines, styles.dim.Render(fmt.Sprintf("... %d more", len(games)-end)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderState(row *gameRow) string {
	switch row.state {
	case stateLoaded:
		return styles.ok.Render(fmt.Sprintf("%s %s", row.meta.Format, pluralize(len(row.meta.Parts), "part", "parts")))
	case stateVerifying:
		return styles.warn.Render(m.spinner.View() + " verifying")
	case stateVerified:
		text := "crc32 " + row.digest.CRC32Hex()
		switch row.redump.Status {
		case redump.StatusMatch:
			return styles.ok.Render(text + " redump ok")
		case redump.StatusMismatch:
			return styles.err.Render(text + " redump mismatch")
		}
		return styles.ok.Render(text)
	case stateFailed:
		msg := "failed"
		if row.err != nil {
			msg = row.err.Error()
		}
		return styles.err.Render(truncate(msg, 48))
	default:
		return styles.dim.Render("loading")
	}
}

func (m *Model) renderTransfers() string {
	if m.opts.Transfers == nil {
		return ""
	}
	entries := m.opts.Transfers.Entries()
	if len(entries) == 0 {
		return ""
	}
	_, running, _ := m.opts.Transfers.Current()
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, styles.title.UnsetMarginBottom().Render("Transfers"))
	for i, e := range entries {
		mark := styles.dim.Render("waiting")
		if i == 0 && running {
			mark = styles.warn.Render(m.spinner.View() + " running")
		}
		lines = append(lines, fmt.Sprintf("%-5s %s  %s", e.ID, e.Display(), mark))
	}
	return styles.pane.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderLog() string {
	if m.opts.Recent == nil {
		return ""
	}
	entries := m.opts.Recent.Entries()
	if len(entries) == 0 {
		return ""
	}
	if len(entries) > logRows {
		entries = entries[len(entries)-logRows:]
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		text := e.Time.Format("15:04:05") + " " + e.Message
		if e.Error != "" {
			text += ": " + e.Error
		}
		lines = append(lines, styles.warn.Render(truncate(text, 100)))
	}
	return styles.pane.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderStatus() string {
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return styles.err.Render(m.status)
	}
	return styles.dim.Render(m.status)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
