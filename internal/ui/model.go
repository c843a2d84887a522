package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"tinywii/internal/disc"
	"tinywii/internal/jobs"
	"tinywii/internal/library"
	"tinywii/internal/logging"
	"tinywii/internal/ops"
	"tinywii/internal/pipeline"
	"tinywii/internal/redump"
	"tinywii/internal/services"
	"tinywii/internal/transfer"
)

const defaultPollInterval = 250 * time.Millisecond

// Scheduler is the part of the pipeline the model drives.
type Scheduler interface {
	SubmitJob(job pipeline.Job) pipeline.Handle
	Poll() []pipeline.Completion
	Stats() pipeline.Stats
}

// Options wires the model to the running pipeline.
type Options struct {
	Mount     string
	Version   string
	Scheduler Scheduler
	Jobs      *jobs.Jobs
	Transfers *transfer.Queue
	// Recent feeds the log pane. Nil hides it.
	Recent *logging.Recent
	// PollInterval is the fallback drain period when no wake arrives.
	PollInterval time.Duration
	// RedrawPerSecond caps wake driven repaints in Run. Zero is unlimited.
	RedrawPerSecond float64
}

type gameState int

const (
	stateQueued gameState = iota
	stateLoaded
	stateVerifying
	stateVerified
	stateFailed
)

type gameRow struct {
	game     library.Game
	state    gameState
	discPath string
	header   disc.Header
	meta     disc.Meta
	digest   ops.Digest
	redump   redump.Result
	err      error
}

// orphan is a game job drained before the completion that spawned it.
type orphan struct {
	err    error
	drains int
}

const orphanDrains = 2

type (
	wakeMsg struct{}
	tickMsg time.Time
)

// RescanMsg asks the model to rediscover the drive.
type RescanMsg struct{}

// Model is the bubbletea model for the library view.
type Model struct {
	opts    Options
	keys    keyMap
	help    help.Model
	spinner spinner.Model
	filter  textinput.Model

	filtering bool
	games     []library.Game
	rows      map[string]*gameRow
	apps      int
	cursor    int

	// owners maps game job handles to the directory they work on.
	owners map[pipeline.Handle]string
	// orphans holds game job completions drained before their parent, which
	// is always recorded within the following drain.
	orphans    map[pipeline.Handle]orphan
	scanHandle pipeline.Handle
	scanning   bool

	report    jobs.Report
	status    string
	statusErr bool
	width     int
	height    int
}

// New builds a model. Nothing is submitted until Init runs.
func New(opts Options) *Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	filter := textinput.New()
	filter.Prompt = "/ "
	filter.Placeholder = "title or id"
	filter.CharLimit = 64

	return &Model{
		opts:    opts,
		keys:    newKeyMap(),
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.warn)),
		filter:  filter,
		rows:    map[string]*gameRow{},
		owners:  map[pipeline.Handle]string{},
		orphans: map[pipeline.Handle]orphan{},
	}
}

// Init starts the fallback poll timer and the first scan.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.tick(),
		func() tea.Msg { return RescanMsg{} },
	)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case wakeMsg:
		m.drain()
		return m, nil

	case tickMsg:
		m.drain()
		return m, m.tick()

	case RescanMsg:
		m.rescan()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.filtering {
			return m.handleFilterKeys(msg)
		}
		return m.handleKeys(msg)
	}
	return m, nil
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.PollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.down):
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.filter):
		m.filtering = true
		return m, m.filter.Focus()
	case key.Matches(msg, m.keys.clear):
		m.filter.SetValue("")
		m.cursor = 0
	case key.Matches(msg, m.keys.rescan):
		m.rescan()
	case key.Matches(msg, m.keys.checksum):
		if row := m.selected(); row != nil {
			m.verify(row)
		}
	case key.Matches(msg, m.keys.verifyAll):
		n := 0
		for _, g := range m.games {
			if m.verify(m.rows[g.Dir]) {
				n++
			}
		}
		m.setStatus(pluralize(n, "checksum", "checksums") + " queued")
	case key.Matches(msg, m.keys.archive):
		m.archiveSelected()
	case key.Matches(msg, m.keys.cancel):
		m.cancelLast()
	case key.Matches(msg, m.keys.cancelAll):
		if m.opts.Transfers != nil {
			n := m.opts.Transfers.CancelAll()
			m.setStatus(pluralize(n, "pending transfer", "pending transfers") + " cancelled")
		}
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) handleFilterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case "esc":
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.cursor = 0
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.cursor = 0
	return m, cmd
}

// visible returns the games matching the current filter.
func (m *Model) visible() []library.Game {
	return library.Filter(m.games, m.filter.Value())
}

func (m *Model) selected() *gameRow {
	games := m.visible()
	if len(games) == 0 {
		return nil
	}
	if m.cursor >= len(games) {
		m.cursor = len(games) - 1
	}
	return m.rows[games[m.cursor].Dir]
}

func (m *Model) rescan() {
	if m.opts.Jobs == nil || m.opts.Scheduler == nil {
		return
	}
	if m.scanning {
		m.setStatus("scan already running")
		return
	}
	m.scanHandle = m.opts.Scheduler.SubmitJob(m.opts.Jobs.Scan(jobs.ScanOptions{Prune: true}))
	m.scanning = true
	m.setStatus("scanning " + m.opts.Mount)
}

// verify submits a checksum for a loaded row. It reports whether a job was
// submitted.
func (m *Model) verify(row *gameRow) bool {
	if row == nil || row.discPath == "" || row.state == stateVerifying || m.opts.Jobs == nil {
		return false
	}
	h := m.opts.Scheduler.SubmitJob(m.opts.Jobs.Checksum(row.game, row.discPath))
	m.owners[h] = row.game.Dir
	row.state = stateVerifying
	row.err = nil
	return true
}

func (m *Model) archiveSelected() {
	row := m.selected()
	if row == nil || m.opts.Transfers == nil {
		return
	}
	id := m.opts.Transfers.Push(transfer.Entry{
		Kind:    transfer.KindArchive,
		Title:   row.game.Display(),
		Source:  row.game.Dir,
		Created: time.Now(),
	})
	m.setStatus("queued " + id.String() + " archive " + row.game.Display())
}

// cancelLast drops the newest transfer that has not started.
func (m *Model) cancelLast() {
	if m.opts.Transfers == nil {
		return
	}
	entries := m.opts.Transfers.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if m.opts.Transfers.Cancel(entries[i].ID) {
			m.setStatus("cancelled " + entries[i].Display())
			return
		}
	}
	m.setStatus("nothing to cancel")
}

func (m *Model) drain() {
	if m.opts.Scheduler == nil {
		return
	}
	for _, c := range m.opts.Scheduler.Poll() {
		m.apply(c)
	}
	for h, o := range m.orphans {
		if o.drains++; o.drains >= orphanDrains {
			delete(m.orphans, h)
			continue
		}
		m.orphans[h] = o
	}
}

func (m *Model) apply(c pipeline.Completion) {
	m.report.Add(c)
	if m.opts.Transfers != nil {
		if entry, ok := m.opts.Transfers.Resolve(c); ok {
			m.applyTransfer(entry, c)
			return
		}
	}
	if c.Handle == m.scanHandle {
		m.scanning = false
	}

	dir, owned := m.owners[c.Handle]
	delete(m.owners, c.Handle)
	if !owned && c.Handle != m.scanHandle && c.Parent != 0 {
		m.orphans[c.Handle] = orphan{err: c.Err}
	}
	if c.Err != nil {
		if owned {
			m.fail(dir, c.Err)
		}
		m.setError(c.Label, c.Err)
		return
	}

	switch v := c.Value.(type) {
	case jobs.ScanStarted:
		m.applyScan(v, c.Spawned)
	case jobs.GameLoaded:
		row := m.row(v.Game)
		row.discPath = v.DiscPath
		row.header = v.Header
		row.meta = v.Meta
		row.state = stateLoaded
		row.err = nil
		if len(c.Spawned) > 0 {
			h := c.Spawned[0]
			if o, done := m.orphans[h]; done {
				// The checksum was drained first and already updated the row.
				delete(m.orphans, h)
				if o.err == nil {
					row.state = stateVerified
				} else {
					m.fail(v.Game.Dir, o.err)
				}
			} else {
				row.state = stateVerifying
				m.owners[h] = v.Game.Dir
			}
		}
	case jobs.Verified:
		row := m.row(v.Game)
		row.digest = v.Digest
		row.redump = v.Redump
		row.state = stateVerified
		row.err = nil
	case jobs.UpdateChecked:
		if v.Info != nil && v.Info.Available {
			m.setStatus(v.Info.String())
		}
	}
}

func (m *Model) applyScan(v jobs.ScanStarted, spawned []pipeline.Handle) {
	rows := make(map[string]*gameRow, len(v.Games))
	for _, g := range v.Games {
		row, ok := m.rows[g.Dir]
		if !ok {
			row = &gameRow{}
		}
		row.game = g
		rows[g.Dir] = row
	}
	m.rows = rows
	m.games = v.Games
	m.apps = len(v.Apps)
	for i, h := range spawned {
		if i < len(v.Games) {
			m.adopt(h, v.Games[i].Dir)
		}
	}
	if n := len(m.visible()); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
	m.setStatus(pluralize(len(v.Games), "game", "games") + ", " + pluralize(len(v.Apps), "app", "apps"))
}

// adopt attributes handle to dir. A handle already drained is not tracked;
// its failure, if any, is applied to dir now.
func (m *Model) adopt(h pipeline.Handle, dir string) {
	if o, ok := m.orphans[h]; ok {
		delete(m.orphans, h)
		if o.err != nil {
			m.fail(dir, o.err)
		}
		return
	}
	m.owners[h] = dir
}

func (m *Model) fail(dir string, err error) {
	row, ok := m.rows[dir]
	if !ok {
		return
	}
	if services.IsCancelled(err) {
		if row.state == stateVerifying {
			row.state = stateLoaded
		}
		return
	}
	row.state = stateFailed
	row.err = err
}

// row returns the row for game, creating it when a load finished before its
// scan was drained.
func (m *Model) row(game library.Game) *gameRow {
	if row, ok := m.rows[game.Dir]; ok {
		return row
	}
	row := &gameRow{game: game}
	m.rows[game.Dir] = row
	m.games = append(m.games, game)
	library.SortByTitle(m.games)
	return row
}

func (m *Model) applyTransfer(entry transfer.Entry, c pipeline.Completion) {
	switch {
	case c.Err == nil:
		m.setStatus(entry.Display() + " finished")
		if entry.Kind == transfer.KindInstall || entry.Kind == transfer.KindCopyApp {
			m.rescan()
		}
		if res, ok := c.Value.(transfer.Result); ok && entry.Kind == transfer.KindChecksum {
			if v, ok := res.Value.(jobs.Verified); ok {
				if row, ok := m.rows[entry.Source]; ok {
					row.digest = v.Digest
					row.redump = v.Redump
					row.state = stateVerified
				}
			}
		}
	case services.IsCancelled(c.Err):
		m.setStatus(entry.Display() + " cancelled")
	default:
		m.setError(entry.Display(), c.Err)
	}
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(label string, err error) {
	if services.IsCancelled(err) {
		m.setStatus(label + " cancelled")
		return
	}
	m.status = label + ": " + err.Error()
	m.statusErr = true
}
