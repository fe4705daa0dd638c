package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Zuo-Peng/t2c/internal/migrate"
)

// Work runs the migration, reporting progress to obs. It must return once
// ctx is cancelled and the record in flight has finished.
type Work func(ctx context.Context, obs migrate.Observer) error

// message types

type eventMsg struct {
	event migrate.Event
}

type workDoneMsg struct {
	err error
}

type copiedMsg struct {
	err error
}

type logLine struct {
	index   int
	total   int
	record  migrate.Record
	outcome migrate.Outcome
}

// model

type model struct {
	title    string
	stop     context.CancelFunc
	spinner  spinner.Model
	log      []logLine
	logView  viewport.Model
	follow   bool
	group    migrate.GroupRef
	counts   migrate.Counts
	current  *logLine // record in flight
	reports  []*migrate.Report
	err      error
	stopping bool
	done     bool
	notice   string
	width    int
	height   int
	ready    bool
}

func newModel(title string, stop context.CancelFunc) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styleInFlight

	return model{
		title:   title,
		stop:    stop,
		spinner: sp,
		logView: viewport.New(0, 0),
		follow:  true,
	}
}

// Run shows live migration progress while work runs and blocks until the
// user leaves the screen. esc stops the run after the current record.
func Run(ctx context.Context, title string, work Work) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newModel(title, cancel)
	p := tea.NewProgram(m, tea.WithAltScreen())

	finished := make(chan error, 1)
	go func() {
		err := work(ctx, migrate.ObserverFunc(func(e migrate.Event) {
			p.Send(eventMsg{event: e})
		}))
		finished <- err
		p.Send(workDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-finished
		return fmt.Errorf("tui: %w", err)
	}

	// the program can only exit after workDoneMsg, unless it was killed
	cancel()
	return <-finished
}

// Init starts the spinner.
func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.logView.Width = m.logWidth()
		m.logView.Height = m.logHeight()
		m.refreshLog()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			if m.done {
				return m, tea.Quit
			}
			if !m.stopping {
				m.stopping = true
				m.notice = "stopping after the current record..."
				if m.stop != nil {
					m.stop()
				}
			}
			return m, nil

		case key.Matches(msg, keys.CopyErr):
			if m.err == nil {
				return m, nil
			}
			return m, copyErrCmd(m.err)

		case key.Matches(msg, keys.LineUp):
			m.follow = false
			m.logView.LineUp(1)
			return m, nil

		case key.Matches(msg, keys.LineDown):
			m.logView.LineDown(1)
			m.follow = m.logView.AtBottom()
			return m, nil

		case key.Matches(msg, keys.PageUp):
			m.follow = false
			m.logView.LineUp(m.logView.Height / 2)
			return m, nil

		case key.Matches(msg, keys.PageDown):
			m.logView.LineDown(m.logView.Height / 2)
			m.follow = m.logView.AtBottom()
			return m, nil

		case key.Matches(msg, keys.Follow):
			m.follow = true
			m.logView.GotoBottom()
			return m, nil
		}
		return m, nil

	case eventMsg:
		m.apply(msg.event)
		return m, nil

	case workDoneMsg:
		m.done = true
		m.current = nil
		if msg.err != nil && m.err == nil && !errors.Is(msg.err, context.Canceled) {
			m.err = msg.err
		}
		switch {
		case m.err != nil:
			m.notice = "run failed; y copies the error, esc quits"
		case m.stopping:
			m.notice = "stopped; progress is saved, esc quits"
		default:
			m.notice = "done; esc quits"
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.notice = "clipboard unavailable: " + msg.err.Error()
		} else {
			m.notice = "error copied to clipboard"
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// apply folds one orchestrator event into the model.
func (m *model) apply(e migrate.Event) {
	switch e.Kind {
	case migrate.EventGroupStarted:
		m.group = e.Group
		m.counts = migrate.CountClassified(e.Records)
		m.log = nil
		m.current = nil
		m.refreshLog()

	case migrate.EventRecordStarted:
		m.current = &logLine{index: e.Index, total: e.Total, record: e.Record.Record}

	case migrate.EventRecordDone:
		m.current = nil
		m.log = append(m.log, logLine{index: e.Index, total: e.Total, record: e.Record.Record, outcome: e.Outcome})
		if e.Err != nil {
			m.err = e.Err
		}
		m.refreshLog()

	case migrate.EventGroupDone:
		m.current = nil
		if e.Report != nil {
			m.reports = append(m.reports, e.Report)
		}
		if e.Err != nil && !errors.Is(e.Err, context.Canceled) {
			m.err = e.Err
		}
	}
}

func (m *model) refreshLog() {
	m.logView.SetContent(m.renderLog())
	if m.follow {
		m.logView.GotoBottom()
	}
}

// View renders the full TUI.
func (m model) View() string {
	if !m.ready {
		return ""
	}

	header := styleHeader.Render(m.title)
	if m.group.ID != "" {
		header += "  " + fmt.Sprintf("%s · %d records · %d selected · %d already migrated",
			m.group.ID, m.counts.Total, m.counts.Selected, m.counts.Migrated)
	}

	logPanel := stylePanelBorder.
		Width(m.logWidth()).
		Height(m.logHeight()).
		Render(m.logView.View())

	rows := []string{header, logPanel, m.currentLine()}
	if m.err != nil {
		rows = append(rows, styleErrorBox.Width(m.logWidth()).Render(errorText(m.err)))
	}
	rows = append(rows, m.statusBar())
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m model) currentLine() string {
	if m.current == nil {
		if m.done {
			return summaryLine(m.reports)
		}
		return ""
	}
	c := *m.current
	return formatRecordLine(m.spinner.View(), c.index, c.total, c.record, m.logWidth())
}

func summaryLine(reports []*migrate.Report) string {
	var published, duplicates, filtered int
	for _, r := range reports {
		published += r.Count(migrate.OutcomePublished)
		duplicates += r.Count(migrate.OutcomeSkippedDuplicate)
		filtered += r.Count(migrate.OutcomeSkippedFiltered)
	}
	return fmt.Sprintf("%d groups · %s published · %s duplicates · %s filtered",
		len(reports),
		stylePublished.Render(fmt.Sprint(published)),
		styleDuplicate.Render(fmt.Sprint(duplicates)),
		styleSkipped.Render(fmt.Sprint(filtered)))
}

func errorText(err error) string {
	var pubErr *migrate.PublishError
	if errors.As(err, &pubErr) {
		return fmt.Sprintf("record %s (#%d) failed: %s", pubErr.RecordID, pubErr.Index+1, pubErr.Reason())
	}
	return err.Error()
}

// helper methods

func (m model) logWidth() int {
	if m.width <= 0 {
		return 80
	}
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	return w
}

func (m model) logHeight() int {
	if m.height <= 0 {
		return 20
	}
	// header (1) + current (1) + status (1) + borders (2) + error box (3)
	h := m.height - 8
	if h < 3 {
		h = 3
	}
	return h
}

func (m model) statusBar() string {
	var parts []string
	if m.notice != "" {
		parts = append(parts, m.notice)
	}
	parts = append(parts, "up/dn scroll", "f follow")
	if m.err != nil {
		parts = append(parts, "y copy error")
	}
	if m.done {
		parts = append(parts, "Esc quit")
	} else {
		parts = append(parts, "Esc stop")
	}
	return styleStatusBar.Render(strings.Join(parts, " | "))
}

func copyErrCmd(err error) tea.Cmd {
	text := errorText(err)
	return func() tea.Msg {
		return copiedMsg{err: clipboard.WriteAll(text)}
	}
}
