package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// pager shows pre-rendered text, used for group previews.
type pager struct {
	title  string
	render func(width int) string
	view   viewport.Model
	ready  bool
}

// RunPager blocks until the user closes the pager. content renders the
// text for the usable width of the window.
func RunPager(title string, content func(width int) string) error {
	m := pager{title: title, render: content, view: viewport.New(0, 0)}
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func (m pager) Init() tea.Cmd {
	return nil
}

func (m pager) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.view = newViewport(msg.Width-2, msg.Height-4)
		m.view.SetContent(m.render(m.view.Width - 2))
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.PageUp):
			m.view.LineUp(m.view.Height / 2)
			return m, nil
		case key.Matches(msg, keys.PageDown):
			m.view.LineDown(m.view.Height / 2)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m pager) View() string {
	if !m.ready {
		return ""
	}
	status := styleStatusBar.Render(fmt.Sprintf("%3.f%% | up/dn scroll | C-u/C-d page | Esc quit", m.view.ScrollPercent()*100))
	return lipgloss.JoinVertical(lipgloss.Left, styleHeader.Render(m.title), m.view.View(), status)
}

// newViewport creates a new viewport model with the given dimensions.
func newViewport(width, height int) viewport.Model {
	if width < 10 {
		width = 10
	}
	if height < 3 {
		height = 3
	}
	vp := viewport.New(width, height)
	vp.Style = stylePanelBorder
	return vp
}
