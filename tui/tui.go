// Package tui is an interactive terminal view of a replicated tree.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Session is the replica the UI drives.
type Session interface {
	// Exec runs one command line and returns its output.
	Exec(line string) (string, error)
	// Render returns the current tree, one node per line.
	Render() string
	// Updates is signalled when the tree changed remotely.
	Updates() <-chan struct{}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Run blocks until the user quits.
func Run(s Session) error {
	p := tea.NewProgram(newModel(s), tea.WithAltScreen())
	return p.Start()
}

type (
	errMsg error

	// updateMsg is sent when the session reports a remote change.
	updateMsg struct{}
)

type model struct {
	session   Session
	textInput textinput.Model
	tree      string
	status    string
	err       error
	width     int
	height    int
	Quitting  bool
}

func newModel(s Session) model {
	ti := textinput.New()
	ti.Placeholder = "add / docs"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 60

	return model{
		session:   s,
		textInput: ti,
		tree:      s.Render(),
		status:    "type help for the list of commands",
	}
}

// waitForUpdate turns the next session update into a message.
func waitForUpdate(s Session) tea.Cmd {
	return func() tea.Msg {
		<-s.Updates()
		return updateMsg{}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForUpdate(m.session))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.Quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.textInput.Value())
			m.textInput.SetValue("")
			if line == "!q" {
				m.Quitting = true
				return m, tea.Quit
			}
			m.status, m.err = m.session.Exec(line)
			m.tree = m.session.Render()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case updateMsg:
		m.tree = m.session.Render()
		return m, waitForUpdate(m.session)

	// We handle errors just like any other message
	case errMsg:
		m.err = msg
		return m, nil
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.Quitting {
		return "\n  See you later!\n\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("treecrdt") + "\n\n")

	lines := strings.Split(m.tree, "\n")
	// Leave room for the title, status and prompt.
	if m.height > 6 && len(lines) > m.height-6 {
		hidden := len(lines) - (m.height - 7)
		lines = append(lines[:m.height-7], fmt.Sprintf("… %d more", hidden))
	}
	for _, line := range lines {
		if m.width > 0 {
			line = runewidth.Truncate(line, m.width, "…")
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	} else {
		b.WriteString(statusStyle.Render(m.status) + "\n")
	}
	b.WriteString(m.textInput.View() + "\n")
	b.WriteString(statusStyle.Render("(esc to quit)") + "\n")
	return b.String()
}
