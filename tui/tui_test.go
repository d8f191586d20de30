package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
)

type fakeSession struct {
	tree    string
	lines   []string
	err     error
	updates chan struct{}
}

func (f *fakeSession) Exec(line string) (string, error) {
	f.lines = append(f.lines, line)
	if f.err != nil {
		return "", f.err
	}
	f.tree += "\n└── " + strings.Fields(line)[2]
	return "ok", nil
}

func (f *fakeSession) Render() string { return f.tree }

func (f *fakeSession) Updates() <-chan struct{} { return f.updates }

func enter(t *testing.T, m model, line string) model {
	t.Helper()
	m.textInput.SetValue(line)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(model)
}

func TestExecOnEnter(t *testing.T) {
	s := &fakeSession{tree: "/", updates: make(chan struct{})}
	m := enter(t, newModel(s), "add / docs")

	if want := []string{"add / docs"}; !cmp.Equal(s.lines, want) {
		t.Errorf("got != want; diff = %v\n", cmp.Diff(s.lines, want))
	}
	if got := m.textInput.Value(); got != "" {
		t.Errorf("input was not cleared: %q\n", got)
	}

	view := m.View()
	for _, want := range []string{"└── docs", "ok"} {
		if !strings.Contains(view, want) {
			t.Errorf("view is missing %q:\n%s\n", want, view)
		}
	}
}

func TestExecError(t *testing.T) {
	s := &fakeSession{tree: "/", err: errors.New("no such node"), updates: make(chan struct{})}
	m := enter(t, newModel(s), "rm /missing")

	if !strings.Contains(m.View(), "no such node") {
		t.Errorf("view does not show the error:\n%s\n", m.View())
	}
}

func TestQuit(t *testing.T) {
	s := &fakeSession{tree: "/", updates: make(chan struct{})}
	m := enter(t, newModel(s), "!q")

	if !m.Quitting {
		t.Errorf("expected the model to quit\n")
	}
	if len(s.lines) != 0 {
		t.Errorf("quit was sent to the session: %v\n", s.lines)
	}
}

func TestRemoteUpdate(t *testing.T) {
	s := &fakeSession{tree: "/", updates: make(chan struct{}, 1)}
	m := newModel(s)

	s.tree = "/\n└── remote"
	s.updates <- struct{}{}

	msg := waitForUpdate(s)()
	next, cmd := m.Update(msg)
	if cmd == nil {
		t.Errorf("expected the model to keep waiting for updates\n")
	}
	if !strings.Contains(next.(model).View(), "remote") {
		t.Errorf("view was not refreshed:\n%s\n", next.(model).View())
	}
}

func TestViewTruncates(t *testing.T) {
	s := &fakeSession{tree: "/\n└── " + strings.Repeat("x", 100), updates: make(chan struct{})}
	m := newModel(s)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 20, Height: 40})

	for _, line := range strings.Split(next.(model).View(), "\n") {
		if strings.Contains(line, "xxxx") && !strings.HasSuffix(line, "…") {
			t.Errorf("long line was not truncated: %q\n", line)
		}
	}
}
