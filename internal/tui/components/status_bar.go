package components

import (
	"dcmview/internal/tui/styles"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StatusBar shows one line of text, with a spinner while a decode is pending
type StatusBar struct {
	text    string
	err     string
	style   lipgloss.Style
	spinner spinner.Model
	loading bool
}

func NewStatusBar() *StatusBar {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Theme.Help

	return &StatusBar{
		style:   styles.Theme.Help,
		spinner: s,
	}
}

// SetLoading starts or stops the spinner. Starting returns the first tick.
func (s *StatusBar) SetLoading(loading bool) tea.Cmd {
	was := s.loading
	s.loading = loading
	if loading && !was {
		return s.spinner.Tick
	}
	return nil
}

// Tick restarts the spinner animation
func (s *StatusBar) Tick() tea.Cmd {
	return s.spinner.Tick
}

func (s *StatusBar) Loading() bool {
	return s.loading
}

func (s *StatusBar) SetText(text string) {
	s.text = text
}

// SetError shows err after the text until cleared with nil
func (s *StatusBar) SetError(err error) {
	if err == nil {
		s.err = ""
		return
	}
	s.err = err.Error()
}

func (s *StatusBar) Update(msg tea.Msg) tea.Cmd {
	if s.loading {
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return cmd
	}
	return nil
}

func (s *StatusBar) View() string {
	if s.text == "" && s.err == "" && !s.loading {
		return ""
	}

	out := s.style.Render(s.text)
	if s.loading {
		out = s.style.Render(s.spinner.View() + " " + s.text)
	}
	if s.err != "" {
		out += "  " + styles.Theme.Error.Render(s.err)
	}
	return out
}
