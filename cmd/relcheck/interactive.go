package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectSource modelState = iota
	stateSelectTarget
	stateShowResult
)

type interactiveModel struct {
	u        *universe
	filter   textinput.Model
	visible  []string
	selected int
	source   string
	target   string
	result   string
	state    modelState
}

func newInteractiveModel(u *universe) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "filter types"
	ti.Prompt = "/ "
	ti.Width = 40
	ti.Focus()

	m := &interactiveModel{u: u, filter: ti, state: stateSelectSource}
	m.refilter()
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) refilter() {
	needle := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for _, n := range m.u.names {
		if needle == "" || strings.Contains(strings.ToLower(n), needle) {
			m.visible = append(m.visible, n)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = 0
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "up":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down":
			if m.selected < len(m.visible)-1 {
				m.selected++
			}
			return m, nil

		case "enter":
			switch m.state {
			case stateSelectSource:
				if len(m.visible) > 0 {
					m.source = m.visible[m.selected]
					m.state = stateSelectTarget
					m.filter.SetValue("")
					m.refilter()
				}

			case stateSelectTarget:
				if len(m.visible) > 0 {
					m.target = m.visible[m.selected]
					src, _ := m.u.reg.ByName(m.source)
					dst, _ := m.u.reg.ByName(m.target)
					m.result = describePair(m.u, src, dst)
					m.state = stateShowResult
				}

			case stateShowResult:
				m.state = stateSelectSource
				m.source = ""
				m.target = ""
				m.result = ""
				m.filter.SetValue("")
				m.refilter()
			}
			return m, nil

		case "esc":
			switch m.state {
			case stateSelectTarget:
				m.state = stateSelectSource
				m.source = ""
			case stateShowResult:
				m.state = stateSelectTarget
				m.target = ""
				m.result = ""
			default:
				return m, tea.Quit
			}
			m.filter.SetValue("")
			m.refilter()
			return m, nil
		}
	}

	if m.state != stateShowResult {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.refilter()
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("relcheck"))
	if m.source != "" {
		b.WriteString("  ")
		b.WriteString(typeStyle.Render(m.source))
		b.WriteString(" -> ")
		if m.target != "" {
			b.WriteString(typeStyle.Render(m.target))
		} else {
			b.WriteString("?")
		}
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectSource, stateSelectTarget:
		if m.state == stateSelectSource {
			b.WriteString("Select the source type:\n")
		} else {
			b.WriteString("Select the target type:\n")
		}
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		for i, n := range m.visible {
			line := "  " + n
			if i == m.selected {
				line = selectedStyle.Render("> " + n)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		if len(m.visible) == 0 {
			b.WriteString(errorStyle.Render("  no matching types"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter choose • esc back • ctrl+c quit"))

	case stateShowResult:
		for _, line := range strings.Split(strings.TrimRight(m.result, "\n"), "\n") {
			switch {
			case strings.Contains(line, "no relation") || strings.HasSuffix(line, "no"):
				b.WriteString(errorStyle.Render(line))
			case strings.Contains(line, "yes"):
				b.WriteString(okStyle.Render(line))
			default:
				b.WriteString(line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter new query • esc retarget • ctrl+c quit"))
	}

	return b.String()
}

func runInteractive(u *universe) error {
	p := tea.NewProgram(newInteractiveModel(u), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
