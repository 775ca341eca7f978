// Package help renders the keyboard and command reference.
package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-center/internal/keys"
	"github.com/nhle/notification-center/internal/theme"
	"github.com/nhle/notification-center/internal/ui/command"
)

var legend = []string{
	"● unread   ○ read   📌 pinned (always shown above the list)",
	"Pinned notifications do not count toward the unread badge.",
}

type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.ShowAll = true
	m := Model{keys: keys, help: h}
	m.SetSize(width, height)
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

func (m Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)

	var commands []string
	for _, c := range command.Known {
		commands = append(commands, ":"+strings.TrimSpace(c))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title.Render("Notification Center Shortcuts"),
		"",
		m.help.View(m.keys),
		"",
		theme.SectionStyle.Render("Commands"),
		theme.HelpStyle.Render(strings.Join(commands, "  ")),
		"",
		theme.SectionStyle.Render("Legend"),
		theme.HelpStyle.Render(strings.Join(legend, "\n")),
	)

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = max(width-8, 0)
}
