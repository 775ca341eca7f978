package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-center/internal/keys"
	"github.com/nhle/notification-center/internal/model"
	"github.com/nhle/notification-center/internal/theme"
	"github.com/nhle/notification-center/internal/ui/notiflist"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// Model shows one notification in full.
type Model struct {
	notification *model.Notification
	viewport     viewport.Model
	keys         *keys.KeyMap
	width        int
	height       int
}

func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view. Mark-read and delete are
// forwarded with the list's messages so the parent handles them in one
// place.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.MarkRead):
			if m.notification != nil && !m.notification.IsRead {
				id := m.notification.ID
				return m, func() tea.Msg { return notiflist.MarkReadMsg{ID: id} }
			}
			return m, nil

		case key.Matches(msg, m.keys.Delete):
			if m.notification != nil {
				id := m.notification.ID
				return m, func() tea.Msg { return notiflist.DeleteMsg{ID: id} }
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.notification == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("Notification no longer exists")
	}
	return m.viewport.View()
}

func (m Model) renderContent() string {
	n := m.notification
	if n == nil {
		return ""
	}

	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(n.Title))

	state := "unread"
	if n.IsRead {
		state = "read"
	}
	badges := []string{theme.ReadStateStyle(n.IsRead).Render(state)}
	if n.IsPinned {
		badges = append(badges, lipgloss.NewStyle().Foreground(theme.ColorYellow).Render("pinned"))
	}
	sections = append(sections, strings.Join(badges, "  "), "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	if n.Category != "" {
		sections = append(sections, fmt.Sprintf("%s  %s",
			metaStyle.Render("Category:"), valStyle.Render(n.Category)))
	}
	if !n.CreatedAt.IsZero() {
		sections = append(sections, fmt.Sprintf("%s   %s",
			metaStyle.Render("Created:"), valStyle.Render(n.CreatedAt.Local().Format("2006-01-02 15:04"))))
	}
	if n.Link != "" {
		sections = append(sections, fmt.Sprintf("%s      %s",
			metaStyle.Render("Link:"), valStyle.Render(n.Link)))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	body := n.Body
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No content")
	}
	sections = append(sections, body)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetNotification replaces the displayed notification. nil shows a
// placeholder, used when the item disappears while open.
func (m *Model) SetNotification(n *model.Notification) {
	keepScroll := m.notification != nil && n != nil && m.notification.ID == n.ID
	m.notification = n
	m.viewport.SetContent(m.renderContent())
	if !keepScroll {
		m.viewport.GotoTop()
	}
}

// ID returns the id of the displayed notification, if any.
func (m Model) ID() string {
	if m.notification == nil {
		return ""
	}
	return m.notification.ID
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	m.viewport.SetContent(m.renderContent())
}
