package notiflist

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-center/internal/center"
	"github.com/nhle/notification-center/internal/keys"
	"github.com/nhle/notification-center/internal/model"
	"github.com/nhle/notification-center/internal/theme"
)

// OpenMsg asks the parent to show a notification in full.
type OpenMsg struct {
	Notification model.Notification
}

// MarkReadMsg asks the parent to mark a notification read.
type MarkReadMsg struct {
	ID string
}

// DeleteMsg asks the parent to delete a notification.
type DeleteMsg struct {
	ID string
}

// SearchMsg carries a committed search query. An empty query clears it.
type SearchMsg struct {
	Query string
}

type CycleFilterMsg struct{}

type ClearFiltersMsg struct{}

// PageMsg moves the visible page by Delta.
type PageMsg struct {
	Delta int
}

// Model is the notification list view. It renders whatever State it was
// last given and turns key presses into messages for the parent; it never
// talks to the center itself.
type Model struct {
	list        list.Model
	pages       paginator.Model
	keys        *keys.KeyMap
	state       center.State
	searchMode  bool
	searchInput textinput.Model
	width       int
	height      int
}

// New creates a new notification list model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-3)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowPagination(false)

	p := paginator.New()
	p.Type = paginator.Dots
	p.ActiveDot = lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("•")
	p.InactiveDot = lipgloss.NewStyle().Foreground(theme.ColorSubtle).Render("•")

	si := textinput.New()
	si.Placeholder = "search notifications..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		pages:       p,
		keys:        k,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// SetState replaces the rendered notifications. Pinned items are listed
// first, followed by the visible page.
func (m *Model) SetState(st center.State) tea.Cmd {
	m.state = st

	items := make([]list.Item, 0, len(st.Pinned)+len(st.Notifications))
	for _, n := range st.Pinned {
		items = append(items, Item{Notification: n})
	}
	for _, n := range st.Notifications {
		items = append(items, Item{Notification: n})
	}

	idx := m.list.Index()
	cmd := m.list.SetItems(items)
	if idx >= len(items) {
		idx = len(items) - 1
	}
	if idx >= 0 {
		m.list.Select(idx)
	}

	m.pages.TotalPages = st.TotalPages
	m.pages.Page = st.Page - 1
	return cmd
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.searchInput.Blur()
		return m, emit(SearchMsg{Query: m.searchInput.Value()})

	case "esc":
		m.searchMode = false
		m.searchInput.Blur()
		m.searchInput.SetValue(m.state.Search)
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Open):
		if n, ok := m.Selected(); ok {
			return m, emit(OpenMsg{Notification: n})
		}
		return m, nil

	case key.Matches(msg, m.keys.MarkRead):
		if n, ok := m.Selected(); ok && !n.IsRead {
			return m, emit(MarkReadMsg{ID: n.ID})
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if n, ok := m.Selected(); ok {
			return m, emit(DeleteMsg{ID: n.ID})
		}
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.SetValue(m.state.Search)
		m.searchInput.CursorEnd()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.CycleFilter):
		return m, emit(CycleFilterMsg{})

	case key.Matches(msg, m.keys.ClearFilters):
		m.searchInput.Reset()
		return m, emit(ClearFiltersMsg{})

	case key.Matches(msg, m.keys.NextPage):
		return m, emit(PageMsg{Delta: 1})

	case key.Matches(msg, m.keys.PrevPage):
		return m, emit(PageMsg{Delta: -1})
	}

	// Delegate to the list for cursor movement.
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// View renders the filter bar, the list and the page indicator.
func (m Model) View() string {
	top := m.renderFilterBar()
	if m.searchMode {
		top = lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
	}

	body := m.list.View()
	if len(m.list.Items()) == 0 {
		body = m.renderEmptyState()
	}

	footer := ""
	if m.state.TotalPages > 1 {
		footer = lipgloss.NewStyle().PaddingLeft(2).Render(
			fmt.Sprintf("%s  page %d/%d", m.pages.View(), m.state.Page, m.state.TotalPages),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left, top, body, footer)
}

func (m Model) renderFilterBar() string {
	status := string(m.state.StatusFilter)
	if status == "" {
		status = "all"
	}
	bar := theme.FilterStyle(status).Render(status)
	if m.state.Search != "" {
		bar += theme.HelpStyle.Render(fmt.Sprintf(" search: %q", m.state.Search))
	}
	bar += theme.HelpStyle.Render(fmt.Sprintf("  %d matching", m.state.FilteredCount))
	return bar
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height-3).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.state.IsLoading:
		return style.Render("Loading notifications...")
	case m.state.Search != "" || (m.state.StatusFilter != "" && m.state.StatusFilter != "all"):
		return style.Render("No matching notifications.\nPress c to clear filters.")
	default:
		return style.Render("You're all caught up.")
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-3)
	m.searchInput.Width = width - 4
}
