// Package app is the root Bubble Tea model of the terminal notification
// center.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/notification-center/internal/center"
	"github.com/nhle/notification-center/internal/gateway"
	"github.com/nhle/notification-center/internal/keys"
	"github.com/nhle/notification-center/internal/mutation"
	"github.com/nhle/notification-center/internal/projection"
	appsync "github.com/nhle/notification-center/internal/sync"
	"github.com/nhle/notification-center/internal/theme"
	"github.com/nhle/notification-center/internal/ui"
	"github.com/nhle/notification-center/internal/ui/command"
	"github.com/nhle/notification-center/internal/ui/detail"
	helpview "github.com/nhle/notification-center/internal/ui/help"
	"github.com/nhle/notification-center/internal/ui/notiflist"
)

// mutationTimeout bounds a single mark-read or delete round trip.
const mutationTimeout = 30 * time.Second

// stateChangedMsg is delivered whenever the center's state may have changed.
type stateChangedMsg struct{}

// mutationResultMsg reports how an optimistic mutation resolved.
type mutationResultMsg struct {
	result mutation.Result
	err    error
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewHelp
	ViewCommand
)

// Model is the root Bubble Tea model that manages view routing, layout
// and the link between the notification center and its views.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	center       *center.Center
	poller       *appsync.Poller
	keys         *keys.KeyMap
	list         notiflist.Model
	detail       detail.Model
	helpView     helpview.Model
	commandView  command.Model

	changes     <-chan struct{}
	unsubscribe func()

	ready            bool
	banner           string
	bannerIsError    bool
	authErrorMessage string
}

// New creates the root model. The poller must target c.
func New(c *center.Center, p *appsync.Poller) Model {
	k := keys.DefaultKeyMap()
	changes, unsubscribe := c.Subscribe()

	m := Model{
		currentView: ViewList,
		center:      c,
		poller:      p,
		keys:        k,
		list:        notiflist.New(k, 80, 24),
		detail:      detail.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		changes:     changes,
		unsubscribe: unsubscribe,
	}
	m.list.SetState(c.State())
	return m
}

// Init starts background polling and listens for state changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.poller.Start(),
		m.waitForChange(),
	)
}

func (m Model) waitForChange() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return stateChangedMsg{}
	}
}

// Close releases the state subscription and stops polling.
func (m Model) Close() {
	m.poller.Stop()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.list.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		return m, nil

	case stateChangedMsg:
		return m, tea.Batch(m.syncState(), m.waitForChange())

	case appsync.SyncResultMsg:
		m.handleSyncResult(msg)
		return m, m.poller.WaitForNextResult()

	case mutationResultMsg:
		m.handleMutationResult(msg)
		return m, m.syncState()

	case notiflist.OpenMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		n := msg.Notification
		m.detail.SetNotification(&n)
		return m, nil

	case notiflist.MarkReadMsg:
		return m, tea.Batch(m.markRead(msg.ID), m.syncState())

	case notiflist.DeleteMsg:
		if m.currentView == ViewDetail {
			m.currentView = ViewList
		}
		return m, tea.Batch(m.deleteNotification(msg.ID), m.syncState())

	case notiflist.SearchMsg:
		m.center.SetSearch(msg.Query)
		return m, m.syncState()

	case notiflist.CycleFilterMsg:
		m.center.SetStatusFilter(m.center.State().StatusFilter.Next())
		return m, m.syncState()

	case notiflist.ClearFiltersMsg:
		m.center.SetSearch("")
		m.center.SetStatusFilter(projection.StatusAll)
		return m, m.syncState()

	case notiflist.PageMsg:
		if msg.Delta > 0 {
			m.center.NextPage()
		} else {
			m.center.PrevPage()
		}
		return m, m.syncState()

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(msg)

	case command.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that work regardless of the active view.
// Keys are left to the active view while it is taking text input.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		m.Close()
		return tea.Quit, true
	}

	typing := m.currentView == ViewCommand ||
		(m.currentView == ViewList && m.list.Searching())
	if typing {
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Quit) && m.currentView == ViewList:
		m.Close()
		return tea.Quit, true

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil, true

	case key.Matches(msg, m.keys.Back) && m.currentView == ViewHelp:
		m.currentView = m.previousView
		return nil, true

	case msg.String() == ":":
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m.commandView.Focus(), true

	case key.Matches(msg, m.keys.Refresh):
		m.setBanner("refreshing...", false)
		return m.poller.RefreshNow(), true
	}

	return nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.list, cmd = m.list.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// syncState pulls the current center state into the views.
func (m *Model) syncState() tea.Cmd {
	st := m.center.State()
	cmd := m.list.SetState(st)

	if id := m.detail.ID(); id != "" {
		if n, _, _, ok := m.center.Snapshot().Find(id); ok {
			m.detail.SetNotification(&n)
		} else {
			m.detail.SetNotification(nil)
		}
	}
	return cmd
}

func (m Model) markRead(id string) tea.Cmd {
	c := m.center
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()
		res, err := c.MarkRead(ctx, id)
		return mutationResultMsg{result: res, err: err}
	}
}

func (m Model) deleteNotification(id string) tea.Cmd {
	c := m.center
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()
		res, err := c.DeleteNotification(ctx, id)
		return mutationResultMsg{result: res, err: err}
	}
}

func (m *Model) handleSyncResult(msg appsync.SyncResultMsg) {
	switch {
	case msg.AuthError != nil:
		m.authErrorMessage = msg.AuthError.Message
	case msg.Error != nil:
		m.setBanner("refresh failed, showing cached notifications", true)
	default:
		m.authErrorMessage = ""
		if msg.NewCount > 0 {
			m.setBanner(fmt.Sprintf("%d new notification(s)", msg.NewCount), false)
		} else if m.bannerIsError || m.banner == "refreshing..." {
			m.setBanner("", false)
		}
	}
}

func (m *Model) handleMutationResult(msg mutationResultMsg) {
	if msg.err == nil {
		if msg.result.NotFound {
			m.setBanner("notification was already gone on the server", false)
		}
		return
	}

	if errors.Is(msg.err, context.DeadlineExceeded) {
		m.setBanner("server is slow, change will apply when it answers", false)
		return
	}

	if gateway.IsAuthError(msg.err) {
		m.authErrorMessage = "Authentication expired. Run `notifcenter login` to update credentials."
	}

	verb := "update"
	var mf *mutation.MutationFailure
	if errors.As(msg.err, &mf) && mf.Op == mutation.OpDelete {
		verb = "delete"
	}
	m.setBanner(fmt.Sprintf("could not %s notification, change undone", verb), true)
}

func (m *Model) setBanner(text string, isError bool) {
	m.banner = text
	m.bannerIsError = isError
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	return m.layout.Frame(
		m.layout.Header(m.headerTitle(), m.syncStatus()),
		m.renderContent(),
		m.bannerLine(),
		m.layout.StatusBar(m.keyHints()),
	)
}

func (m Model) headerTitle() string {
	st := m.center.State()
	title := "Notifications"
	if st.UnreadCount > 0 {
		title += " " + theme.BadgeStyle.Render(fmt.Sprintf("%d", st.UnreadCount))
	}
	return title
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewDetail:
		return m.detail.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return m.list.View()
	}
}

// syncStatus returns a short string describing the refresh state.
func (m Model) syncStatus() string {
	st := m.center.State()
	status := m.poller.Status()

	switch {
	case st.IsLoading:
		return "loading..."
	case status.State == appsync.SyncRunning:
		return "syncing"
	case status.State == appsync.SyncError:
		return "⚠ offline"
	case st.LastSync.IsZero():
		return "never synced"
	default:
		suffix := ""
		if st.PendingMutations > 0 {
			suffix = fmt.Sprintf(" (%d pending)", st.PendingMutations)
		}
		return "synced " + st.LastSync.Local().Format("15:04:05") + suffix
	}
}

// bannerLine shows an auth problem ahead of any transient banner.
func (m Model) bannerLine() string {
	if m.authErrorMessage != "" {
		return m.layout.Banner(m.authErrorMessage, true)
	}
	return m.layout.Banner(m.banner, m.bannerIsError)
}

func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc cancel"
	case ViewDetail:
		return "esc back | r mark read | d delete | j/k scroll"
	default:
		return "q quit | ? help | r read | d delete | / search | f filter | h/l page | R refresh"
	}
}
