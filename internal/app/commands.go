package app

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/notification-center/internal/projection"
	"github.com/nhle/notification-center/internal/ui/command"
)

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(cmd command.CommandMsg) tea.Cmd {
	switch cmd.Name {
	case "refresh", "sync", "r":
		m.setBanner("refreshing...", false)
		return m.poller.RefreshNow()

	case "quit", "q":
		m.Close()
		return tea.Quit

	case "filter", "f":
		f, err := projection.ParseStatusFilter(cmd.Arg)
		if err != nil {
			m.setBanner(err.Error(), true)
			return nil
		}
		m.center.SetStatusFilter(f)
		return m.syncState()

	case "search", "s":
		m.center.SetSearch(cmd.Arg)
		return m.syncState()

	case "clear":
		m.center.SetSearch("")
		m.center.SetStatusFilter(projection.StatusAll)
		return m.syncState()

	case "page", "p":
		n, err := strconv.Atoi(cmd.Arg)
		if err != nil {
			m.setBanner(fmt.Sprintf("invalid page %q", cmd.Arg), true)
			return nil
		}
		m.center.SetPage(n)
		return m.syncState()

	default:
		m.setBanner(fmt.Sprintf("unknown command %q", cmd.Name), true)
		return nil
	}
}
