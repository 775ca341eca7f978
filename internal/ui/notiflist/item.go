package notiflist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-center/internal/model"
	"github.com/nhle/notification-center/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

func (i Item) FilterValue() string { return i.Notification.Title }

func (i Item) Title() string { return i.Notification.Title }

func (i Item) Description() string {
	parts := []string{i.Notification.Category, relativeTime(i.Notification.CreatedAt, time.Now())}
	return strings.Join(parts, " | ")
}

// ItemDelegate renders one notification per line.
type ItemDelegate struct{}

func (d ItemDelegate) Height() int { return 1 }

func (d ItemDelegate) Spacing() int { return 0 }

func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single list item line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	fmt.Fprint(w, renderLine(it.Notification, index == m.Index(), time.Now()))
}

func renderLine(n model.Notification, selected bool, now time.Time) string {
	marker := theme.ReadStateStyle(n.IsRead).Render(readMarker(n.IsRead))

	pin := ""
	if n.IsPinned {
		pin = lipgloss.NewStyle().Foreground(theme.ColorYellow).Render("📌 ")
	}

	category := ""
	if n.Category != "" {
		category = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Render("[" + n.Category + "] ")
	}

	when := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(n.CreatedAt, now))

	line := fmt.Sprintf("%s %s%s%s  %s", marker, pin, category, n.Title, when)

	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

func readMarker(read bool) string {
	if read {
		return "○"
	}
	return "●"
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}
