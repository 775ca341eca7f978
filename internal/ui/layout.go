package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-center/internal/theme"
)

// Layout splits the terminal into a header, content area, optional banner
// row and status bar.
type Layout struct {
	Width  int
	Height int
}

func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight is the space left for the active view. One row each is
// reserved for the header, the banner and the status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-3, 0)
}

// Header renders the title on the left and the sync status on the right.
func (l Layout) Header(title, status string) string {
	left := theme.HeaderStyle.Render(title)
	right := theme.HeaderStyle.Render(status)
	gap := l.Width - lipgloss.Width(left) - lipgloss.Width(right)
	return left + fill(theme.HeaderStyle, gap) + right
}

// Banner renders a one-line message, or an empty row when text is empty.
func (l Layout) Banner(text string, isError bool) string {
	if text == "" {
		return ""
	}
	style := theme.InfoBannerStyle
	if isError {
		style = theme.ErrorStyle
	}
	return style.MaxWidth(l.Width).Render(text)
}

// StatusBar renders keyboard hints padded to the terminal width.
func (l Layout) StatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)
	return rendered + fill(theme.StatusBarStyle, l.Width-lipgloss.Width(rendered))
}

// Frame stacks the parts vertically. The content is padded so the status
// bar stays pinned to the last row.
func (l Layout) Frame(header, content, banner, statusBar string) string {
	content = lipgloss.NewStyle().Height(l.ContentHeight()).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, banner, statusBar)
}

func fill(style lipgloss.Style, width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Width(width).
		Background(style.GetBackground()).
		Render("")
}
