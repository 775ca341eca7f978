package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestContentHeight(t *testing.T) {
	assert.Equal(t, 27, NewLayout(80, 30).ContentHeight())
	assert.Equal(t, 0, NewLayout(80, 2).ContentHeight())
}

func TestHeader_SpansWidth(t *testing.T) {
	l := NewLayout(60, 20)
	h := l.Header("Notifications", "synced")
	assert.Equal(t, 60, lipgloss.Width(h))
	assert.Contains(t, h, "Notifications")
	assert.Contains(t, h, "synced")
}

func TestBanner_EmptyText(t *testing.T) {
	l := NewLayout(40, 10)
	assert.Empty(t, l.Banner("", true))
	assert.Contains(t, l.Banner("could not delete", true), "could not delete")
}

func TestFrame_PinsStatusBar(t *testing.T) {
	l := NewLayout(40, 10)
	out := l.Frame("head", "body", "", "keys")
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 10)
	assert.Equal(t, "keys", strings.TrimSpace(lines[len(lines)-1]))
}
