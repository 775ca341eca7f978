package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	assert.Equal(t, CommandMsg{Name: "refresh"}, Parse("  refresh "))
	assert.Equal(t, CommandMsg{Name: "filter", Arg: "unread"}, Parse("Filter unread"))
	assert.Equal(t, CommandMsg{Name: "search", Arg: "build failed"}, Parse("search   build failed"))
	assert.Equal(t, CommandMsg{}, Parse(""))
}

func TestUpdate_EnterEmitsParsedCommand(t *testing.T) {
	m := New(80, 24)
	m.Focus()
	for _, r := range "page 3" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, CommandMsg{Name: "page", Arg: "3"}, cmd())
	assert.Empty(t, m.input.Value())
}

func TestUpdate_EscCancels(t *testing.T) {
	m := New(80, 24)
	m.Focus()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, CancelMsg{}, cmd())
}
