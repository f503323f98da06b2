package review

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/tablescribe/internal/tabular"
)

func testExtract(t *testing.T) *tabular.Extract {
	t.Helper()
	e, err := tabular.ParseCSV("batch,weight\nB1,1.5\nB2,\n")
	require.NoError(t, err)
	return e
}

func press(m tea.Model, key tea.KeyMsg) (Model, tea.Cmd) {
	next, cmd := m.Update(key)
	return next.(Model), cmd
}

func TestModel_View(t *testing.T) {
	m := New(testExtract(t), "Upload to people?")
	view := m.View()

	assert.Contains(t, view, "Upload to people?")
	assert.Contains(t, view, "2 rows: batch text, weight float")
	assert.Contains(t, view, "B2")
	assert.Contains(t, view, "1.5")
}

func TestModel_Confirm(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("y")},
		{Type: tea.KeyEnter},
	} {
		m, cmd := press(New(testExtract(t), "t"), key)
		assert.True(t, m.Confirmed(), key.String())
		require.NotNil(t, cmd)
		assert.Equal(t, tea.Quit(), cmd())
		assert.Empty(t, m.View())
	}
}

func TestModel_Decline(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("n")},
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyEsc},
		{Type: tea.KeyCtrlC},
	} {
		m, cmd := press(New(testExtract(t), "t"), key)
		assert.False(t, m.Confirmed(), key.String())
		require.NotNil(t, cmd)
	}
}

func TestModel_ScrollKeepsWaiting(t *testing.T) {
	m, _ := press(New(testExtract(t), "t"), tea.KeyMsg{Type: tea.KeyDown})
	assert.False(t, m.Confirmed())
	assert.NotEmpty(t, m.View())
}
