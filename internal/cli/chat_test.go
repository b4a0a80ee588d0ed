package cli

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantodev/oficinas-chat/internal/models"
	"github.com/phantodev/oficinas-chat/internal/sync"
)

func pressEnter(t *testing.T, m chatModel) chatModel {
	t.Helper()
	updated, _ := m.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	next, ok := updated.(chatModel)
	require.True(t, ok)
	return next
}

func deliver(t *testing.T, m chatModel, msg tea.Msg) chatModel {
	t.Helper()
	updated, _ := m.Update(msg)
	next, ok := updated.(chatModel)
	require.True(t, ok)
	return next
}

func TestChatFailedSendRestoresComposedText(t *testing.T) {
	m := newChatModel(nil, models.UserRecord("alice"), "Bob")
	m.input.SetValue("important text")

	m = pressEnter(t, m)
	assert.Equal(t, "", m.input.Value(), "input clears while the send is in flight")

	m = deliver(t, m, sendResultMsg{
		content: "important text",
		err:     &sync.SendError{Err: assert.AnError},
	})
	assert.Equal(t, "important text", m.input.Value(), "failed send hands the text back")
	assert.NotEmpty(t, m.status)
}

func TestChatFailedSendKeepsNewerDraft(t *testing.T) {
	m := newChatModel(nil, models.UserRecord("alice"), "Bob")
	m.input.SetValue("first")
	m = pressEnter(t, m)

	// The user started a new message before the failure came back.
	m.input.SetValue("second draft")
	m = deliver(t, m, sendResultMsg{content: "first", err: &sync.SendError{Err: assert.AnError}})
	assert.Equal(t, "second draft", m.input.Value())
	assert.NotEmpty(t, m.status)
}

func TestChatSuccessfulSendClearsInput(t *testing.T) {
	m := newChatModel(nil, models.UserRecord("alice"), "Bob")
	m.input.SetValue("hello")
	m = pressEnter(t, m)

	m = deliver(t, m, sendResultMsg{content: "hello"})
	assert.Equal(t, "", m.input.Value())
	assert.Empty(t, m.status)
}

func TestChatEnterIgnoresBlankInput(t *testing.T) {
	m := newChatModel(nil, models.UserRecord("alice"), "Bob")
	m.input.SetValue("   ")

	updated, cmd := m.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	next, ok := updated.(chatModel)
	require.True(t, ok)
	assert.Nil(t, cmd)
	assert.Equal(t, "   ", next.input.Value())
}
