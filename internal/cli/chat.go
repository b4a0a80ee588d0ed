package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"golang.org/x/term"

	"github.com/phantodev/oficinas-chat/internal/models"
	"github.com/phantodev/oficinas-chat/internal/sync"
)

const refreshInterval = 200 * time.Millisecond

// Theme holds the color scheme for the chat view.
type Theme struct {
	Mine      lipgloss.Color
	Theirs    lipgloss.Color
	Separator lipgloss.Color
	Error     lipgloss.Color
	Hint      lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Mine:      lipgloss.Color("#00D787"), // green
	Theirs:    lipgloss.Color("#5FAFD7"), // light blue
	Separator: lipgloss.Color("#6C6C6C"), // dim gray
	Error:     lipgloss.Color("#FF005F"), // red
	Hint:      lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) mineStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Mine).Bold(true)
}

func (t Theme) theirsStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Theirs).Bold(true)
}

func (t Theme) separatorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Separator)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

var chatCmd = &cobra.Command{
	Use:   "chat <user-id | conversation-id>",
	Short: "Open the interactive chat view for a conversation",
	Long: `Open the interactive chat view. New messages appear as they arrive over
the live feed, and opening the view marks the conversation read.

Pass a user id to chat with that user (the conversation is created when
needed), or a full conversation id.

Keys:
  enter    send the composed message
  pgup     load older messages
  ctrl+r   retry after an error
  esc      quit

Examples:
  oficinas-chat chat bob
  oficinas-chat chat conversation:c123`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

// tickMsg triggers re-rendering from the latest view snapshot.
type tickMsg time.Time

// sendResultMsg carries the outcome of an asynchronous send. The
// composed content travels with it so a failed send can hand the text
// back to the input.
type sendResultMsg struct {
	content string
	err     error
}

// loadResultMsg carries the outcome of an asynchronous load-more.
type loadResultMsg struct{ err error }

// retryResultMsg carries the outcome of a retry.
type retryResultMsg struct{ err error }

// chatModel is the bubbletea model for the chat view. It is a thin
// consumer: all synchronization state lives in the ThreadView, and the
// model re-reads its snapshot on every tick.
type chatModel struct {
	thread *sync.ThreadView
	me     surrealmodels.RecordID
	title  string

	input    textinput.Model
	spin     spinner.Model
	theme    Theme
	width    int
	height   int
	status   string
	quitting bool
}

// newChatModel creates the chat model bound to an open thread view.
func newChatModel(thread *sync.ThreadView, me surrealmodels.RecordID, title string) chatModel {
	input := textinput.New()
	input.Placeholder = "Type a message"
	input.Focus()

	spin := spinner.New(spinner.WithSpinner(spinner.Dot))

	return chatModel{
		thread: thread,
		me:     me,
		title:  title,
		input:  input,
		spin:   spin,
		theme:  defaultTheme,
	}
}

// Init returns the initial commands (ticker, caret blink, spinner).
func (m chatModel) Init() tea.Cmd {
	return tea.Batch(chatTick(), m.input.Focus(), m.spin.Tick)
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			content := m.input.Value()
			if strings.TrimSpace(content) == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.status = ""
			return m, chatSend(m.thread, content)
		case "pgup":
			return m, chatLoadMore(m.thread)
		case "ctrl+r":
			if m.thread.State() == sync.StateErrored {
				return m, chatRetry(m.thread)
			}
			return m, nil
		}

	case tickMsg:
		return m, chatTick()

	case sendResultMsg:
		if msg.err != nil {
			m.status = humanError(msg.err)
			// Hand the text back so the user can resubmit, unless a
			// new message is already being composed.
			if m.input.Value() == "" {
				m.input.SetValue(msg.content)
			}
		}
		return m, nil

	case loadResultMsg:
		if msg.err != nil {
			m.status = humanError(msg.err)
		}
		return m, nil

	case retryResultMsg:
		if msg.err != nil {
			m.status = humanError(msg.err)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat display.
func (m chatModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string from the current snapshot.
func (m chatModel) renderContent() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.theme.theirsStyle().Render(m.title) + "\n\n")

	flags := m.thread.Flags()
	if flags.IsError {
		b.WriteString(m.theme.errorStyle().Render("✗ "+humanError(m.thread.Err())) + "\n")
		b.WriteString(m.theme.hintStyle().Render("Press Ctrl+R to retry") + "\n")
		return b.String()
	}
	if flags.IsLoading {
		b.WriteString(m.spin.View() + " Loading conversation...\n")
		return b.String()
	}

	if m.thread.HasNextPage() {
		b.WriteString(m.theme.hintStyle().Render("-- PgUp for older messages --") + "\n")
	}
	if flags.IsFetchingMore {
		b.WriteString(m.spin.View() + " Loading older messages...\n")
	}

	b.WriteString(m.renderMessages())
	b.WriteString("\n")

	if flags.IsSending {
		b.WriteString(m.spin.View() + " Sending...\n")
	}
	if m.status != "" {
		b.WriteString(m.theme.errorStyle().Render(m.status) + "\n")
	}

	b.WriteString(m.input.View() + "\n")
	b.WriteString(m.theme.hintStyle().Render("enter: send  •  esc: quit") + "\n")
	return b.String()
}

// renderMessages renders the thread with day separators.
func (m chatModel) renderMessages() string {
	messages := m.thread.Snapshot()
	if len(messages) == 0 {
		return m.theme.hintStyle().Render("No messages yet. Say hello!") + "\n"
	}

	now := nowFunc()
	var b strings.Builder
	var prev time.Time
	for i, msg := range messages {
		if i == 0 || !sameDay(prev, msg.CreatedAt) {
			b.WriteString(m.theme.separatorStyle().Render("── "+dayLabel(msg.CreatedAt, now)+" ──") + "\n")
		}
		prev = msg.CreatedAt

		sender := m.theme.theirsStyle().Render(senderLabel(msg))
		if msg.Sender.String() == m.me.String() {
			sender = m.theme.mineStyle().Render("you")
		}
		b.WriteString(fmt.Sprintf("%s %s  %s\n",
			m.theme.separatorStyle().Render(clockTime(msg.CreatedAt)), sender, msg.Content))
	}
	return b.String()
}

// senderLabel is the short display label of a foreign sender.
func senderLabel(msg models.Message) string {
	return fmt.Sprintf("%v", msg.Sender.ID)
}

// humanError prefers the typed errors' human-readable messages.
func humanError(err error) string {
	if err == nil {
		return ""
	}
	var fetchErr *sync.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Message()
	}
	var sendErr *sync.SendError
	if errors.As(err, &sendErr) {
		return sendErr.Message()
	}
	return err.Error()
}

func chatTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// chatSend sends the composed message off the Update loop.
func chatSend(thread *sync.ThreadView, content string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return sendResultMsg{content: content, err: thread.Send(ctx, content)}
	}
}

// chatLoadMore pulls the next history page off the Update loop.
func chatLoadMore(thread *sync.ThreadView) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return loadResultMsg{err: thread.LoadMore(ctx)}
	}
}

// chatRetry re-opens an errored view.
func chatRetry(thread *sync.ThreadView) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return retryResultMsg{err: thread.Retry(ctx)}
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	me, _, err := orch.CurrentUser(ctx)
	if err != nil {
		return err
	}

	conv := parseConversationID(args[0])
	title := args[0]
	if !strings.HasPrefix(args[0], "conversation:") {
		conv, err = orch.ResolveConversation(ctx, parseUserID(args[0]))
		if err != nil {
			return err
		}
		title = "Chat with " + args[0]
	}

	thread := orch.ThreadView(conv)
	if err := thread.Open(ctx); err != nil {
		return err
	}
	defer thread.Close(context.Background())

	// no terminal: dump the current transcript once and exit
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return printTranscript(thread, me)
	}

	model := newChatModel(thread, me, title)
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}

// printTranscript renders the thread without the interactive UI.
func printTranscript(thread *sync.ThreadView, me surrealmodels.RecordID) error {
	now := nowFunc()
	var prev time.Time
	for i, msg := range thread.Snapshot() {
		if i == 0 || !sameDay(prev, msg.CreatedAt) {
			fmt.Printf("-- %s --\n", dayLabel(msg.CreatedAt, now))
		}
		prev = msg.CreatedAt

		sender := senderLabel(msg)
		if msg.Sender.String() == me.String() {
			sender = "you"
		}
		fmt.Printf("%s %s  %s\n", clockTime(msg.CreatedAt), sender, msg.Content)
	}
	return nil
}
