// Package chat provides the single conversation view of the TUI.
package chat

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/papersoul/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/papersoul/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/papersoul/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/papersoul/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/papersoul/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driving"
)

// Rows taken by the header, input box and status bar.
const chromeHeight = 6

// View streams a conversation with one character into a scrolling transcript.
type View struct {
	styles   *styles.Styles
	keymap   *keymap.KeyMap
	chat     driving.ChatService
	sessions driving.SessionService

	ctx     context.Context
	session domain.Session
	profile domain.Profile

	history   []domain.Message
	useMemory bool

	// In-flight request state.
	seq     int
	cancel  context.CancelFunc
	stream  driving.ReplyStream
	pending string
	partial strings.Builder

	viewport viewport.Model
	input    *input.ChatInput
	status   *status.Bar
	width    int
	height   int
}

// NewView creates a chat view for a session and its character.
func NewView(
	s *styles.Styles,
	chat driving.ChatService,
	sessions driving.SessionService,
	session domain.Session,
	profile domain.Profile,
	useMemory bool,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	km := keymap.DefaultKeyMap()
	bar := status.NewBar(s, km)
	bar.SetMemory(useMemory)

	return &View{
		styles:    s,
		keymap:    km,
		chat:      chat,
		sessions:  sessions,
		ctx:       context.Background(),
		session:   session,
		profile:   profile,
		useMemory: useMemory,
		viewport:  viewport.New(80, 18),
		input:     input.NewChatInput(s),
		status:    bar,
		width:     80,
		height:    24,
	}
}

// WithContext sets the parent context of every request.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the session history and starts the cursor.
func (v *View) Init() tea.Cmd {
	return tea.Batch(v.input.Init(), v.loadHistory())
}

func (v *View) loadHistory() tea.Cmd {
	ctx, id := v.ctx, v.session.ID
	return func() tea.Msg {
		turns, err := v.sessions.History(ctx, id)
		return messages.HistoryLoaded{Turns: turns, Err: err}
	}
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)

	case messages.HistoryLoaded:
		if msg.Err != nil {
			v.status.SetError(msg.Err.Error())
			return v, nil
		}
		v.history = domain.Messages(msg.Turns)
		v.refresh()
		return v, nil

	case messages.StreamStarted:
		if msg.Seq != v.seq || !v.Generating() {
			if msg.Stream != nil {
				_ = msg.Stream.Close()
			}
			return v, nil
		}
		if msg.Err != nil {
			v.fail(msg.Err)
			return v, nil
		}
		v.stream = msg.Stream
		v.status.SetStage(msg.Stream.Stage())
		return v, v.next(msg.Stream)

	case messages.FragmentReceived:
		if msg.Stream != v.stream {
			return v, nil
		}
		v.partial.WriteString(msg.Text)
		v.status.SetStage(msg.Stream.Stage())
		v.refresh()
		return v, v.next(msg.Stream)

	case messages.ReplyCompleted:
		if msg.Stream != v.stream {
			return v, nil
		}
		v.complete(msg.Reply, msg.Err)
		return v, nil

	case messages.ReplyFailed:
		if msg.Stream != v.stream {
			return v, nil
		}
		v.fail(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return v, cmd
}

func (v *View) handleKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	switch {
	case keymap.Matches(keyStr, v.keymap.Quit):
		v.abandon()
		return v, tea.Quit

	case keymap.Matches(keyStr, v.keymap.Help):
		v.status.ToggleHelp()
		return v, nil

	case keymap.Matches(keyStr, v.keymap.ScrollUp):
		v.viewport.HalfPageUp()
		return v, nil

	case keymap.Matches(keyStr, v.keymap.ScrollDown):
		v.viewport.HalfPageDown()
		return v, nil
	}

	if v.Generating() {
		if keymap.Matches(keyStr, v.keymap.Cancel) {
			v.abandon()
			v.status.SetNotice("Reply stopped, nothing saved")
			v.refresh()
		}
		return v, nil
	}

	switch {
	case keymap.Matches(keyStr, v.keymap.ToggleMemory):
		v.useMemory = !v.useMemory
		v.status.SetMemory(v.useMemory)
		return v, nil

	case keymap.Matches(keyStr, v.keymap.Send):
		text := strings.TrimSpace(v.input.Value())
		if text == "" {
			return v, nil
		}
		v.input.Reset()
		return v, v.send(text)
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// send starts a streamed reply to text.
func (v *View) send(text string) tea.Cmd {
	v.seq++
	seq := v.seq
	ctx, cancel := context.WithCancel(v.ctx)
	v.cancel = cancel
	v.pending = text
	v.partial.Reset()
	v.status.SetState(status.StateGenerating)
	v.status.SetStage(domain.StageRetrievingContext)
	v.refresh()

	req := domain.ChatRequest{
		SessionID: v.session.ID,
		RoleID:    v.session.RoleID,
		History:   append([]domain.Message(nil), v.history...),
		UserText:  text,
		UseMemory: v.useMemory,
	}
	return func() tea.Msg {
		stream, err := v.chat.RespondStream(ctx, req)
		return messages.StreamStarted{Seq: seq, Stream: stream, Err: err}
	}
}

// next pulls one fragment, finalising the reply at the end of the stream.
func (v *View) next(stream driving.ReplyStream) tea.Cmd {
	ctx := v.ctx
	return func() tea.Msg {
		text, err := stream.Next()
		switch {
		case errors.Is(err, io.EOF):
			reply, ferr := stream.Finalize(ctx)
			_ = stream.Close()
			return messages.ReplyCompleted{Stream: stream, Reply: reply, Err: ferr}
		case err != nil:
			_ = stream.Close()
			return messages.ReplyFailed{Stream: stream, Err: err}
		default:
			return messages.FragmentReceived{Stream: stream, Text: text}
		}
	}
}

func (v *View) complete(reply string, err error) {
	if err == nil || errors.Is(err, domain.ErrPersistence) {
		v.history = append(v.history,
			domain.Message{Role: domain.RoleUser, Content: v.pending},
			domain.Message{Role: domain.RoleAssistant, Content: reply},
		)
	}
	v.reset()
	if err != nil {
		v.status.SetError(err.Error())
	} else {
		v.status.SetState(status.StateReady)
	}
	v.refresh()
}

func (v *View) fail(err error) {
	v.reset()
	v.status.SetError(err.Error())
	v.refresh()
}

// abandon drops the request in flight. The exchange is not persisted.
func (v *View) abandon() {
	if v.stream != nil {
		_ = v.stream.Close()
	}
	v.reset()
	v.status.SetState(status.StateReady)
}

func (v *View) reset() {
	if v.cancel != nil {
		v.cancel()
	}
	v.cancel = nil
	v.stream = nil
	v.pending = ""
	v.partial.Reset()
}

// Generating reports whether a reply is in flight.
func (v *View) Generating() bool {
	return v.cancel != nil
}

// History returns the conversation shown so far.
func (v *View) History() []domain.Message {
	return v.history
}

// UseMemory reports whether long-term memory is enabled.
func (v *View) UseMemory() bool {
	return v.useMemory
}

// Status returns the status bar.
func (v *View) Status() *status.Bar {
	return v.status
}

// SetDimensions resizes the view.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.viewport.Width = width
	vh := height - chromeHeight
	if vh < 3 {
		vh = 3
	}
	v.viewport.Height = vh
	v.input.SetWidth(width)
	v.status.SetWidth(width)
	v.refresh()
}

// refresh re-renders the transcript and keeps it scrolled to the bottom.
func (v *View) refresh() {
	v.viewport.SetContent(v.transcript())
	v.viewport.GotoBottom()
}

func (v *View) transcript() string {
	wrap := lipgloss.NewStyle().Width(max(v.width-2, 20))
	var b strings.Builder
	write := func(role, content string) {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if role == domain.RoleAssistant {
			b.WriteString(v.styles.Agent.Render(v.profile.Name()))
		} else {
			b.WriteString(v.styles.User.Render("You"))
		}
		b.WriteString("\n")
		b.WriteString(wrap.Render(content))
	}

	for _, m := range v.history {
		write(m.Role, m.Content)
	}
	if v.pending != "" {
		write(domain.RoleUser, v.pending)
		if v.partial.Len() > 0 {
			write(domain.RoleAssistant, v.partial.String())
		}
	}
	if b.Len() == 0 {
		return v.styles.Muted.Render("No messages yet. Say hello to " + v.profile.Name() + ".")
	}
	return b.String()
}

// View renders the chat view.
func (v *View) View() string {
	title := v.profile.Name()
	if v.profile.BookTitle != "" {
		title += " · " + v.profile.BookTitle
	}
	header := v.styles.Title.Render(title) + "  " + v.styles.Muted.Render(v.session.Name)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		v.styles.Transcript.Render(v.viewport.View()),
		v.input.View(),
		v.status.View(),
	)
}
