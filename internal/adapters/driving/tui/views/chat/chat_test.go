package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/papersoul/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/papersoul/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driving"
)

type fakeStream struct {
	mu        sync.Mutex
	fragments []string
	pos       int
	finalErr  error
	nextErr   error
	closed    bool
	finalized bool
}

func (s *fakeStream) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", domain.ErrStreamClosed
	}
	if s.pos >= len(s.fragments) {
		if s.nextErr != nil {
			return "", s.nextErr
		}
		return "", io.EOF
	}
	s.pos++
	return s.fragments[s.pos-1], nil
}

func (s *fakeStream) Finalize(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = true
	return strings.Join(s.fragments, ""), s.finalErr
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) Stage() domain.Stage {
	return domain.StageGenerating
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeChat struct {
	stream *fakeStream
	err    error
	reqs   []domain.ChatRequest
}

func (c *fakeChat) Respond(context.Context, domain.ChatRequest) (string, error) {
	return "", errors.New("not used")
}

func (c *fakeChat) RespondStream(_ context.Context, req domain.ChatRequest) (driving.ReplyStream, error) {
	c.reqs = append(c.reqs, req)
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

type fakeSessions struct {
	driving.SessionService
	turns []domain.Turn
	err   error
}

func (s *fakeSessions) History(context.Context, string) ([]domain.Turn, error) {
	return s.turns, s.err
}

var (
	testSession = domain.Session{ID: "s1", Name: "evening talk", RoleID: "lin", CorpusID: "salt-road"}
	testProfile = domain.Profile{ID: "lin", DisplayName: "Lin Qing", BookTitle: "The Salt Road", CorpusID: "salt-road"}
)

func newTestView(chat *fakeChat, turns []domain.Turn) *View {
	v := NewView(nil, chat, &fakeSessions{turns: turns}, testSession, testProfile, true)
	v.SetDimensions(100, 30)
	v.Update(v.loadHistory()())
	return v
}

// drain runs commands until the view stops issuing them.
func drain(t *testing.T, v *View, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		require.Less(t, i, 100, "stream did not settle")
		_, cmd = v.Update(cmd())
	}
}

func typeAndSend(v *View, text string) tea.Cmd {
	v.input.SetValue(text)
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func TestView_LoadsHistory(t *testing.T) {
	turns := []domain.Turn{
		{Index: 0, Speaker: domain.SpeakerUser, Content: "Who are you?"},
		{Index: 1, Speaker: domain.SpeakerAgent, Content: "A salt trader."},
	}

	v := newTestView(&fakeChat{}, turns)

	require.Len(t, v.History(), 2)
	assert.Equal(t, domain.RoleAssistant, v.History()[1].Role)
	assert.Contains(t, v.View(), "A salt trader.")
	assert.Contains(t, v.View(), "Lin Qing")
}

func TestView_HistoryError(t *testing.T) {
	v := NewView(nil, &fakeChat{}, &fakeSessions{err: domain.ErrNotFound}, testSession, testProfile, false)

	v.Update(v.loadHistory()())

	assert.Equal(t, status.StateError, v.Status().State())
}

func TestView_StreamsAndCompletes(t *testing.T) {
	stream := &fakeStream{fragments: []string{"The road ", "is long."}}
	chat := &fakeChat{stream: stream}
	v := newTestView(chat, []domain.Turn{{Speaker: domain.SpeakerUser, Content: "hi"}, {Speaker: domain.SpeakerAgent, Content: "hello"}})

	cmd := typeAndSend(v, "  Tell me of the road  ")
	require.NotNil(t, cmd)
	assert.True(t, v.Generating())
	assert.Equal(t, status.StateGenerating, v.Status().State())
	assert.Empty(t, v.input.Value())

	drain(t, v, cmd)

	assert.False(t, v.Generating())
	assert.True(t, stream.finalized)
	assert.Equal(t, status.StateReady, v.Status().State())
	require.Len(t, v.History(), 4)
	assert.Equal(t, domain.Message{Role: domain.RoleUser, Content: "Tell me of the road"}, v.History()[2])
	assert.Equal(t, domain.Message{Role: domain.RoleAssistant, Content: "The road is long."}, v.History()[3])

	require.Len(t, chat.reqs, 1)
	req := chat.reqs[0]
	assert.Equal(t, "s1", req.SessionID)
	assert.Equal(t, "lin", req.RoleID)
	assert.Equal(t, "Tell me of the road", req.UserText)
	assert.True(t, req.UseMemory)
	assert.Len(t, req.History, 2)
}

func TestView_EmptyInputIgnored(t *testing.T) {
	chat := &fakeChat{stream: &fakeStream{}}
	v := newTestView(chat, nil)

	cmd := typeAndSend(v, "   ")

	assert.Nil(t, cmd)
	assert.False(t, v.Generating())
	assert.Empty(t, chat.reqs)
}

func TestView_CancelPersistsNothing(t *testing.T) {
	stream := &fakeStream{fragments: []string{"Once ", "upon ", "a time"}}
	v := newTestView(&fakeChat{stream: stream}, nil)

	cmd := typeAndSend(v, "A story?")
	_, cmd = v.Update(cmd()) // StreamStarted
	_, cmd = v.Update(cmd()) // first fragment
	assert.Contains(t, v.View(), "Once")

	v.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.True(t, stream.isClosed())
	assert.False(t, stream.finalized)
	assert.False(t, v.Generating())
	assert.Empty(t, v.History())
	assert.Equal(t, "Reply stopped, nothing saved", v.Status().Message())

	// The fragment command already in flight is ignored.
	drain(t, v, cmd)
	assert.Empty(t, v.History())
}

func TestView_StaleStreamStartedIsClosed(t *testing.T) {
	v := newTestView(&fakeChat{}, nil)
	stale := &fakeStream{fragments: []string{"late"}}

	_, cmd := v.Update(messages.StreamStarted{Seq: 42, Stream: stale})

	assert.Nil(t, cmd)
	assert.True(t, stale.isClosed())
}

func TestView_RespondStreamError(t *testing.T) {
	v := newTestView(&fakeChat{err: domain.IndexNotFoundError("salt-road", []string{"lexical.db"})}, nil)

	drain(t, v, typeAndSend(v, "hello"))

	assert.False(t, v.Generating())
	assert.Equal(t, status.StateError, v.Status().State())
	assert.Empty(t, v.History())
}

func TestView_StreamBreaks(t *testing.T) {
	stream := &fakeStream{fragments: []string{"half"}, nextErr: domain.ErrGeneration}
	v := newTestView(&fakeChat{stream: stream}, nil)

	drain(t, v, typeAndSend(v, "hello"))

	assert.True(t, stream.isClosed())
	assert.False(t, stream.finalized)
	assert.Empty(t, v.History())
	assert.Equal(t, status.StateError, v.Status().State())
}

func TestView_PersistenceErrorKeepsReply(t *testing.T) {
	stream := &fakeStream{
		fragments: []string{"kept"},
		finalErr:  &domain.PersistenceError{Reply: "kept", Err: errors.New("disk full")},
	}
	v := newTestView(&fakeChat{stream: stream}, nil)

	drain(t, v, typeAndSend(v, "hello"))

	require.Len(t, v.History(), 2)
	assert.Equal(t, "kept", v.History()[1].Content)
	assert.Equal(t, status.StateError, v.Status().State())
}

func TestView_ToggleMemory(t *testing.T) {
	v := newTestView(&fakeChat{}, nil)
	require.True(t, v.UseMemory())

	v.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.False(t, v.UseMemory())
	assert.Contains(t, v.Status().View(), "memory off")
}

func TestView_QuitAbandonsStream(t *testing.T) {
	stream := &fakeStream{fragments: []string{"a", "b"}}
	v := newTestView(&fakeChat{stream: stream}, nil)
	cmd := typeAndSend(v, "hello")
	v.Update(cmd())

	_, quit := v.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, quit)
	assert.IsType(t, tea.QuitMsg{}, quit())
	assert.True(t, stream.isClosed())
	assert.Empty(t, v.History())
}

func TestView_EmptyTranscriptHint(t *testing.T) {
	v := newTestView(&fakeChat{}, nil)

	assert.Contains(t, v.View(), "Say hello to Lin Qing")
	assert.Contains(t, v.View(), "The Salt Road")
}
