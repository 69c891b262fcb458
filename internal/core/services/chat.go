package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
	"github.com/custodia-labs/papersoul/internal/core/ports/driving"
	"github.com/custodia-labs/papersoul/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// LongTermMemory is the fact memory used by the orchestrator.
type LongTermMemory interface {
	Insert(ctx context.Context, sessionID, roleID, fact string) error
	Retrieve(ctx context.Context, sessionID, roleID, query string, k int) ([]string, error)
}

// Extractor derives facts from a completed exchange. It never fails.
type Extractor interface {
	Extract(ctx context.Context, roleName string, history []domain.Message, userText, reply string) []string
}

// StageObserver is notified each time a request enters a new stage.
type StageObserver func(sessionID string, stage domain.Stage)

// ChatServiceConfig holds the collaborators of a ChatService.
type ChatServiceConfig struct {
	Sessions  driven.SessionStore
	Profiles  driven.ProfileStore
	Retriever ContextRetriever
	Memory    LongTermMemory
	Extractor Extractor
	LLM       driven.LLMService
	Renderer  *PromptRenderer
	Settings  domain.ChatSettings
}

// ChatService assembles grounding context, generates in-character replies and
// persists each exchange.
type ChatService struct {
	sessions  driven.SessionStore
	profiles  driven.ProfileStore
	retriever ContextRetriever
	memory    LongTermMemory
	extractor Extractor
	llm       driven.LLMService
	renderer  *PromptRenderer
	settings  domain.ChatSettings

	locks    *sessionLocks
	observer StageObserver
}

// NewChatService creates a chat service. Memory and Extractor may be nil,
// in which case requests asking for long-term memory skip it.
func NewChatService(cfg ChatServiceConfig) (*ChatService, error) {
	if cfg.Sessions == nil || cfg.Profiles == nil || cfg.Retriever == nil {
		return nil, fmt.Errorf("%w: chat service needs sessions, profiles and a retriever", domain.ErrSetup)
	}
	if cfg.LLM == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSetup, domain.ErrLLMUnavailable)
	}
	if cfg.Renderer == nil {
		cfg.Renderer = NewPromptRenderer(nil)
	}

	settings := cfg.Settings
	defaults := domain.DefaultChatSettings()
	if settings.HistoryRounds <= 0 {
		settings.HistoryRounds = defaults.HistoryRounds
	}
	if settings.MemoryTopK <= 0 {
		settings.MemoryTopK = defaults.MemoryTopK
	}
	if settings.QueryBudget <= 0 {
		settings.QueryBudget = defaults.QueryBudget
	}

	return &ChatService{
		sessions:  cfg.Sessions,
		profiles:  cfg.Profiles,
		retriever: cfg.Retriever,
		memory:    cfg.Memory,
		extractor: cfg.Extractor,
		llm:       cfg.LLM,
		renderer:  cfg.Renderer,
		settings:  settings,
		locks:     newSessionLocks(),
	}, nil
}

// SetStageObserver registers a callback for request stage transitions.
func (s *ChatService) SetStageObserver(observer StageObserver) {
	s.observer = observer
}

// turnPlan is everything needed to generate and persist one exchange.
type turnPlan struct {
	session   domain.Session
	profile   domain.Profile
	history   []domain.Message
	userText  string
	useMemory bool
	messages  []driven.ChatMessage
	opts      driven.ChatOptions
}

// Respond generates the full reply and persists the exchange.
func (s *ChatService) Respond(ctx context.Context, req domain.ChatRequest) (string, error) {
	track := s.tracker(req.SessionID)

	plan, err := s.prepare(ctx, req, track)
	if err != nil {
		track(domain.StageFailed)
		return "", err
	}

	track(domain.StageGenerating)
	reply, err := s.llm.Chat(ctx, plan.messages, plan.opts)
	if err != nil {
		track(domain.StageFailed)
		logger.Warn("Generation failed: %v", err)
		return "", fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	if err := s.finish(ctx, plan, reply, track); err != nil {
		return reply, err
	}
	return reply, nil
}

// RespondStream assembles context and starts a streamed reply. Retrieval and
// setup errors are returned here; generation errors surface from Next.
func (s *ChatService) RespondStream(ctx context.Context, req domain.ChatRequest) (driving.ReplyStream, error) {
	stream := &ReplyStream{svc: s, stage: domain.StageIdle}
	track := func(stage domain.Stage) {
		stream.setStage(stage)
		s.notify(req.SessionID, stage)
	}
	stream.track = track

	plan, err := s.prepare(ctx, req, track)
	if err != nil {
		track(domain.StageFailed)
		return nil, err
	}

	track(domain.StageGenerating)
	upstream, err := s.llm.ChatStream(ctx, plan.messages, plan.opts)
	if err != nil {
		track(domain.StageFailed)
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	stream.plan = plan
	stream.upstream = upstream
	return stream, nil
}

// prepare runs the steps before generation: clipping, query construction,
// concurrent retrieval and system prompt rendering.
func (s *ChatService) prepare(ctx context.Context, req domain.ChatRequest, track func(domain.Stage)) (*turnPlan, error) {
	track(domain.StageIdle)
	logger.Section("Chat Request")

	userText := strings.TrimSpace(req.UserText)
	if userText == "" {
		return nil, fmt.Errorf("%w: empty user text", domain.ErrInvalidInput)
	}

	session, err := s.sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", req.SessionID, err)
	}

	roleID := req.RoleID
	if roleID == "" {
		roleID = session.RoleID
	}
	if roleID != session.RoleID {
		return nil, fmt.Errorf("%w: session %s belongs to role %s, not %s",
			domain.ErrInvalidInput, session.ID, session.RoleID, roleID)
	}

	profile, err := s.profiles.Get(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", roleID, err)
	}

	corpusID := session.CorpusID
	if corpusID == "" {
		corpusID = profile.CorpusID
	}

	useMemory := req.UseMemory && s.memory != nil
	history := ClipHistory(req.History, s.settings.HistoryRounds)
	query := BuildHistoryAwareQuery(history, userText, s.settings.QueryBudget)
	logger.Debug("Session %s, role %s, corpus %s, %d history turns, memory=%t",
		session.ID, roleID, corpusID, len(history), useMemory)
	logger.Debug("Retrieval query: %q", query)

	track(domain.StageRetrievingContext)

	var grounding string
	var facts []string
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		text, err := s.retriever.FetchContext(gctx, corpusID, query)
		if err != nil {
			return err
		}
		grounding = text
		return nil
	})

	if useMemory {
		g.Go(func() error {
			found, err := s.memory.Retrieve(gctx, session.ID, roleID, userText, s.settings.MemoryTopK)
			if err != nil {
				return err
			}
			facts = found
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn("Context retrieval failed: %v", err)
		if errors.Is(err, domain.ErrRetrieval) || errors.Is(err, domain.ErrSetup) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrieval, err)
	}

	logger.Debug("Grounding context: %d chars, %d memory facts", len(grounding), len(facts))

	system, err := s.renderer.RenderSystem(*profile, WithMemory(grounding, facts))
	if err != nil {
		return nil, fmt.Errorf("%w: render system prompt: %w", domain.ErrSetup, err)
	}

	return &turnPlan{
		session:   *session,
		profile:   *profile,
		history:   history,
		userText:  userText,
		useMemory: useMemory,
		messages:  BuildMessages(system, history, userText),
		opts: driven.ChatOptions{
			MaxTokens:   s.settings.MaxTokens,
			Temperature: s.settings.Temperature,
		},
	}, nil
}

// finish persists the exchange and, when memory is on, stores extracted facts.
// It must only be called with a complete reply.
func (s *ChatService) finish(ctx context.Context, plan *turnPlan, reply string, track func(domain.Stage)) error {
	track(domain.StagePersisting)

	if err := s.persist(ctx, plan, reply); err != nil {
		track(domain.StageFailed)
		logger.Error("Persist session %s: %v", plan.session.ID, err)
		return &domain.PersistenceError{Reply: reply, Err: err}
	}

	if plan.useMemory && s.extractor != nil {
		track(domain.StageExtracting)
		facts := s.extractor.Extract(ctx, plan.profile.Name(), plan.history, plan.userText, reply)
		for _, fact := range facts {
			if err := s.memory.Insert(ctx, plan.session.ID, plan.profile.ID, fact); err != nil {
				track(domain.StageFailed)
				logger.Error("Store fact for session %s: %v", plan.session.ID, err)
				return &domain.PersistenceError{Reply: reply, Err: err}
			}
		}
	}

	track(domain.StageDone)
	return nil
}

// persist appends the user and agent turns as one pair. Requests for the same
// session are serialised here so their pairs never interleave.
func (s *ChatService) persist(ctx context.Context, plan *turnPlan, reply string) error {
	unlock := s.locks.lock(plan.session.ID)
	defer unlock()

	return s.sessions.AppendTurns(ctx, plan.session.ID, []domain.Turn{
		{Speaker: domain.SpeakerUser, Content: plan.userText},
		{Speaker: domain.SpeakerAgent, Content: reply},
	})
}

func (s *ChatService) tracker(sessionID string) func(domain.Stage) {
	return func(stage domain.Stage) {
		s.notify(sessionID, stage)
	}
}

func (s *ChatService) notify(sessionID string, stage domain.Stage) {
	logger.Debug("Session %s: %s", sessionID, stage)
	if s.observer != nil {
		s.observer(sessionID, stage)
	}
}

// ClipHistory keeps the most recent rounds round-trips (2*rounds messages).
func ClipHistory(history []domain.Message, rounds int) []domain.Message {
	if rounds <= 0 {
		rounds = domain.DefaultHistoryRounds
	}
	limit := rounds * 2
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]domain.Message, len(history))
	copy(out, history)
	return out
}

// BuildHistoryAwareQuery joins the last two user turns of history and the
// current input with " \n", truncated to budget characters.
func BuildHistoryAwareQuery(history []domain.Message, userText string, budget int) string {
	if budget <= 0 {
		budget = domain.DefaultQueryBudget
	}

	var users []string
	for _, m := range history {
		if m.Role == domain.RoleUser {
			users = append(users, m.Content)
		}
	}
	if len(users) > 2 {
		users = users[len(users)-2:]
	}

	query := strings.Join(append(users, userText), " \n")
	return truncateRunes(query, budget)
}

// BuildMessages lays out the system instruction, the history and the
// current user turn. History entries with unknown roles are skipped.
func BuildMessages(system string, history []domain.Message, userText string) []driven.ChatMessage {
	messages := make([]driven.ChatMessage, 0, len(history)+2)
	messages = append(messages, driven.ChatMessage{Role: domain.RoleSystem, Content: system})
	for _, m := range history {
		switch m.Role {
		case domain.RoleUser, domain.RoleAssistant:
			messages = append(messages, driven.ChatMessage{Role: m.Role, Content: m.Content})
		}
	}
	return append(messages, driven.ChatMessage{Role: domain.RoleUser, Content: userText})
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// sessionLocks hands out one mutex per session ID and forgets it once no
// request holds or waits for it.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// lock acquires the session's mutex and returns its release function.
func (l *sessionLocks) lock(sessionID string) func() {
	l.mu.Lock()
	sl, ok := l.locks[sessionID]
	if !ok {
		sl = &sessionLock{}
		l.locks[sessionID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()

	return func() {
		sl.mu.Unlock()

		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, sessionID)
		}
		l.mu.Unlock()
	}
}

// size returns the number of sessions with an active or pending lock.
func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
