package concierge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"boraha-concierge/internal/catalog"
	"boraha-concierge/internal/domain"
)

type chatResponse struct {
	answer string
	err    error
}

type mockChat struct {
	mu        sync.Mutex
	responses []chatResponse
	received  []string
	block     chan struct{}
}

func (m *mockChat) SendMessage(ctx context.Context, text string) (string, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.received)
	m.received = append(m.received, text)
	if len(m.responses) == 0 {
		return "", errors.New("no chat response configured")
	}
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx].answer, m.responses[idx].err
}

type mockBackend struct {
	mu        sync.Mutex
	chat      *mockChat
	startErrs []error
	starts    int
	configs   []domain.ChatConfig
}

func (m *mockBackend) StartChat(_ context.Context, cfg domain.ChatConfig) (domain.RemoteChat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.starts
	m.starts++
	m.configs = append(m.configs, cfg)
	if idx < len(m.startErrs) && m.startErrs[idx] != nil {
		return nil, m.startErrs[idx]
	}
	return m.chat, nil
}

type nilBackend struct{}

func (nilBackend) StartChat(context.Context, domain.ChatConfig) (domain.RemoteChat, error) {
	return nil, nil
}

type panicChat struct{}

func (panicChat) SendMessage(context.Context, string) (string, error) {
	panic("backend exploded")
}

type panicBackend struct{}

func (panicBackend) StartChat(context.Context, domain.ChatConfig) (domain.RemoteChat, error) {
	return panicChat{}, nil
}

func answers(texts ...string) *mockChat {
	c := &mockChat{}
	for _, t := range texts {
		c.responses = append(c.responses, chatResponse{answer: t})
	}
	return c
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return c
}

func newTestSession(t *testing.T, b Backend, opts ...Option) *Session {
	t.Helper()
	s, err := NewSession(b, testCatalog(t), opts...)
	require.NoError(t, err)
	return s
}

func roles(msgs []domain.Message) []domain.Role {
	out := make([]domain.Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func TestNewSession_ValidatesDependencies(t *testing.T) {
	_, err := NewSession(nil, testCatalog(t))
	require.Error(t, err)

	_, err = NewSession(&mockBackend{}, nil)
	require.Error(t, err)
}

func TestNewSession_SeedsWelcome(t *testing.T) {
	s := newTestSession(t, &mockBackend{chat: answers("x")})
	msgs := s.Transcript()
	require.Len(t, msgs, 1)
	require.Equal(t, domain.RoleAssistant, msgs[0].Role)
	require.Equal(t, WelcomeMessage, msgs[0].Text)
	require.Equal(t, StateUninitialized, s.State())
}

func TestSend_WhaleSeasonScenario(t *testing.T) {
	backend := &mockBackend{chat: answers("De juillet à septembre.")}
	s := newTestSession(t, backend)

	out := s.Send(context.Background(), "Quelle est la meilleure période pour voir les baleines ?")
	require.Equal(t, "De juillet à septembre.", out)

	msgs := s.Transcript()
	require.Len(t, msgs, 3)
	require.Equal(t, []domain.Role{domain.RoleAssistant, domain.RoleUser, domain.RoleAssistant}, roles(msgs))
	require.Equal(t, "Quelle est la meilleure période pour voir les baleines ?", msgs[1].Text)
	require.Equal(t, "De juillet à septembre.", msgs[2].Text)
	require.Equal(t, StateReady, s.State())
}

func TestSend_BlankInputIsNoOp(t *testing.T) {
	backend := &mockBackend{chat: answers("x")}
	s := newTestSession(t, backend)

	for _, in := range []string{"", "   ", "\n\t"} {
		require.Equal(t, "", s.Send(context.Background(), in))
	}
	require.Len(t, s.Transcript(), 1)
	require.Zero(t, backend.starts)
}

func TestSend_FallbackOnBackendError_ThenSelfHeals(t *testing.T) {
	chat := &mockChat{responses: []chatResponse{
		{err: errors.New("503 unavailable")},
		{answer: "Bienvenue à bord."},
	}}
	backend := &mockBackend{chat: chat}
	s := newTestSession(t, backend)

	out := s.Send(context.Background(), "Bonjour")
	require.Equal(t, FallbackMessage, out)
	msgs := s.Transcript()
	require.Len(t, msgs, 3)
	require.Equal(t, FallbackMessage, msgs[2].Text)
	require.Equal(t, domain.RoleAssistant, msgs[2].Role)

	out = s.Send(context.Background(), "Bonjour encore")
	require.Equal(t, "Bienvenue à bord.", out)
	require.Len(t, s.Transcript(), 5)
	require.Equal(t, 1, backend.starts)
}

func TestSend_FallbackIsDeterministic(t *testing.T) {
	chat := &mockChat{responses: []chatResponse{{err: errors.New("boom")}}}
	s := newTestSession(t, &mockBackend{chat: chat})

	for _, in := range []string{"a", "Quel est le prix ?", "🐋"} {
		require.Equal(t, FallbackMessage, s.Send(context.Background(), in))
	}
	msgs := s.Transcript()
	require.Len(t, msgs, 7)
	for i := 2; i < len(msgs); i += 2 {
		require.Equal(t, FallbackMessage, msgs[i].Text)
	}
}

func TestSend_InitializationFailureIsRetried(t *testing.T) {
	backend := &mockBackend{
		chat:      answers("Le lagon vous attend."),
		startErrs: []error{errors.New("API key missing")},
	}
	s := newTestSession(t, backend)

	require.Equal(t, FallbackMessage, s.Send(context.Background(), "Bonjour"))
	require.Equal(t, StateUninitialized, s.State())

	require.Equal(t, "Le lagon vous attend.", s.Send(context.Background(), "Bonjour ?"))
	require.Equal(t, StateReady, s.State())
	require.Equal(t, 2, backend.starts)
	require.Len(t, s.Transcript(), 5)
}

func TestSend_EmptyAnswerUsesUnavailableMessage(t *testing.T) {
	s := newTestSession(t, &mockBackend{chat: answers("  ")})
	require.Equal(t, UnavailableMessage, s.Send(context.Background(), "Bonjour"))
	require.Equal(t, UnavailableMessage, s.Transcript()[2].Text)
}

func TestSend_BackendPanicIsContained(t *testing.T) {
	s := newTestSession(t, panicBackend{})
	require.NotPanics(t, func() {
		require.Equal(t, FallbackMessage, s.Send(context.Background(), "Bonjour"))
	})
	require.Len(t, s.Transcript(), 3)
	require.False(t, s.Busy())
}

func TestSend_SequentialOrdering(t *testing.T) {
	s := newTestSession(t, &mockBackend{chat: answers("A!", "B!")})

	s.Send(context.Background(), "A")
	s.Send(context.Background(), "B")

	msgs := s.Transcript()
	require.Len(t, msgs, 5)
	got := []string{msgs[1].Text, msgs[2].Text, msgs[3].Text, msgs[4].Text}
	require.Equal(t, []string{"A", "A!", "B", "B!"}, got)
}

func TestSend_ConcurrentCallsAreSerialized(t *testing.T) {
	chat := &mockChat{responses: []chatResponse{{answer: "ok"}}}
	s := newTestSession(t, &mockBackend{chat: chat})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Send(context.Background(), "question")
		}()
	}
	wg.Wait()

	msgs := s.Transcript()
	require.Len(t, msgs, 17)
	for i := 1; i < len(msgs); i += 2 {
		require.Equal(t, domain.RoleUser, msgs[i].Role)
		require.Equal(t, domain.RoleAssistant, msgs[i+1].Role)
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	backend := &mockBackend{chat: answers("x")}
	s := newTestSession(t, backend, WithModel("gemini-2.5-flash"), WithTemperature(0.3))

	require.NoError(t, s.Initialize(context.Background()))
	require.NoError(t, s.Initialize(context.Background()))
	require.Equal(t, 1, backend.starts)
	require.Equal(t, StateReady, s.State())

	cfg := backend.configs[0]
	require.Equal(t, "gemini-2.5-flash", cfg.Model)
	require.InDelta(t, 0.3, cfg.Temperature, 1e-9)
	require.Equal(t, s.SystemPrompt(), cfg.SystemInstruction)
	require.Contains(t, cfg.SystemInstruction, "Bungalow des Baleines")
}

func TestInitialize_DefaultTemperature(t *testing.T) {
	backend := &mockBackend{chat: answers("x")}
	s := newTestSession(t, backend)
	require.NoError(t, s.Initialize(context.Background()))
	require.InDelta(t, DefaultTemperature, backend.configs[0].Temperature, 1e-9)
}

func TestInitialize_FailureReturnsInitializationError(t *testing.T) {
	backend := &mockBackend{chat: answers("x"), startErrs: []error{errors.New("unreachable")}}
	s := newTestSession(t, backend)

	err := s.Initialize(context.Background())
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ErrorInitialization, cerr.Code)
	require.ErrorContains(t, err, "unreachable")
	require.Equal(t, StateUninitialized, s.State())

	require.NoError(t, s.Initialize(context.Background()))
	require.Equal(t, StateReady, s.State())
}

func TestReset_ReopensRemoteAndKeepsTranscript(t *testing.T) {
	backend := &mockBackend{chat: answers("un", "deux")}
	s := newTestSession(t, backend)

	s.Send(context.Background(), "1")
	s.Reset()
	require.Equal(t, StateUninitialized, s.State())
	require.Len(t, s.Transcript(), 3)

	s.Send(context.Background(), "2")
	require.Equal(t, 2, backend.starts)
	require.Len(t, s.Transcript(), 5)
}

func TestSendAsync_UserMessageVisibleWhilePending(t *testing.T) {
	chat := answers("Le Réveillon Pirate, le 31 décembre.")
	chat.block = make(chan struct{})
	s := newTestSession(t, &mockBackend{chat: chat})

	reply := s.SendAsync(context.Background(), "Quels événements ?")
	require.Equal(t, ReplyPending, reply.State())
	require.True(t, s.Busy())
	msgs := s.Transcript()
	require.Len(t, msgs, 2)
	require.Equal(t, domain.RoleUser, msgs[1].Role)
	require.Equal(t, msgs[1], reply.User())
	require.Equal(t, domain.Message{}, reply.Message())

	close(chat.block)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	text, err := reply.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, "Le Réveillon Pirate, le 31 décembre.", text)
	require.Equal(t, ReplyResolved, reply.State())
	require.NoError(t, reply.Reason())
	require.False(t, s.Busy())
	msgs = s.Transcript()
	require.Len(t, msgs, 3)
	require.Equal(t, msgs[2], reply.Message())
}

func TestSendAsync_FailedReplyCarriesFallback(t *testing.T) {
	chat := &mockChat{responses: []chatResponse{{err: errors.New("boom")}}}
	s := newTestSession(t, &mockBackend{chat: chat})

	reply := s.SendAsync(context.Background(), "Bonjour")
	<-reply.Done()
	require.Equal(t, ReplyFailed, reply.State())
	require.Equal(t, FallbackMessage, reply.Text())

	var cerr *Error
	require.ErrorAs(t, reply.Reason(), &cerr)
	require.Equal(t, ErrorSend, cerr.Code)
}

func TestSendAsync_NotCancelledWithCaller(t *testing.T) {
	chat := answers("Toujours là.")
	chat.block = make(chan struct{})
	s := newTestSession(t, &mockBackend{chat: chat})

	ctx, cancel := context.WithCancel(context.Background())
	reply := s.SendAsync(ctx, "Bonjour")
	cancel()
	close(chat.block)

	<-reply.Done()
	require.Equal(t, ReplyResolved, reply.State())
	require.Equal(t, "Toujours là.", reply.Text())
}

func TestSendAsync_BlankInputResolvesImmediately(t *testing.T) {
	s := newTestSession(t, &mockBackend{chat: answers("x")})
	reply := s.SendAsync(context.Background(), "  ")
	require.Equal(t, ReplyResolved, reply.State())
	require.Equal(t, "", reply.Text())
	require.Len(t, s.Transcript(), 1)
}

func TestReply_WaitHonoursContext(t *testing.T) {
	r := newReply()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, "pending", r.State().String())
}

func TestSendTurn_ReturnsAppendedPair(t *testing.T) {
	s := newTestSession(t, &mockBackend{chat: answers("Oui, en pirogue.")})

	turn, ok := s.SendTurn(context.Background(), "  Le lodge est-il accessible ?  ")
	require.True(t, ok)
	require.Equal(t, domain.RoleUser, turn.User.Role)
	require.Equal(t, "Le lodge est-il accessible ?", turn.User.Text)
	require.Equal(t, "Oui, en pirogue.", turn.Assistant.Text)

	msgs := s.Transcript()
	require.Equal(t, turn.User, msgs[1])
	require.Equal(t, turn.Assistant, msgs[2])

	_, ok = s.SendTurn(context.Background(), " ")
	require.False(t, ok)
}

func TestInitialize_NilChatIsInitializationError(t *testing.T) {
	s := newTestSession(t, nilBackend{})

	err := s.Initialize(context.Background())
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ErrorInitialization, cerr.Code)
	require.Equal(t, "nil_chat", cerr.Reason)
	require.Equal(t, StateUninitialized, s.State())

	require.Equal(t, FallbackMessage, s.Send(context.Background(), "Bonjour"))
}

func TestSend_TypedNilChatAnswersFallback(t *testing.T) {
	s := newTestSession(t, &mockBackend{})

	require.Equal(t, FallbackMessage, s.Send(context.Background(), "Bonjour"))
	require.Len(t, s.Transcript(), 3)
	require.False(t, s.Busy())
}
