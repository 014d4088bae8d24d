// Package concierge implements the JOJO chat session: an append-only
// transcript in front of a lazily opened remote chat.
package concierge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"boraha-concierge/internal/domain"
)

const (
	WelcomeMessage     = "Manao ahoana ! Je suis JOJO. Prêt à naviguer sur les traces des pirates ou à observer les baleines ?"
	FallbackMessage    = "Je rencontre une légère difficulté technique. Veuillez m'excuser."
	UnavailableMessage = "Désolé, je suis momentanément indisponible."

	DefaultTemperature = 0.7
)

// Backend opens remote chats. When err is nil the returned chat must be a
// usable non-nil value; a nil interface is reported as an initialization
// failure, and a typed nil pointer fails at the first send.
type Backend interface {
	StartChat(ctx context.Context, cfg domain.ChatConfig) (domain.RemoteChat, error)
}

type State int

const (
	StateUninitialized State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Session is one conversation with the concierge. Sends are serialized: each
// one appends the user message and then exactly one assistant message before
// the next send starts.
type Session struct {
	backend     Backend
	catalog     Catalog
	model       string
	temperature float64
	logger      *slog.Logger

	promptOnce sync.Once
	prompt     string

	initMu sync.Mutex
	sendMu sync.Mutex

	mu         sync.Mutex
	remote     domain.RemoteChat
	transcript []domain.Message
	inFlight   bool
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithModel selects the backend model. Empty keeps the backend default.
func WithModel(model string) Option {
	return func(s *Session) {
		s.model = strings.TrimSpace(model)
	}
}

func WithTemperature(t float64) Option {
	return func(s *Session) {
		s.temperature = t
	}
}

// NewSession returns an uninitialized session whose transcript holds the
// welcome message.
func NewSession(backend Backend, catalog Catalog, opts ...Option) (*Session, error) {
	if backend == nil {
		return nil, errors.New("concierge: backend must not be nil")
	}
	if catalog == nil {
		return nil, errors.New("concierge: catalog must not be nil")
	}
	s := &Session{
		backend:     backend,
		catalog:     catalog,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.appendLocked(domain.RoleAssistant, WelcomeMessage)
	return s, nil
}

// SystemPrompt returns the persona instructions, building them on first use.
func (s *Session) SystemPrompt() string {
	s.promptOnce.Do(func() {
		s.prompt = BuildSystemPrompt(s.catalog)
	})
	return s.prompt
}

// Initialize opens the remote chat. It does nothing when the session is
// already Ready. A failure leaves the session Uninitialized and is returned as
// an *Error with code ErrorInitialization; the next call tries again.
func (s *Session) Initialize(ctx context.Context) error {
	_, err := s.ensureRemote(ctx)
	return err
}

func (s *Session) ensureRemote(ctx context.Context) (domain.RemoteChat, error) {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if remote := s.currentRemote(); remote != nil {
		return remote, nil
	}

	remote, err := s.backend.StartChat(ctx, domain.ChatConfig{
		Model:             s.model,
		SystemInstruction: s.SystemPrompt(),
		Temperature:       s.temperature,
	})
	if err != nil {
		return nil, newError(ErrorInitialization, "start_chat_failed", err)
	}
	if remote == nil {
		return nil, newError(ErrorInitialization, "nil_chat", nil)
	}

	s.mu.Lock()
	s.remote = remote
	s.mu.Unlock()
	return remote, nil
}

func (s *Session) currentRemote() domain.RemoteChat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// Reset drops the remote chat; the next send opens a new one. The transcript
// is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	s.remote = nil
	s.mu.Unlock()
}

func (s *Session) State() State {
	if s.currentRemote() != nil {
		return StateReady
	}
	return StateUninitialized
}

// Busy reports whether a send is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.transcript...)
}

// Turn is the pair of messages one send appends to the transcript.
type Turn struct {
	User      domain.Message
	Assistant domain.Message
}

// Send appends userText and the assistant's answer to the transcript and
// returns the answer. Blank input is a no-op returning "". Backend failures
// are logged and answered with FallbackMessage; Send never fails.
func (s *Session) Send(ctx context.Context, userText string) string {
	turn, ok := s.SendTurn(ctx, userText)
	if !ok {
		return ""
	}
	return turn.Assistant.Text
}

// SendTurn is Send returning both appended messages. ok is false for blank
// input, in which case nothing was appended.
func (s *Session) SendTurn(ctx context.Context, userText string) (Turn, bool) {
	user, ok := s.begin(userText)
	if !ok {
		return Turn{}, false
	}
	assistant, _ := s.finish(ctx, user.Text)
	return Turn{User: user, Assistant: assistant}, true
}

// SendAsync records the user message, then completes the exchange in the
// background. The returned Reply resolves to the answer or fails with the
// reason while still carrying FallbackMessage as its text. The exchange is
// not cancelled when ctx is.
func (s *Session) SendAsync(ctx context.Context, userText string) *Reply {
	reply := newReply()
	user, ok := s.begin(userText)
	if !ok {
		reply.resolve(domain.Message{}, nil)
		return reply
	}
	reply.user = user
	ctx = context.WithoutCancel(ctx)
	go func() {
		assistant, err := s.finish(ctx, user.Text)
		reply.resolve(assistant, err)
	}()
	return reply
}

func (s *Session) begin(userText string) (domain.Message, bool) {
	text := strings.TrimSpace(userText)
	if text == "" {
		return domain.Message{}, false
	}
	s.sendMu.Lock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = true
	return s.appendLocked(domain.RoleUser, text), true
}

// finish must follow a successful begin; it releases the send lock.
func (s *Session) finish(ctx context.Context, text string) (domain.Message, error) {
	defer s.sendMu.Unlock()

	answer, err := s.exchange(ctx, text)
	if err != nil {
		s.logger.Error("concierge send failed", "err", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	return s.appendLocked(domain.RoleAssistant, answer), err
}

func (s *Session) exchange(ctx context.Context, text string) (answer string, err error) {
	defer func() {
		if r := recover(); r != nil {
			answer = FallbackMessage
			err = newError(ErrorSend, "backend_panic", fmt.Errorf("%v", r))
		}
	}()

	remote, err := s.ensureRemote(ctx)
	if err != nil {
		return FallbackMessage, err
	}

	out, err := remote.SendMessage(ctx, text)
	if err != nil {
		return FallbackMessage, newError(ErrorSend, "backend_error", err)
	}
	if strings.TrimSpace(out) == "" {
		s.logger.Warn("concierge backend returned an empty answer")
		return UnavailableMessage, nil
	}
	return out, nil
}

// appendLocked requires s.mu to be held, or the session to be unshared.
func (s *Session) appendLocked(role domain.Role, text string) domain.Message {
	msg, err := domain.NewMessage(role, text)
	if err != nil {
		panic(err)
	}
	s.transcript = append(s.transcript, msg)
	return msg
}
