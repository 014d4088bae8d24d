package concierge

import (
	"context"
	"sync"

	"boraha-concierge/internal/domain"
)

type ReplyState int

const (
	ReplyPending ReplyState = iota
	ReplyResolved
	ReplyFailed
)

func (s ReplyState) String() string {
	switch s {
	case ReplyResolved:
		return "resolved"
	case ReplyFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Reply is the eventual result of SendAsync.
type Reply struct {
	done chan struct{}

	user domain.Message

	mu      sync.Mutex
	state   ReplyState
	message domain.Message
	reason  error
}

func newReply() *Reply {
	return &Reply{done: make(chan struct{})}
}

func (r *Reply) resolve(message domain.Message, reason error) {
	r.mu.Lock()
	r.message = message
	r.reason = reason
	r.state = ReplyResolved
	if reason != nil {
		r.state = ReplyFailed
	}
	r.mu.Unlock()
	close(r.done)
}

// Done is closed once the reply leaves the Pending state.
func (r *Reply) Done() <-chan struct{} { return r.done }

func (r *Reply) State() ReplyState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Text is the message appended to the transcript: the answer, or the fallback
// when the reply failed. Empty while pending.
func (r *Reply) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.message.Text
}

// User is the user message the send appended. Zero for blank input.
func (r *Reply) User() domain.Message { return r.user }

// Message is the assistant message appended to the transcript. Zero while
// pending.
func (r *Reply) Message() domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.message
}

// Reason is the failure cause of a Failed reply.
func (r *Reply) Reason() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason
}

// Wait blocks until the reply settles or ctx is done. It returns the reply
// text; a ctx error only means the caller stopped waiting.
func (r *Reply) Wait(ctx context.Context) (string, error) {
	select {
	case <-r.done:
		return r.Text(), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
