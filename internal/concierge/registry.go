package concierge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultIdleTTL = 30 * time.Minute

// Factory builds the session for a newly issued id.
type Factory func(id string) (*Session, error)

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Registry keeps the live sessions of this process, one per page view. Nothing
// is persisted: an evicted or deleted session is gone.
type Registry struct {
	factory Factory
	idleTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewRegistry(factory Factory, idleTTL time.Duration, logger *slog.Logger) (*Registry, error) {
	if factory == nil {
		return nil, errors.New("concierge: session factory must not be nil")
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factory:  factory,
		idleTTL:  idleTTL,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}, nil
}

// Create registers a new session under a fresh id.
func (r *Registry) Create() (string, *Session, error) {
	id := newSessionID()
	s, err := r.factory(id)
	if err != nil {
		return "", nil, newError(ErrorInternal, "session_factory_error", err)
	}
	if s == nil {
		return "", nil, newError(ErrorInternal, "session_factory_error", fmt.Errorf("factory returned nil session for %s", id))
	}

	r.mu.Lock()
	r.sessions[id] = &entry{session: s, lastSeen: r.now()}
	r.mu.Unlock()

	r.logger.Info("concierge session created", "session_id", id)
	return id, s, nil
}

// Get returns the session and marks it active.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.session, true
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		r.logger.Info("concierge session deleted", "session_id", id)
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many were
// removed. Sessions with a send in flight are kept.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var evicted []string
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) && !e.session.Busy() {
			delete(r.sessions, id)
			evicted = append(evicted, id)
		}
	}
	r.mu.Unlock()

	for _, id := range evicted {
		r.logger.Info("concierge session expired", "session_id", id)
	}
	return len(evicted)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

var newSessionID = func() string {
	return uuid.NewString()
}
