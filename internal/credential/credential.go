// Package credential resolves the secret used to authenticate against the
// remote chat backend.
package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrNotFound is returned when a source holds no credential.
var ErrNotFound = errors.New("credential: not found")

// Source yields an API key.
type Source interface {
	APIKey(ctx context.Context) (string, error)
}

// Env reads the key from a process environment variable.
type Env struct {
	Name   string
	lookup func(string) string
}

// NewEnv returns a Source backed by the environment variable name.
func NewEnv(name string) Env {
	return Env{Name: name, lookup: os.Getenv}
}

func (e Env) APIKey(_ context.Context) (string, error) {
	lookup := e.lookup
	if lookup == nil {
		lookup = os.Getenv
	}
	v := strings.TrimSpace(lookup(e.Name))
	if v == "" {
		return "", fmt.Errorf("%w: environment variable %s is empty", ErrNotFound, e.Name)
	}
	return v, nil
}

// Chain tries each source in order and returns the first key found. Errors
// other than ErrNotFound stop the chain.
type Chain []Source

func (c Chain) APIKey(ctx context.Context) (string, error) {
	var errs []error
	for _, s := range c {
		if s == nil {
			continue
		}
		key, err := s.APIKey(ctx)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", ErrNotFound
	}
	return "", errors.Join(errs...)
}

// Cached memoizes the first successful lookup of its source for the lifetime
// of the process. Failures are not cached.
type Cached struct {
	src Source

	mu  sync.Mutex
	key string
}

func NewCached(src Source) (*Cached, error) {
	if src == nil {
		return nil, errors.New("credential: source must not be nil")
	}
	return &Cached{src: src}, nil
}

func (c *Cached) APIKey(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key != "" {
		return c.key, nil
	}
	key, err := c.src.APIKey(ctx)
	if err != nil {
		return "", err
	}
	c.key = key
	return key, nil
}
