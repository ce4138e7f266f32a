// Package cache stores recognized text keyed by image content hash.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is a text cache. A miss is ("", false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, text string) error
}

type entry struct {
	text    string
	expires time.Time
}

// Memory is a process-local Cache with optional expiry.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	items map[string]entry
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, items: make(map[string]entry)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		delete(m.items, key)
		return "", false, nil
	}
	return e.text, true, nil
}

func (m *Memory) Set(_ context.Context, key, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := entry{text: text}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.items[key] = e
	return nil
}
