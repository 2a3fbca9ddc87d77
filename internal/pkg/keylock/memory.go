package keylock

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	ch   chan struct{}
	refs int
}

// Memory is an in-process Locker. Entries are dropped once no caller holds or
// waits on them, so the map stays bounded by the number of active keys.
type Memory struct {
	mu          sync.Mutex
	entries     map[string]*memoryEntry
	waitTimeout time.Duration
}

// MemoryOption customizes a Memory locker.
type MemoryOption func(*Memory)

// WithMemoryWaitTimeout bounds how long Lock waits before returning
// ErrLockTimeout. Without it Lock waits until ctx is done.
func WithMemoryWaitTimeout(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d > 0 {
			m.waitTimeout = d
		}
	}
}

// NewMemory constructs an in-process Locker.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{entries: make(map[string]*memoryEntry)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lock blocks until key is free, the wait timeout elapses or ctx is done.
func (m *Memory) Lock(ctx context.Context, key string) (func(), error) {
	var timeout <-chan time.Time
	if m.waitTimeout > 0 {
		timer := time.NewTimer(m.waitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &memoryEntry{ch: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-timeout:
		m.unref(key, e)
		return nil, ErrLockTimeout
	case <-ctx.Done():
		m.unref(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			m.unref(key, e)
		})
	}, nil
}

func (m *Memory) unref(key string, e *memoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}
