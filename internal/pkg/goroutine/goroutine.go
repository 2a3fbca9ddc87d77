// Package goroutine runs bounded background work that the application waits
// for on shutdown.
package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/smsotp/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine is multiplied by NumCPU when no limit is configured.
const DefaultMaxGoroutine int = 100

// Manager runs tasks on at most a fixed number of goroutines. Tasks that do
// not fit are dropped with a warning instead of queued.
type Manager struct {
	slots chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	errs  []error
}

func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}
	return &Manager{slots: make(chan struct{}, maxGoroutine)}
}

// Go starts f unless the manager is closed or full. f is skipped if ctx is
// already done when the goroutine starts.
func (m *Manager) Go(ctx context.Context, f func(ctx context.Context) error) {
	if m == nil {
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		slog.WarnContext(ctx, "goroutine manager closed, task dropped")
		return
	}

	select {
	case m.slots <- struct{}{}:
	default:
		slog.WarnContext(ctx, "goroutine limit reached, task dropped", "limit", cap(m.slots))
		return
	}

	m.wg.Go(func() {
		defer func() { <-m.slots }()
		defer m.recover(ctx)

		if err := ctx.Err(); err != nil {
			slog.WarnContext(ctx, "task skipped, context done", "error", err)
			return
		}
		if err := f(ctx); err != nil {
			m.errMu.Lock()
			m.errs = append(m.errs, err)
			m.errMu.Unlock()
		}
	})
}

func (m *Manager) recover(ctx context.Context) {
	rvr := recover()
	if rvr == nil {
		return
	}

	stack := debug.Stack()
	var trace any = string(stack)
	if frames := stacktrace.InternalPaths(stack); len(frames) > 0 {
		trace = frames
	}
	slog.ErrorContext(ctx, "panic in background task", "panic", rvr, "stack", trace)
}

// Wait stops accepting tasks, blocks until running ones return and joins
// their errors.
func (m *Manager) Wait() error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.wg.Wait()

	m.errMu.Lock()
	defer m.errMu.Unlock()
	return errors.Join(m.errs...)
}
