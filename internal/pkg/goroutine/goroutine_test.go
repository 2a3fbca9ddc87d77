package goroutine

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/atomic"
)

func TestManager(t *testing.T) {
	t.Run("WaitJoinsErrors", func(t *testing.T) {

		// Arrange
		m := NewManager(4)
		errA := errors.New("a")
		ran := atomic.NewInt32(0)

		// Act
		m.Go(context.Background(), func(context.Context) error { ran.Inc(); return errA })
		m.Go(context.Background(), func(context.Context) error { ran.Inc(); return nil })
		err := m.Wait()

		// Assert
		if ran.Load() != 2 {
			t.Fatalf("ran = %d, want 2", ran.Load())
		}
		if !errors.Is(err, errA) {
			t.Fatalf("err = %v, want %v", err, errA)
		}
	})

	t.Run("DropsWhenFull", func(t *testing.T) {

		// Arrange
		m := NewManager(1)
		release := make(chan struct{})
		ran := atomic.NewInt32(0)

		// Act
		m.Go(context.Background(), func(context.Context) error { <-release; return nil })
		m.Go(context.Background(), func(context.Context) error { ran.Inc(); return nil })
		close(release)
		_ = m.Wait()

		// Assert
		if ran.Load() != 0 {
			t.Fatalf("second task ran")
		}
	})

	t.Run("ClosedAfterWait", func(t *testing.T) {
		m := NewManager(1)
		_ = m.Wait()

		ran := atomic.NewInt32(0)
		m.Go(context.Background(), func(context.Context) error { ran.Inc(); return nil })

		if ran.Load() != 0 {
			t.Fatalf("task ran after Wait")
		}
	})

	t.Run("RecoversPanic", func(t *testing.T) {
		m := NewManager(1)

		m.Go(context.Background(), func(context.Context) error { panic("boom") })

		if err := m.Wait(); err != nil {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("NilManager", func(t *testing.T) {
		var m *Manager

		m.Go(context.Background(), func(context.Context) error { return nil })

		if err := m.Wait(); err != nil {
			t.Fatalf("err = %v", err)
		}
	})
}
