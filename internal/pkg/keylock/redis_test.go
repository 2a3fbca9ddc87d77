package keylock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/smsotp/internal/pkg/testkit"
	"github.com/shandysiswandi/smsotp/internal/pkg/uid"
)

func TestRedis_Lock(t *testing.T) {
	client := testkit.Redis(t)
	ctx := context.Background()

	t.Run("TimeoutWhileHeld", func(t *testing.T) {

		// Arrange
		l := NewRedis(client, uid.NewUUID(), WithWaitTimeout(100*time.Millisecond))
		release, err := l.Lock(ctx, "held")
		if err != nil {
			t.Fatalf("lock: %v", err)
		}
		defer release()

		// Act
		_, err = l.Lock(ctx, "held")

		// Assert
		if !errors.Is(err, ErrLockTimeout) {
			t.Fatalf("err = %v, want ErrLockTimeout", err)
		}
	})

	t.Run("ReleaseAllowsNextHolder", func(t *testing.T) {
		l := NewRedis(client, uid.NewUUID(), WithWaitTimeout(time.Second))

		release, err := l.Lock(ctx, "handover")
		if err != nil {
			t.Fatalf("lock: %v", err)
		}
		release()

		release2, err := l.Lock(ctx, "handover")
		if err != nil {
			t.Fatalf("second lock: %v", err)
		}
		release2()
	})

	t.Run("ReleaseDoesNotDeleteForeignLock", func(t *testing.T) {

		// Arrange
		l := NewRedis(client, uid.NewUUID(), WithTTL(50*time.Millisecond), WithPrefix("foreign:"))
		release, err := l.Lock(ctx, "k")
		if err != nil {
			t.Fatalf("lock: %v", err)
		}
		time.Sleep(100 * time.Millisecond)
		if err := client.Set(ctx, "foreign:k", "other-owner", time.Minute).Err(); err != nil {
			t.Fatalf("set foreign: %v", err)
		}

		// Act
		release()

		// Assert
		got, err := client.Get(ctx, "foreign:k").Result()
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got != "other-owner" {
			t.Fatalf("lock value = %q, want other-owner", got)
		}
	})
}
